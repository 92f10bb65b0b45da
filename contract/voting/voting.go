// Package voting is the typed client of the Voting contract.
package voting

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/votechain/votechain-client/contract"
)

// Voting wraps a contract.Binding with the methods of the Voting contract. Election ids start
// at 1, candidate indexes at 0.
type Voting struct {
	binding *contract.Binding
}

func New(binding *contract.Binding) *Voting {
	return &Voting{binding: binding}
}

// Binding returns the underlying binding.
func (v *Voting) Binding() *contract.Binding {
	return v.binding
}

// VoterRegisteredEvent is a decoded VoterRegistered log.
type VoterRegisteredEvent struct {
	ElectionId  *big.Int //nolint:revive // field name must match the ABI argument
	Voter       common.Address
	BlockNumber uint64
	LogIndex    uint
}

// Owner returns the administrative account of the contract.
func (v *Voting) Owner(ctx context.Context) (common.Address, error) {
	out, err := v.binding.Query(ctx, nil, MethodOwner)
	if err != nil {
		return common.Address{}, err
	}

	return single[common.Address](MethodOwner, out)
}

// ElectionCount returns the number of elections; ids run from 1 to the count.
func (v *Voting) ElectionCount(ctx context.Context) (uint64, error) {
	out, err := v.binding.Query(ctx, nil, MethodElectionCount)
	if err != nil {
		return 0, err
	}

	return singleUint(MethodElectionCount, out)
}

func (v *Voting) ElectionName(ctx context.Context, electionID uint64) (string, error) {
	out, err := v.binding.Query(ctx, nil, MethodElectionName, newUint(electionID))
	if err != nil {
		return "", err
	}

	return single[string](MethodElectionName, out)
}

// Candidates returns the candidate names of an election in index order.
func (v *Voting) Candidates(ctx context.Context, electionID uint64) ([]string, error) {
	out, err := v.binding.Query(ctx, nil, MethodCandidates, newUint(electionID))
	if err != nil {
		return nil, err
	}

	return single[[]string](MethodCandidates, out)
}

// Votes returns the tally of the candidate at index in an election.
func (v *Voting) Votes(ctx context.Context, electionID uint64, index int) (uint64, error) {
	out, err := v.binding.Query(ctx, nil, MethodVotes, newUint(electionID), big.NewInt(int64(index)))
	if err != nil {
		return 0, err
	}

	return singleUint(MethodVotes, out)
}

// VotesPerCandidate returns the legacy tally keyed by candidate name. Candidates sharing a name
// across elections share this tally, so it is informational only.
func (v *Voting) VotesPerCandidate(ctx context.Context, name string) (uint64, error) {
	out, err := v.binding.Query(ctx, nil, MethodVotesPerCandidate, name)
	if err != nil {
		return 0, err
	}

	return singleUint(MethodVotesPerCandidate, out)
}

// Voters returns the registered voters of an election. The contract only answers the owner,
// so the call is made on behalf of from.
func (v *Voting) Voters(ctx context.Context, electionID uint64, from *common.Address) ([]common.Address, error) {
	out, err := v.binding.Query(ctx, from, MethodVoters, newUint(electionID))
	if err != nil {
		return nil, err
	}

	return single[[]common.Address](MethodVoters, out)
}

// VoterRegistered returns the VoterRegistered events of an election emitted between fromBlock
// and toBlock, in chain order.
func (v *Voting) VoterRegistered(ctx context.Context, electionID uint64, fromBlock, toBlock uint64) ([]VoterRegisteredEvent, error) {
	logs, err := v.binding.FilterEvents(ctx, EventVoterRegistered, fromBlock, &toBlock, []any{newUint(electionID)})
	if err != nil {
		return nil, err
	}

	events := make([]VoterRegisteredEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		var ev VoterRegisteredEvent
		if err := v.binding.UnpackLog(&ev, EventVoterRegistered, l); err != nil {
			return nil, fmt.Errorf("unpack %s log in tx %s: %w", EventVoterRegistered, l.TxHash.Hex(), err)
		}
		ev.BlockNumber = l.BlockNumber
		ev.LogIndex = l.Index
		events = append(events, ev)
	}

	return events, nil
}

// RegisteredVoters returns the voters of the VoterRegistered events of an election in the
// block range, in chain order. Repeated registrations are kept.
func (v *Voting) RegisteredVoters(ctx context.Context, electionID uint64, fromBlock, toBlock uint64) ([]common.Address, error) {
	events, err := v.VoterRegistered(ctx, electionID, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	voters := make([]common.Address, len(events))
	for i, ev := range events {
		voters[i] = ev.Voter
	}

	return voters, nil
}

// LatestBlock returns the latest block number of the chain.
func (v *Voting) LatestBlock(ctx context.Context) (uint64, error) {
	return v.binding.LatestBlock(ctx)
}

// CreateElection creates an election with its candidates. Owner only.
func CreateElection(name string, candidates []string) contract.Call {
	return contract.Call{Method: MethodCreateElection, Args: []any{name, candidates}}
}

// RegisterVoter registers one voter for an election. Owner only.
func RegisterVoter(electionID uint64, voter common.Address) contract.Call {
	return contract.Call{Method: MethodRegisterVoter, Args: []any{newUint(electionID), voter}}
}

// RegisterVoters registers several voters for an election in one transaction. Owner only.
func RegisterVoters(electionID uint64, voters []common.Address) contract.Call {
	return contract.Call{Method: MethodRegisterVoters, Args: []any{newUint(electionID), voters}}
}

// Vote casts the sender's vote for the candidate at index.
func Vote(electionID uint64, index int) contract.Call {
	return contract.Call{Method: MethodVote, Args: []any{newUint(electionID), big.NewInt(int64(index))}}
}

func newUint(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func single[T any](method string, out []any) (T, error) {
	var zero T
	if len(out) != 1 {
		return zero, fmt.Errorf("%s: expected 1 return value, got %d", method, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected return type %T", method, out[0])
	}

	return v, nil
}

func singleUint(method string, out []any) (uint64, error) {
	v, err := single[*big.Int](method, out)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s: value %s overflows uint64", method, v)
	}

	return v.Uint64(), nil
}
