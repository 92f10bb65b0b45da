// Package ledger provides an in-memory Voting contract reachable through the evm.OnchainClient
// interface. Calls are ABI-decoded and executed against plain Go state, so the whole client can
// be exercised without a node.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/votechain/votechain-client/chain/evm"
	"github.com/votechain/votechain-client/contract"
	"github.com/votechain/votechain-client/contract/voting"
)

// Revert reasons used by the contract.
const (
	ReasonOnlyOwner         = "Only owner can perform this action"
	ReasonInvalidElection   = "Invalid election"
	ReasonInvalidCandidate  = "Invalid candidate"
	ReasonNoCandidates      = "At least one candidate required"
	ReasonEmptyName         = "Election name required"
	ReasonAlreadyRegistered = "Voter already registered"
	ReasonNotRegistered     = "Not registered to vote in this election"
	ReasonAlreadyVoted      = "Already voted"

	// DefaultChainID is the chain id of the local development chain.
	DefaultChainID = 1337

	gasPerCall = 90_000
)

var _ evm.OnchainClient = (*Ledger)(nil)

// RevertError is returned by calls and gas estimations that revert. It carries the standard
// Error(string) payload as JSON-RPC error data, the way nodes report it.
type RevertError struct {
	Reason string
	data   string
}

func (e *RevertError) Error() string  { return "execution reverted: " + e.Reason }
func (e *RevertError) ErrorCode() int { return 3 }
func (e *RevertError) ErrorData() any { return e.data }

type election struct {
	name       string
	candidates []string
	votes      []uint64
	registered map[common.Address]bool
	voters     []common.Address
	voted      map[common.Address]bool
}

// Ledger is an in-memory chain hosting a single Voting contract.
type Ledger struct {
	mu sync.Mutex

	abi     abi.ABI
	address common.Address
	chainID *big.Int
	signer  types.Signer
	owner   common.Address

	block     uint64
	elections []*election
	legacy    map[string]uint64
	logs      []types.Log
	receipts  map[common.Hash]*types.Receipt
	nonces    map[common.Address]uint64

	calls          map[string]int
	readFailures   map[string]error
	filterFailure  error
	revertNextSend string
}

// New deploys an empty Voting contract owned by owner on a chain with the given id.
func New(owner common.Address, chainID int64) *Ledger {
	parsed, err := abi.JSON(strings.NewReader(voting.VotingABI))
	if err != nil {
		panic(err)
	}
	id := big.NewInt(chainID)

	return &Ledger{
		abi:          parsed,
		address:      crypto.CreateAddress(owner, 0),
		chainID:      id,
		signer:       types.LatestSignerForChainID(id),
		owner:        owner,
		block:        1,
		legacy:       make(map[string]uint64),
		receipts:     make(map[common.Hash]*types.Receipt),
		nonces:       map[common.Address]uint64{owner: 1},
		calls:        make(map[string]int),
		readFailures: make(map[string]error),
	}
}

// Address returns the address of the Voting contract.
func (l *Ledger) Address() common.Address {
	return l.address
}

// Handle returns the contract handle of the Voting contract.
func (l *Ledger) Handle() *contract.Handle {
	return &contract.Handle{
		Address:        l.address,
		ABI:            l.abi,
		TypeAndVersion: contract.MustTypeAndVersionFromString(voting.DefaultTypeAndVersion),
	}
}

// ChainID returns the chain id transactions must be signed for.
func (l *Ledger) ChainID() *big.Int {
	return new(big.Int).Set(l.chainID)
}

// Owner returns the contract owner.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// Block returns the latest block number.
func (l *Ledger) Block() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.block
}

// MineEmpty advances the chain by n empty blocks.
func (l *Ledger) MineEmpty(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.block += n
}

// FailRead makes every read-only call of method fail with err until cleared with a nil err.
func (l *Ledger) FailRead(method string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err == nil {
		delete(l.readFailures, method)
		return
	}
	l.readFailures[method] = err
}

// FailFilterLogs makes log queries fail with err until cleared with a nil err.
func (l *Ledger) FailFilterLogs(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.filterFailure = err
}

// RevertNextSend makes the next sent transaction be mined with a failed status without
// touching the contract state, as when another transaction changed it in between.
func (l *Ledger) RevertNextSend(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.revertNextSend = reason
}

// Calls returns how many times method was executed, through calls, estimations and
// transactions.
func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.calls[method]
}

// SeedElection creates an election directly, as the deployment script would, and returns its
// id.
func (l *Ledger) SeedElection(name string, candidates ...string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.block++
	id := l.createElection(name, candidates, common.Hash{})

	return id
}

// SetVotes overrides the tally of a candidate.
func (l *Ledger) SetVotes(electionID uint64, index int, votes uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.elections[electionID-1].votes[index] = votes
}

// SeedRegistration registers voters directly, emitting the registration logs in a new block.
func (l *Ledger) SeedRegistration(electionID uint64, voters ...common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.block++
	for _, v := range voters {
		l.register(l.elections[electionID-1], electionID, v, common.Hash{})
	}
}

// Votes returns the tallies of an election.
func (l *Ledger) Votes(electionID uint64) []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]uint64(nil), l.elections[electionID-1].votes...)
}

// IsRegistered reports whether voter is registered for the election.
func (l *Ledger) IsRegistered(electionID uint64, voter common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.elections[electionID-1].registered[voter]
}

// ElectionCount returns the number of elections.
func (l *Ledger) ElectionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.elections)
}

func (l *Ledger) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	return l.code(account), nil
}

func (l *Ledger) PendingCodeAt(_ context.Context, account common.Address) ([]byte, error) {
	return l.code(account), nil
}

func (l *Ledger) code(account common.Address) []byte {
	if account == l.address {
		return []byte{0x60, 0x80, 0x60, 0x40}
	}

	return nil
}

func (l *Ledger) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if call.To == nil || *call.To != l.address {
		return nil, nil
	}
	method, err := l.method(call.Data)
	if err == nil {
		if ferr := l.readFailures[method.Name]; ferr != nil {
			return nil, ferr
		}
	}

	return l.exec(call.From, call.Data, false, common.Hash{})
}

func (l *Ledger) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if call.To == nil || *call.To != l.address {
		return 21_000, nil
	}
	if _, err := l.exec(call.From, call.Data, false, common.Hash{}); err != nil {
		return 0, err
	}

	return gasPerCall, nil
}

func (l *Ledger) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.block
	if number != nil && number.Sign() >= 0 {
		n = number.Uint64()
	}

	return &types.Header{Number: new(big.Int).SetUint64(n), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (l *Ledger) BlockNumber(context.Context) (uint64, error) {
	return l.Block(), nil
}

func (l *Ledger) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.nonces[account], nil
}

func (l *Ledger) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (l *Ledger) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

// SendTransaction mines tx in a block of its own.
func (l *Ledger) SendTransaction(_ context.Context, tx *types.Transaction) error {
	from, err := types.Sender(l.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.Nonce() != l.nonces[from] {
		return fmt.Errorf("invalid nonce for %s: have %d, want %d", from.Hex(), tx.Nonce(), l.nonces[from])
	}
	l.nonces[from]++
	l.block++

	receipt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(l.block),
		GasUsed:     gasPerCall,
	}
	logStart := len(l.logs)

	switch {
	case l.revertNextSend != "":
		l.revertNextSend = ""
		receipt.Status = types.ReceiptStatusFailed
	case tx.To() != nil && *tx.To() == l.address:
		if _, err := l.exec(from, tx.Data(), true, tx.Hash()); err != nil {
			var revert *RevertError
			if !errors.As(err, &revert) {
				return err
			}
			receipt.Status = types.ReceiptStatusFailed
		}
	}

	for _, lg := range l.logs[logStart:] {
		receipt.Logs = append(receipt.Logs, &lg)
	}
	l.receipts[tx.Hash()] = receipt

	return nil
}

func (l *Ledger) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	receipt, ok := l.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}

	return receipt, nil
}

func (l *Ledger) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.filterFailure != nil {
		return nil, l.filterFailure
	}

	from, to := uint64(0), l.block
	if q.FromBlock != nil {
		from = q.FromBlock.Uint64()
	}
	if q.ToBlock != nil && q.ToBlock.Sign() >= 0 {
		to = q.ToBlock.Uint64()
	}

	var out []types.Log
	for _, lg := range l.logs {
		if lg.BlockNumber < from || lg.BlockNumber > to {
			continue
		}
		if len(q.Addresses) > 0 && !slices.Contains(q.Addresses, lg.Address) {
			continue
		}
		if !topicsMatch(q.Topics, lg.Topics) {
			continue
		}
		out = append(out, lg)
	}

	return out, nil
}

func (l *Ledger) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions are not supported")
}

func (l *Ledger) method(data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, errors.New("missing method selector")
	}

	return l.abi.MethodById(data[:4])
}

// exec runs a call against the contract state. State changes and logs are only applied when
// commit is set.
func (l *Ledger) exec(from common.Address, data []byte, commit bool, txHash common.Hash) ([]byte, error) {
	method, err := l.method(data)
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpack %s arguments: %w", method.Name, err)
	}
	l.calls[method.Name]++

	switch method.Name {
	case voting.MethodOwner:
		return method.Outputs.Pack(l.owner)
	case voting.MethodElectionCount:
		return method.Outputs.Pack(big.NewInt(int64(len(l.elections))))
	case voting.MethodElectionName:
		e, err := l.election(args[0])
		if err != nil {
			return nil, err
		}

		return method.Outputs.Pack(e.name)
	case voting.MethodCandidates:
		e, err := l.election(args[0])
		if err != nil {
			return nil, err
		}

		return method.Outputs.Pack(e.candidates)
	case voting.MethodVotes:
		e, err := l.election(args[0])
		if err != nil {
			return nil, err
		}
		idx, err := candidate(e, args[1])
		if err != nil {
			return nil, err
		}

		return method.Outputs.Pack(new(big.Int).SetUint64(e.votes[idx]))
	case voting.MethodVotesPerCandidate:
		return method.Outputs.Pack(new(big.Int).SetUint64(l.legacy[args[0].(string)]))
	case voting.MethodVoters:
		if from != l.owner {
			return nil, newRevert(ReasonOnlyOwner)
		}
		e, err := l.election(args[0])
		if err != nil {
			return nil, err
		}

		return method.Outputs.Pack(append([]common.Address{}, e.voters...))
	case voting.MethodCreateElection:
		if from != l.owner {
			return nil, newRevert(ReasonOnlyOwner)
		}
		name, candidates := args[0].(string), args[1].([]string)
		if strings.TrimSpace(name) == "" {
			return nil, newRevert(ReasonEmptyName)
		}
		if len(candidates) == 0 {
			return nil, newRevert(ReasonNoCandidates)
		}
		if commit {
			l.createElection(name, candidates, txHash)
		}

		return nil, nil
	case voting.MethodRegisterVoter:
		if from != l.owner {
			return nil, newRevert(ReasonOnlyOwner)
		}
		e, err := l.election(args[0])
		if err != nil {
			return nil, err
		}
		voter := args[1].(common.Address)
		if e.registered[voter] {
			return nil, newRevert(ReasonAlreadyRegistered)
		}
		if commit {
			l.register(e, args[0].(*big.Int).Uint64(), voter, txHash)
		}

		return nil, nil
	case voting.MethodRegisterVoters:
		if from != l.owner {
			return nil, newRevert(ReasonOnlyOwner)
		}
		e, err := l.election(args[0])
		if err != nil {
			return nil, err
		}
		if commit {
			for _, voter := range args[1].([]common.Address) {
				if !e.registered[voter] {
					l.register(e, args[0].(*big.Int).Uint64(), voter, txHash)
				}
			}
		}

		return nil, nil
	case voting.MethodVote:
		e, err := l.election(args[0])
		if err != nil {
			return nil, err
		}
		idx, err := candidate(e, args[1])
		if err != nil {
			return nil, err
		}
		if !e.registered[from] {
			return nil, newRevert(ReasonNotRegistered)
		}
		if e.voted[from] {
			return nil, newRevert(ReasonAlreadyVoted)
		}
		if commit {
			e.votes[idx]++
			e.voted[from] = true
			l.legacy[e.candidates[idx]]++
			id := args[0].(*big.Int)
			l.emit(voting.EventVoteCast, txHash, nil,
				common.BigToHash(id), common.BigToHash(big.NewInt(int64(idx))), common.BytesToHash(from.Bytes()))
		}

		return nil, nil
	default:
		return nil, fmt.Errorf("method %s not implemented", method.Name)
	}
}

func (l *Ledger) election(arg any) (*election, error) {
	id := arg.(*big.Int)
	if id.Sign() <= 0 || !id.IsUint64() || id.Uint64() > uint64(len(l.elections)) {
		return nil, newRevert(ReasonInvalidElection)
	}

	return l.elections[id.Uint64()-1], nil
}

func candidate(e *election, arg any) (int, error) {
	idx := arg.(*big.Int)
	if idx.Sign() < 0 || !idx.IsInt64() || idx.Int64() >= int64(len(e.candidates)) {
		return 0, newRevert(ReasonInvalidCandidate)
	}

	return int(idx.Int64()), nil
}

func (l *Ledger) createElection(name string, candidates []string, txHash common.Hash) uint64 {
	l.elections = append(l.elections, &election{
		name:       name,
		candidates: append([]string(nil), candidates...),
		votes:      make([]uint64, len(candidates)),
		registered: make(map[common.Address]bool),
		voted:      make(map[common.Address]bool),
	})
	id := uint64(len(l.elections))

	data, err := l.abi.Events[voting.EventElectionCreated].Inputs.NonIndexed().Pack(name)
	if err != nil {
		panic(err)
	}
	l.emit(voting.EventElectionCreated, txHash, data, common.BigToHash(new(big.Int).SetUint64(id)))

	return id
}

func (l *Ledger) register(e *election, electionID uint64, voter common.Address, txHash common.Hash) {
	e.registered[voter] = true
	e.voters = append(e.voters, voter)
	l.emit(voting.EventVoterRegistered, txHash, nil,
		common.BigToHash(new(big.Int).SetUint64(electionID)), common.BytesToHash(voter.Bytes()))
}

func (l *Ledger) emit(event string, txHash common.Hash, data []byte, indexed ...common.Hash) {
	l.logs = append(l.logs, types.Log{
		Address:     l.address,
		Topics:      append([]common.Hash{l.abi.Events[event].ID}, indexed...),
		Data:        data,
		BlockNumber: l.block,
		TxHash:      txHash,
		Index:       uint(len(l.logs)),
	})
}

func newRevert(reason string) *RevertError {
	stringType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]

	return &RevertError{Reason: reason, data: hexutil.Encode(append(selector, packed...))}
}

func topicsMatch(query [][]common.Hash, topics []common.Hash) bool {
	for i, set := range query {
		if len(set) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		if !slices.Contains(set, topics[i]) {
			return false
		}
	}

	return true
}
