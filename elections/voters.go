package elections

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// PrivilegedVoterReader reads the voter list through the access-gated getter.
type PrivilegedVoterReader interface {
	Voters(ctx context.Context, electionID uint64, from *common.Address) ([]common.Address, error)
}

// VoterLogReader reads voter registrations from the event logs.
type VoterLogReader interface {
	LatestBlock(ctx context.Context) (uint64, error)
	RegisteredVoters(ctx context.Context, electionID uint64, fromBlock, toBlock uint64) ([]common.Address, error)
}

// VoterStrategy is one way of reading the registered voters of an election.
type VoterStrategy interface {
	Source() Source
	Voters(ctx context.Context, electionID uint64, caller *common.Address) ([]common.Address, error)
}

// PrivilegedRead asks the contract getter on behalf of the caller. Only the owner is answered.
type PrivilegedRead struct {
	Reader PrivilegedVoterReader
}

func (PrivilegedRead) Source() Source { return SourcePrivileged }

func (p PrivilegedRead) Voters(ctx context.Context, electionID uint64, caller *common.Address) ([]common.Address, error) {
	if p.Reader == nil {
		return nil, errors.New("no privileged reader")
	}

	return p.Reader.Voters(ctx, electionID, caller)
}

// EventScanRead rebuilds the voter list from VoterRegistered logs between StartBlock and the
// latest block, ChunkSize blocks per query (0 scans in one query). Voters are deduplicated in
// first-seen order.
type EventScanRead struct {
	Logs       VoterLogReader
	StartBlock uint64
	ChunkSize  uint64
}

func (EventScanRead) Source() Source { return SourceEventScan }

func (s EventScanRead) Voters(ctx context.Context, electionID uint64, _ *common.Address) ([]common.Address, error) {
	if s.Logs == nil {
		return nil, errors.New("no log reader")
	}
	latest, err := s.Logs.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}

	voters := []common.Address{}
	if latest < s.StartBlock {
		return voters, nil
	}
	seen := make(map[common.Address]struct{})
	for from := s.StartBlock; from <= latest; {
		to := latest
		if s.ChunkSize > 0 && latest-from >= s.ChunkSize {
			to = from + s.ChunkSize - 1
		}
		found, err := s.Logs.RegisteredVoters(ctx, electionID, from, to)
		if err != nil {
			return nil, err
		}
		for _, v := range found {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			voters = append(voters, v)
		}
		if to == latest {
			break
		}
		from = to + 1
	}

	return voters, nil
}
