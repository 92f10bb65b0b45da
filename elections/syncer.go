package elections

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/votechain/votechain-client/contract"
	"github.com/votechain/votechain-client/pkg/logger"
	"github.com/votechain/votechain-client/revert"
)

// Reader is the read surface of the Voting contract used by the Syncer.
type Reader interface {
	ElectionCount(ctx context.Context) (uint64, error)
	ElectionName(ctx context.Context, electionID uint64) (string, error)
	Candidates(ctx context.Context, electionID uint64) ([]string, error)
	Votes(ctx context.Context, electionID uint64, index int) (uint64, error)
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithVoterStrategies sets the voter listing strategies, tried in order.
func WithVoterStrategies(strategies ...VoterStrategy) Option {
	return func(s *Syncer) {
		s.strategies = strategies
	}
}

// WithCaller sets the account on whose behalf access-gated reads are made.
func WithCaller(caller func() (common.Address, bool)) Option {
	return func(s *Syncer) {
		s.caller = caller
	}
}

// Syncer reads elections from the contract and publishes them as Snapshots.
type Syncer struct {
	lggr       logger.Logger
	reader     Reader
	strategies []VoterStrategy
	caller     func() (common.Address, bool)

	// mu serializes publication; readers only load snap.
	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// NewSyncer returns a Syncer with an empty Snapshot. reader may be nil when no contract is
// deployed: every read then yields nothing and the advisory says so. Unless overridden, the
// voter strategies are a PrivilegedRead then an EventScanRead from genesis, for whichever of
// the two interfaces reader implements.
func NewSyncer(lggr logger.Logger, reader Reader, opts ...Option) *Syncer {
	s := &Syncer{
		lggr:   lggr.Named("elections"),
		reader: reader,
	}
	if p, ok := reader.(PrivilegedVoterReader); ok {
		s.strategies = append(s.strategies, PrivilegedRead{Reader: p})
	}
	if l, ok := reader.(VoterLogReader); ok {
		s.strategies = append(s.strategies, EventScanRead{Logs: l})
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(&Snapshot{
		Details: map[uint64]Detail{},
		Voters:  map[uint64]VoterList{},
	})

	return s
}

// Snapshot returns the latest published Snapshot.
func (s *Syncer) Snapshot() *Snapshot {
	return s.snap.Load()
}

// ListElections reads every election from 1 to the election count. Any failed read fails the
// whole listing: the result is either complete or empty.
func (s *Syncer) ListElections(ctx context.Context) ([]Election, error) {
	if s.reader == nil {
		return []Election{}, contract.ErrNoHandle
	}

	count, err := s.reader.ElectionCount(ctx)
	if err != nil {
		return []Election{}, err
	}
	elections := make([]Election, 0, count)
	for id := uint64(1); id <= count; id++ {
		name, err := s.reader.ElectionName(ctx, id)
		if err != nil {
			return []Election{}, err
		}
		elections = append(elections, Election{ID: id, Name: name})
	}

	return elections, nil
}

// LoadElectionDetail reads the candidates of an election and then their tallies one by one.
// Any failed read discards the whole detail.
func (s *Syncer) LoadElectionDetail(ctx context.Context, electionID uint64) (Detail, error) {
	empty := Detail{ElectionID: electionID, Candidates: []Candidate{}}
	if s.reader == nil {
		return empty, contract.ErrNoHandle
	}

	names, err := s.reader.Candidates(ctx, electionID)
	if err != nil {
		return empty, err
	}
	detail := Detail{ElectionID: electionID, Candidates: make([]Candidate, 0, len(names))}
	for i, name := range names {
		votes, err := s.reader.Votes(ctx, electionID, i)
		if err != nil {
			return empty, err
		}
		detail.Candidates = append(detail.Candidates, Candidate{Index: i, Name: name, Votes: votes})
		detail.Total += votes
	}

	return detail, nil
}

// ListVoters tries each voter strategy in order and returns the first list read. When every
// strategy fails the list is unknown and the joined errors are returned.
func (s *Syncer) ListVoters(ctx context.Context, electionID uint64) (VoterList, error) {
	unknown := VoterList{Voters: []common.Address{}}
	if s.reader == nil {
		return unknown, contract.ErrNoHandle
	}

	var caller *common.Address
	if s.caller != nil {
		if a, ok := s.caller(); ok {
			caller = &a
		}
	}

	var errs []error
	for _, strategy := range s.strategies {
		voters, err := strategy.Voters(ctx, electionID, caller)
		if err != nil {
			s.lggr.Debugw("Voter strategy failed", "electionId", electionID, "source", strategy.Source(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", strategy.Source(), err))

			continue
		}

		return VoterList{Voters: voters, Known: true, Source: strategy.Source()}, nil
	}
	if len(errs) == 0 {
		return unknown, errors.New("no voter strategy configured")
	}

	return unknown, errors.Join(errs...)
}

// RefreshElections lists the elections and publishes the result, empty on failure.
func (s *Syncer) RefreshElections(ctx context.Context) ([]Election, error) {
	elections, err := s.ListElections(ctx)
	s.publish(func(snap *Snapshot) {
		snap.Elections = elections
	}, "elections", err)

	return elections, err
}

// RefreshElection loads the detail of an election and publishes it, empty on failure.
func (s *Syncer) RefreshElection(ctx context.Context, electionID uint64) (Detail, error) {
	detail, err := s.LoadElectionDetail(ctx, electionID)
	s.publishDetail(electionID, detail, err)

	return detail, err
}

func (s *Syncer) publishDetail(electionID uint64, detail Detail, err error) {
	s.publish(func(snap *Snapshot) {
		snap.Details[electionID] = detail
	}, fmt.Sprintf("election %d", electionID), err)
}

// RefreshVoters lists the voters of an election and publishes the list, unknown on failure.
func (s *Syncer) RefreshVoters(ctx context.Context, electionID uint64) (VoterList, error) {
	voters, err := s.ListVoters(ctx, electionID)
	s.publish(func(snap *Snapshot) {
		snap.Voters[electionID] = voters
	}, fmt.Sprintf("voters of election %d", electionID), err)

	return voters, err
}

func (s *Syncer) publish(apply func(*Snapshot), what string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Load().clone()
	apply(next)
	next.Advisory = ""
	if err != nil {
		next.Advisory = advisory(what, err)
		s.lggr.Warnw("Refresh failed", "what", what, "err", err)
	}
	s.snap.Store(next)
}

func advisory(what string, err error) string {
	if errors.Is(err, contract.ErrNoHandle) {
		return "Contract not deployed, nothing to show"
	}

	return fmt.Sprintf("Could not load %s: %s", what, revert.Decode(err))
}
