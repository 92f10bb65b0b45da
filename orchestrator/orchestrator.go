// Package orchestrator is the only path by which state-changing calls reach the Voting
// contract. Every action is validated locally, simulated, signed and submitted, then settled
// into a Report. Actions are never retried.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/votechain/votechain-client/chain/evm"
	"github.com/votechain/votechain-client/contract"
	"github.com/votechain/votechain-client/contract/voting"
	"github.com/votechain/votechain-client/elections"
	"github.com/votechain/votechain-client/pkg/logger"
	"github.com/votechain/votechain-client/revert"
)

// Kind is the kind of a write action.
type Kind string

const (
	KindCreateElection Kind = "create-election"
	KindRegisterVoter  Kind = "register-voter"
	KindRegisterBulk   Kind = "register-bulk"
	KindCastVote       Kind = "cast-vote"
)

// key identifies an affordance: at most one action per key is in flight.
type key struct {
	kind   Kind
	target string
}

func (k key) String() string {
	return string(k.kind) + "/" + k.target
}

// PendingAction is an action between its start and its settlement.
type PendingAction struct {
	Kind      Kind
	Target    string
	State     State
	StartedAt time.Time
}

// Transactor simulates and submits contract calls.
type Transactor interface {
	Simulate(ctx context.Context, from common.Address, call contract.Call) (uint64, error)
	Submit(ctx context.Context, opts *bind.TransactOpts, call contract.Call) (*types.Transaction, uint64, error)
}

// Signer is the connected wallet account.
type Signer interface {
	Account() (common.Address, bool)
	Transactor(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

// Refresher reloads the local mirror after a successful action.
type Refresher interface {
	RefreshElections(ctx context.Context) ([]elections.Election, error)
	RefreshElection(ctx context.Context, electionID uint64) (elections.Detail, error)
	RefreshVoters(ctx context.Context, electionID uint64) (elections.VoterList, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReporter sets where reports are stored. Defaults to a MemoryReporter.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// WithRefresher sets the mirror refreshed after successful actions.
func WithRefresher(r Refresher) Option {
	return func(o *Orchestrator) {
		o.refresher = r
	}
}

// WithVoteRefreshDelay delays the election refresh that follows a vote, letting RPC nodes
// behind a load balancer catch up. Zero refreshes before the action returns.
func WithVoteRefreshDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.voteRefreshDelay = d
	}
}

// WithObserver calls fn with every report once its action settles.
func WithObserver(fn func(Report)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// Orchestrator runs write actions against the contract.
type Orchestrator struct {
	lggr             logger.Logger
	tx               Transactor
	signer           Signer
	chain            evm.Chain
	reporter         Reporter
	refresher        Refresher
	voteRefreshDelay time.Duration
	observer         func(Report)

	mu      sync.Mutex
	pending map[key]PendingAction
	refresh sync.WaitGroup
}

// New returns an Orchestrator submitting through tx with the identity of signer on chain. tx
// may be nil when no contract is deployed: every action then fails with contract.ErrNoHandle.
func New(lggr logger.Logger, tx Transactor, signer Signer, chain evm.Chain, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		lggr:     lggr.Named("orchestrator").With("chain", chain.String()),
		tx:       tx,
		signer:   signer,
		chain:    chain,
		reporter: NewMemoryReporter(),
		pending:  make(map[key]PendingAction),
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Reporter returns the store of settled action reports.
func (o *Orchestrator) Reporter() Reporter {
	return o.reporter
}

// Pending returns the actions in flight.
func (o *Orchestrator) Pending() []PendingAction {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]PendingAction, 0, len(o.pending))
	for _, p := range o.pending {
		out = append(out, p)
	}

	return out
}

// Wait blocks until delayed refreshes have finished.
func (o *Orchestrator) Wait() {
	o.refresh.Wait()
}

// CreateElection creates an election. Candidate names are trimmed and empty ones dropped.
func (o *Orchestrator) CreateElection(ctx context.Context, name string, candidates []string) (Report, error) {
	from, err := o.preflight()
	if err != nil {
		return Report{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Report{}, &ValidationError{Field: "name", Message: "election name is required"}
	}
	var names []string
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			names = append(names, c)
		}
	}
	if len(names) == 0 {
		return Report{}, &ValidationError{Field: "candidates", Message: "at least one candidate is required"}
	}

	return o.run(ctx, key{KindCreateElection, "election"}, from, voting.CreateElection(name, names),
		fmt.Sprintf("Election %q created!", name),
		func(ctx context.Context) {
			_, _ = o.refresher.RefreshElections(ctx)
		})
}

// RegisterVoter registers the address-shaped voter for an election.
func (o *Orchestrator) RegisterVoter(ctx context.Context, electionID uint64, voter string) (Report, error) {
	from, err := o.preflight()
	if err != nil {
		return Report{}, err
	}
	if err := validElection(electionID); err != nil {
		return Report{}, err
	}
	addr, err := evm.ParseAddress(voter)
	if err != nil {
		return Report{}, &ValidationError{Field: "voter", Message: err.Error()}
	}

	target := strconv.FormatUint(electionID, 10) + ":" + addr.Hex()

	return o.run(ctx, key{KindRegisterVoter, target}, from, voting.RegisterVoter(electionID, addr),
		fmt.Sprintf("Voter %s registered!", addr.Hex()),
		o.refreshVoters(electionID))
}

// RegisterVoters registers a comma-separated list of voters for an election in one
// transaction. Entries are trimmed and deduplicated.
func (o *Orchestrator) RegisterVoters(ctx context.Context, electionID uint64, voters string) (Report, error) {
	from, err := o.preflight()
	if err != nil {
		return Report{}, err
	}
	if err := validElection(electionID); err != nil {
		return Report{}, err
	}
	addrs, err := evm.ParseAddressList(voters)
	if err != nil {
		return Report{}, &ValidationError{Field: "voters", Message: err.Error()}
	}
	if len(addrs) == 0 {
		return Report{}, &ValidationError{Field: "voters", Message: "at least one address is required"}
	}

	return o.run(ctx, key{KindRegisterBulk, strconv.FormatUint(electionID, 10)}, from, voting.RegisterVoters(electionID, addrs),
		fmt.Sprintf("%d voter(s) registered!", len(addrs)),
		o.refreshVoters(electionID))
}

// CastVote votes for the candidate at index in an election.
func (o *Orchestrator) CastVote(ctx context.Context, electionID uint64, index int) (Report, error) {
	from, err := o.preflight()
	if err != nil {
		return Report{}, err
	}
	if err := validElection(electionID); err != nil {
		return Report{}, err
	}
	if index < 0 {
		return Report{}, &ValidationError{Field: "candidate", Message: "select a candidate"}
	}

	target := fmt.Sprintf("%d:%d", electionID, index)

	return o.run(ctx, key{KindCastVote, target}, from, voting.Vote(electionID, index),
		"Vote cast successfully!",
		func(ctx context.Context) {
			if o.voteRefreshDelay <= 0 {
				_, _ = o.refresher.RefreshElection(ctx, electionID)
				return
			}
			o.refresh.Add(1)
			go func() {
				defer o.refresh.Done()
				select {
				case <-time.After(o.voteRefreshDelay):
					_, _ = o.refresher.RefreshElection(context.WithoutCancel(ctx), electionID)
				case <-ctx.Done():
				}
			}()
		})
}

func (o *Orchestrator) preflight() (common.Address, error) {
	if o.tx == nil {
		return common.Address{}, contract.ErrNoHandle
	}
	if o.signer == nil {
		return common.Address{}, &ValidationError{Field: "account", Message: "connect your wallet first"}
	}
	from, ok := o.signer.Account()
	if !ok {
		return common.Address{}, &ValidationError{Field: "account", Message: "connect your wallet first"}
	}

	return from, nil
}

func validElection(electionID uint64) error {
	if electionID < 1 {
		return &ValidationError{Field: "election", Message: "select an election"}
	}

	return nil
}

func (o *Orchestrator) refreshVoters(electionID uint64) func(context.Context) {
	return func(ctx context.Context) {
		_, _ = o.refresher.RefreshElection(ctx, electionID)
		_, _ = o.refresher.RefreshVoters(ctx, electionID)
	}
}

func (o *Orchestrator) begin(k key) (*action, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.pending[k]; busy {
		return nil, fmt.Errorf("%s: %w", k, ErrActionPending)
	}
	o.pending[k] = PendingAction{Kind: k.kind, Target: k.target, State: Idle, StartedAt: time.Now()}

	return &action{key: k, state: Idle}, nil
}

func (o *Orchestrator) advance(a *action, to State) {
	a.transition(to)

	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.pending[a.key]
	p.State = to
	o.pending[a.key] = p
}

func (o *Orchestrator) end(a *action) {
	a.transition(Idle)

	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pending, a.key)
}

func (o *Orchestrator) run(ctx context.Context, k key, from common.Address, call contract.Call, success string, onSuccess func(context.Context)) (Report, error) {
	a, err := o.begin(k)
	if err != nil {
		return Report{}, err
	}
	defer o.end(a)

	lggr := o.lggr.With("kind", k.kind, "target", k.target, "from", from.Hex())
	report := newReport(k.kind, k.target, from, call.String())

	o.advance(a, Simulating)
	gas, err := o.tx.Simulate(ctx, from, call)
	if err != nil {
		serr := &SimulationRevertError{Reason: revert.Decode(err), Err: err}
		report = o.settle(lggr, a, report, serr.Reason, Simulating)

		return report, serr
	}
	report.Gas = gas

	o.advance(a, Submitting)
	tx, block, err := o.submit(ctx, gas, call)
	if tx != nil {
		report.TxHash = tx.Hash()
	}
	if err != nil {
		ferr := &SubmissionFailedError{Reason: revert.Decode(err), TxHash: report.TxHash, Err: err}
		report = o.settle(lggr, a, report, ferr.Reason, Submitting)

		return report, ferr
	}
	report.Block = block
	report.Success = true
	report.Message = "✓ " + success
	report = o.settle(lggr, a, report, "", Settled)

	if o.refresher != nil {
		onSuccess(ctx)
	}

	return report, nil
}

func (o *Orchestrator) submit(ctx context.Context, gas uint64, call contract.Call) (*types.Transaction, uint64, error) {
	opts, err := o.signer.Transactor(ctx, o.chain.ID)
	if err != nil {
		return nil, 0, err
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = gas
	}

	return o.tx.Submit(ctx, opts, call)
}

func (o *Orchestrator) settle(lggr logger.Logger, a *action, report Report, reason string, phase State) Report {
	o.advance(a, Settled)
	report.SettledAt = time.Now()
	report.Phase = phase
	if !report.Success {
		report.Reason = reason
		report.Message = "✗ " + reason
	}

	if err := o.reporter.AddReport(report); err != nil {
		lggr.Errorw("Failed to store report", "id", report.ID, "err", err)
	}
	if report.Success {
		lggr.Infow("Action settled", "id", report.ID, "tx", report.TxHash.Hex(), "block", report.Block, "duration", report.Duration())
	} else {
		lggr.Warnw("Action failed", "id", report.ID, "phase", phase, "reason", report.Reason, "tx", report.TxHash.Hex())
	}
	if o.observer != nil {
		o.observer(report)
	}

	return report
}

// IsRejection reports whether err is an action the user declined in the wallet.
func IsRejection(err error) bool {
	var sub *SubmissionFailedError

	return errors.As(err, &sub) && revert.IsUserRejection(sub.Err)
}
