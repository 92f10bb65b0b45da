package elections

import (
	"context"
	"sync"
	"time"

	"github.com/votechain/votechain-client/pkg/logger"
)

// DefaultPollInterval is the refresh period of the selected election.
const DefaultPollInterval = 6 * time.Second

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the poll period. Non-positive values keep the default.
func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithObserver calls fn after every refresh made by the poller, including the initial load.
// Ticks call fn on the poll goroutine, so fn must not call Stop or Select.
func WithObserver(fn func(Detail, error)) PollerOption {
	return func(p *Poller) {
		p.observer = fn
	}
}

// Poller keeps the detail of the selected election fresh. At most one poll runs at a time.
type Poller struct {
	lggr     logger.Logger
	syncer   *Syncer
	interval time.Duration
	observer func(Detail, error)

	mu       sync.Mutex
	gen      uint64
	selected uint64
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewPoller(lggr logger.Logger, syncer *Syncer, opts ...PollerOption) *Poller {
	p := &Poller{
		lggr:     lggr.Named("poller"),
		syncer:   syncer,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Select stops the current poll, loads the detail of electionID and, once that succeeds,
// refreshes it every interval until the next Select, Stop, or the end of ctx. A failed load
// leaves nothing polling.
func (p *Poller) Select(ctx context.Context, electionID uint64) (Detail, error) {
	p.mu.Lock()
	done := p.stopLocked()
	p.gen++
	gen := p.gen
	p.selected = electionID
	p.mu.Unlock()
	wait(done)

	detail, err := p.syncer.RefreshElection(ctx, electionID)
	p.observe(detail, err)
	if err != nil {
		return detail, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another Select or a Stop happened during the load.
	if gen != p.gen {
		return detail, nil
	}
	pollCtx, cancel := context.WithCancel(ctx)
	pollDone := make(chan struct{})
	p.cancel, p.done = cancel, pollDone
	go p.run(pollCtx, electionID, pollDone)

	return detail, nil
}

// Selected returns the election being polled, false when none.
func (p *Poller) Selected() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.selected, p.cancel != nil
}

// Stop ends the current poll and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.gen++
	done := p.stopLocked()
	p.mu.Unlock()

	wait(done)
}

// stopLocked cancels the current poll and returns the channel closed when it has exited.
func (p *Poller) stopLocked() chan struct{} {
	if p.cancel == nil {
		return nil
	}
	done := p.done
	p.cancel()
	p.cancel, p.done = nil, nil

	return done
}

func wait(done chan struct{}) {
	if done != nil {
		<-done
	}
}

func (p *Poller) run(ctx context.Context, electionID uint64, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.lggr.Debugw("Polling election", "electionId", electionID)
			detail, err := p.syncer.LoadElectionDetail(ctx, electionID)
			// A canceled tick must not overwrite the cached detail.
			if ctx.Err() != nil {
				return
			}
			p.syncer.publishDetail(electionID, detail, err)
			p.observe(detail, err)
		}
	}
}

func (p *Poller) observe(detail Detail, err error) {
	if p.observer != nil {
		p.observer(detail, err)
	}
}
