// Package roles derives whether the connected account administers the Voting contract.
package roles

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/votechain/votechain-client/pkg/logger"
)

// IsAdmin reports whether account is the owner. It is false when either is unknown.
func IsAdmin(account, owner *common.Address) bool {
	return account != nil && owner != nil && *account == *owner
}

// OwnerReader reads the declared owner of the contract.
type OwnerReader interface {
	Owner(ctx context.Context) (common.Address, error)
}

// AccountSource is the connected account and its change notifications.
type AccountSource interface {
	Account() (common.Address, bool)
	OnAccountChange(fn func(*common.Address)) func()
}

// Resolver tracks the owner of the contract and the admin state of the connected account.
type Resolver struct {
	lggr     logger.Logger
	reader   OwnerReader
	accounts AccountSource

	mu         sync.Mutex
	owner      *common.Address
	wasAdmin   bool
	listeners  map[int]func(bool)
	nextID     int
	unregister func()
}

// NewResolver returns a Resolver with an unknown owner. reader may be nil when no contract is
// available, in which case the owner stays unknown and nobody is admin.
func NewResolver(lggr logger.Logger, reader OwnerReader, accounts AccountSource) *Resolver {
	r := &Resolver{
		lggr:      lggr.Named("roles"),
		reader:    reader,
		accounts:  accounts,
		listeners: make(map[int]func(bool)),
	}
	r.unregister = accounts.OnAccountChange(func(*common.Address) { r.recompute() })

	return r
}

// Refresh reads the owner unless it is already known. A failed read leaves the owner unknown
// and is returned; the next Refresh tries again.
func (r *Resolver) Refresh(ctx context.Context) error {
	if _, ok := r.Owner(); ok || r.reader == nil {
		return nil
	}

	owner, err := r.reader.Owner(ctx)
	if err != nil {
		r.lggr.Warnw("Failed to read contract owner", "err", err)

		return err
	}

	r.mu.Lock()
	if r.owner == nil {
		r.owner = &owner
	}
	r.mu.Unlock()
	r.lggr.Debugw("Contract owner resolved", "owner", owner.Hex())
	r.recompute()

	return nil
}

// Owner returns the memoized owner, false while unknown.
func (r *Resolver) Owner() (common.Address, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owner == nil {
		return common.Address{}, false
	}

	return *r.owner, true
}

// IsAdmin computes the admin state from the current account and owner.
func (r *Resolver) IsAdmin() bool {
	var account *common.Address
	if a, ok := r.accounts.Account(); ok {
		account = &a
	}
	r.mu.Lock()
	owner := r.owner
	r.mu.Unlock()

	return IsAdmin(account, owner)
}

// OnAdminChange registers fn to be called with the new admin state whenever it flips. The
// returned function unregisters it.
func (r *Resolver) OnAdminChange(fn func(bool)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Close stops following account changes.
func (r *Resolver) Close() {
	r.unregister()
}

func (r *Resolver) recompute() {
	admin := r.IsAdmin()

	r.mu.Lock()
	if admin == r.wasAdmin {
		r.mu.Unlock()
		return
	}
	r.wasAdmin = admin
	fns := make([]func(bool), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	r.lggr.Infow("Admin state changed", "admin", admin)
	for _, fn := range fns {
		fn(admin)
	}
}
