package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/votechain/votechain-client/pkg/logger"
)

// Session tracks the account connected through a Provider. It is safe for concurrent use.
type Session struct {
	lggr     logger.Logger
	provider Provider

	mu        sync.RWMutex
	account   *common.Address
	listeners map[int]func(*common.Address)
	nextID    int
	sub       event.Subscription
	done      chan struct{}
}

// NewSession returns a disconnected session. provider may be nil, in which case Connect fails
// with ErrNoProvider.
func NewSession(lggr logger.Logger, provider Provider) *Session {
	return &Session{
		lggr:      lggr.Named("wallet"),
		provider:  provider,
		listeners: make(map[int]func(*common.Address)),
	}
}

// Connect requests the accounts of the provider and makes the first one the session account.
// It subscribes to account changes for the lifetime of the session; the subscription is
// released on failure and by Close.
func (s *Session) Connect(ctx context.Context) (err error) {
	if s.provider == nil {
		return ErrNoProvider
	}

	// A reconnect replaces the previous subscription.
	s.release()

	changes := make(chan []common.Address, 1)
	sub := s.provider.SubscribeAccountsChanged(changes)
	defer func() {
		if err != nil {
			sub.Unsubscribe()
		}
	}()

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		err = classify("account access", err)
		s.lggr.Warnw("Wallet connection failed", "err", err)

		return err
	}

	done := make(chan struct{})
	s.mu.Lock()
	prevSub, prevDone := s.sub, s.done
	s.sub, s.done = sub, done
	s.mu.Unlock()

	// A concurrent Connect may have installed its subscription since the release above.
	if prevSub != nil {
		prevSub.Unsubscribe()
		<-prevDone
	}

	s.setAccount(first(accounts))
	go s.watch(sub, changes, done)

	return nil
}

// Account returns the connected account, false when none.
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.account == nil {
		return common.Address{}, false
	}

	return *s.account, true
}

// Connected reports whether Connect succeeded and the session was not closed since.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sub != nil
}

// OnAccountChange registers fn to be called with the new account (nil when disconnected) after
// every change. The returned function unregisters it.
func (s *Session) OnAccountChange(fn func(*common.Address)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Transactor returns the signing identity of the connected account.
func (s *Session) Transactor(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	account, ok := s.Account()
	if !ok {
		return nil, ErrNoAccount
	}

	opts, err := s.provider.Transactor(ctx, account, chainID)
	if err != nil {
		return nil, classify("transactor", err)
	}

	return opts, nil
}

// Close releases the account-change subscription. The last known account is kept.
func (s *Session) Close() {
	s.release()
}

func (s *Session) release() {
	s.mu.Lock()
	sub, done := s.sub, s.done
	s.sub, s.done = nil, nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
		<-done
	}
}

func (s *Session) watch(sub event.Subscription, changes <-chan []common.Address, done chan struct{}) {
	defer close(done)
	for {
		select {
		case accounts := <-changes:
			s.setAccount(first(accounts))
		case err, ok := <-sub.Err():
			if ok && err != nil {
				s.lggr.Warnw("Account subscription failed", "err", err)
			}

			return
		}
	}
}

func (s *Session) setAccount(account *common.Address) {
	s.mu.Lock()
	s.account = account
	fns := make([]func(*common.Address), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if account == nil {
		s.lggr.Infow("Wallet disconnected")
	} else {
		s.lggr.Infow("Wallet account changed", "account", account.Hex())
	}
	for _, fn := range fns {
		fn(account)
	}
}

func first(accounts []common.Address) *common.Address {
	if len(accounts) == 0 {
		return nil
	}
	a := accounts[0]

	return &a
}
