package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
)

var _ Provider = (*KeyProvider)(nil)

// KeyProviderOption configures a KeyProvider.
type KeyProviderOption func(*KeyProvider)

// WithConfirmer makes the provider ask c before connecting and before every signature.
func WithConfirmer(c Confirmer) KeyProviderOption {
	return func(p *KeyProvider) {
		p.confirmer = c
	}
}

// WithGasLimit sets a fixed gas limit on the transactors, skipping gas estimation.
func WithGasLimit(gasLimit uint64) KeyProviderOption {
	return func(p *KeyProvider) {
		p.gasLimit = gasLimit
	}
}

// KeyProvider is a wallet backed by raw private keys. One account is active at a time; Select
// switches it and notifies subscribers, like switching accounts in a browser wallet.
type KeyProvider struct {
	mu        sync.RWMutex
	keys      map[common.Address]*ecdsa.PrivateKey
	order     []common.Address
	active    int
	locked    bool
	confirmer Confirmer
	gasLimit  uint64
	feed      event.Feed
}

// NewKeyProvider parses hex encoded private keys, with or without 0x prefix. The first key is
// the active account.
func NewKeyProvider(hexKeys []string, opts ...KeyProviderOption) (*KeyProvider, error) {
	if len(hexKeys) == 0 {
		return nil, errors.New("at least one private key is required")
	}

	p := &KeyProvider{
		keys:      make(map[common.Address]*ecdsa.PrivateKey, len(hexKeys)),
		confirmer: AutoApprove{},
	}
	for i, raw := range hexKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to convert private key %d to ECDSA: %w", i, err)
		}
		addr := crypto.PubkeyToAddress(key.PublicKey)
		if _, dup := p.keys[addr]; dup {
			continue
		}
		p.keys[addr] = key
		p.order = append(p.order, addr)
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Accounts returns every account of the provider in configuration order.
func (p *KeyProvider) Accounts() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]common.Address(nil), p.order...)
}

func (p *KeyProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	accounts := p.visible()
	if len(accounts) == 0 {
		return nil, nil
	}
	if err := approveConnection(ctx, p.confirmer, accounts); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (p *KeyProvider) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	return p.feed.Subscribe(ch)
}

// Select makes account the active one and notifies subscribers.
func (p *KeyProvider) Select(account common.Address) error {
	p.mu.Lock()
	idx := -1
	for i, a := range p.order {
		if a == account {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return fmt.Errorf("account %s is not managed by this wallet", account.Hex())
	}
	p.active = idx
	p.locked = false
	p.mu.Unlock()

	p.feed.Send(p.visible())

	return nil
}

// Lock disconnects every account and notifies subscribers with an empty list.
func (p *KeyProvider) Lock() {
	p.mu.Lock()
	p.locked = true
	p.mu.Unlock()

	p.feed.Send([]common.Address{})
}

func (p *KeyProvider) Transactor(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	p.mu.RLock()
	key, ok := p.keys[account]
	locked := p.locked
	p.mu.RUnlock()
	if !ok || locked {
		return nil, &ProviderError{Op: "transactor", Err: fmt.Errorf("account %s is not available", account.Hex())}
	}

	transactor, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, &ProviderError{Op: "transactor", Err: err}
	}
	transactor.Context = ctx
	transactor.Signer = confirmingSigner(ctx, p.confirmer, chainID, transactor.Signer)
	if p.gasLimit > 0 {
		transactor.GasLimit = p.gasLimit
	}

	return transactor, nil
}

// visible returns the accounts, active first, or nothing when locked.
func (p *KeyProvider) visible() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.locked || len(p.order) == 0 {
		return []common.Address{}
	}
	out := make([]common.Address, 0, len(p.order))
	out = append(out, p.order[p.active])
	for i, a := range p.order {
		if i != p.active {
			out = append(out, a)
		}
	}

	return out
}
