package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

var _ Provider = (*KeystoreProvider)(nil)

// KeystoreProvider is a wallet backed by an encrypted go-ethereum keystore directory. Key files
// added to or removed from the directory show up as account changes.
type KeystoreProvider struct {
	ks         *keystore.KeyStore
	passphrase string
	confirmer  Confirmer
}

// NewKeystoreProvider opens the keystore in dir. Keys are decrypted with passphrase at signing
// time only. A nil confirmer approves everything.
func NewKeystoreProvider(dir, passphrase string, confirmer Confirmer) *KeystoreProvider {
	return newKeystoreProvider(keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP), passphrase, confirmer)
}

func newKeystoreProvider(ks *keystore.KeyStore, passphrase string, confirmer Confirmer) *KeystoreProvider {
	if confirmer == nil {
		confirmer = AutoApprove{}
	}

	return &KeystoreProvider{ks: ks, passphrase: passphrase, confirmer: confirmer}
}

func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	addrs := p.addresses()
	if len(addrs) == 0 {
		return nil, nil
	}
	if err := approveConnection(ctx, p.confirmer, addrs); err != nil {
		return nil, err
	}

	return addrs, nil
}

func (p *KeystoreProvider) SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription {
	events := make(chan accounts.WalletEvent, 8)
	sub := p.ks.Subscribe(events)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-events:
				if ev.Kind != accounts.WalletArrived && ev.Kind != accounts.WalletDropped {
					continue
				}
				select {
				case ch <- p.addresses():
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
}

func (p *KeystoreProvider) Transactor(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	acc := accounts.Account{Address: account}
	if !p.ks.HasAddress(account) {
		return nil, &ProviderError{Op: "transactor", Err: errors.New("account " + account.Hex() + " is not in the keystore")}
	}

	sign := func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if from != account {
			return nil, bind.ErrNotAuthorized
		}

		return p.ks.SignTxWithPassphrase(acc, p.passphrase, tx, chainID)
	}

	return &bind.TransactOpts{
		From:    account,
		Context: ctx,
		Signer:  confirmingSigner(ctx, p.confirmer, chainID, sign),
	}, nil
}

func (p *KeystoreProvider) addresses() []common.Address {
	accs := p.ks.Accounts()
	out := make([]common.Address, len(accs))
	for i, a := range accs {
		out[i] = a.Address
	}

	return out
}
