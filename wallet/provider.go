// Package wallet manages the connection to the wallet holding the user's keys: which account is
// active, how transactions get signed, and the prompts the user answers along the way.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// Provider is a source of accounts and signatures.
type Provider interface {
	// RequestAccounts asks for access to the accounts, the active one first.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// SubscribeAccountsChanged delivers the new account list, active first, whenever it
	// changes. An empty list means every account was disconnected.
	SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription
	// Transactor returns the signing identity of account on the chain.
	Transactor(ctx context.Context, account common.Address, chainID *big.Int) (*bind.TransactOpts, error)
}

// SignRequest describes a transaction waiting for the user's confirmation.
type SignRequest struct {
	From    common.Address
	To      *common.Address
	Nonce   uint64
	Gas     uint64
	ChainID *big.Int
	Data    []byte
}

// Confirmer asks the wallet holder to approve requests. Returning false declines the request.
type Confirmer interface {
	ApproveConnection(ctx context.Context, accounts []common.Address) (bool, error)
	ConfirmTransaction(ctx context.Context, req SignRequest) (bool, error)
}

// AutoApprove is a non-interactive Confirmer that approves everything.
type AutoApprove struct{}

func (AutoApprove) ApproveConnection(context.Context, []common.Address) (bool, error) {
	return true, nil
}

func (AutoApprove) ConfirmTransaction(context.Context, SignRequest) (bool, error) {
	return true, nil
}

func approveConnection(ctx context.Context, c Confirmer, accounts []common.Address) error {
	ok, err := c.ApproveConnection(ctx, accounts)
	if err != nil {
		return &ProviderError{Op: "approve connection", Err: err}
	}
	if !ok {
		return &UserRejectedError{Action: "account access"}
	}

	return nil
}

// confirmingSigner asks c before handing the transaction to sign.
func confirmingSigner(ctx context.Context, c Confirmer, chainID *big.Int, sign bind.SignerFn) bind.SignerFn {
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		ok, err := c.ConfirmTransaction(ctx, SignRequest{
			From:    from,
			To:      tx.To(),
			Nonce:   tx.Nonce(),
			Gas:     tx.Gas(),
			ChainID: chainID,
			Data:    tx.Data(),
		})
		if err != nil {
			return nil, &ProviderError{Op: "confirm transaction", Err: err}
		}
		if !ok {
			return nil, &UserRejectedError{Action: "transaction signature"}
		}

		return sign(from, tx)
	}
}
