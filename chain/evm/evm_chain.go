package evm

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"

	chainsel "github.com/smartcontractkit/chain-selectors"
)

// ConfirmFunc waits for a transaction to be confirmed and returns the block number it was
// included in.
type ConfirmFunc func(ctx context.Context, tx *types.Transaction) (uint64, error)

// OnchainClient is an EVM chain client.
// For EVM specifically we can use existing geth interface to abstract chain clients.
type OnchainClient interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Chain represents the EVM chain the Voting contract lives on.
type Chain struct {
	ID       *big.Int
	Selector uint64
	Client   OnchainClient
	Confirm  ConfirmFunc

	name string
}

// NewChain resolves the chain metadata for chainID. Chains unknown to chain-selectors (a local
// devnet for instance) are still usable and are named "evm-<chainID>".
func NewChain(chainID uint64, client OnchainClient, confirm ConfirmFunc) Chain {
	c := Chain{
		ID:      new(big.Int).SetUint64(chainID),
		Client:  client,
		Confirm: confirm,
		name:    "evm-" + strconv.FormatUint(chainID, 10),
	}
	if details, err := chainsel.GetChainDetailsByChainIDAndFamily(strconv.FormatUint(chainID, 10), chainsel.FamilyEVM); err == nil {
		c.Selector = details.ChainSelector
		if details.ChainName != "" {
			c.name = details.ChainName
		}
	}

	return c
}

// ChainSelector returns the chain selector of the chain, zero when it is unknown.
func (c Chain) ChainSelector() uint64 {
	return c.Selector
}

// Name returns the name of the chain.
func (c Chain) Name() string {
	return c.name
}

// String returns chain name and chain id "<name> (<chainID>)"
func (c Chain) String() string {
	return fmt.Sprintf("%s (%s)", c.name, c.ID)
}

// Known reports whether chain-selectors knows the chain.
func (c Chain) Known() bool {
	return c.Selector != 0
}

// ChainName returns the name for chainID, falling back to "evm-<chainID>".
func ChainName(chainID uint64) string {
	return NewChain(chainID, nil, nil).Name()
}
