package evm_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votechain/votechain-client/chain/evm"
	"github.com/votechain/votechain-client/contract/voting"
	"github.com/votechain/votechain-client/internal/testutils/ledger"
)

func sendVote(t *testing.T, l *ledger.Ledger, key int, electionID uint64, index int64) *types.Transaction {
	t.Helper()

	opts, err := bind.NewKeyedTransactorWithChainID(ledger.Key(key), l.ChainID())
	require.NoError(t, err)
	opts.GasLimit = 100_000

	h := l.Handle()
	bound := bind.NewBoundContract(h.Address, h.ABI, l, l, l)
	tx, err := bound.Transact(opts, voting.MethodVote, new(big.Int).SetUint64(electionID), big.NewInt(index))
	require.NoError(t, err)

	return tx
}

func TestConfirmFuncGeth(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	id := l.SeedElection("Board", "Alice", "Bob")
	l.SeedRegistration(id, ledger.Account(1))
	confirm := evm.ConfirmFuncGeth(l, time.Second, evm.WithTickInterval(5*time.Millisecond))

	t.Run("success", func(t *testing.T) {
		tx := sendVote(t, l, 1, id, 0)
		block, err := confirm(t.Context(), tx)
		require.NoError(t, err)
		assert.Equal(t, l.Block(), block)
	})

	t.Run("reverted receipt replays the call", func(t *testing.T) {
		// Not registered, the replay reverts with the contract reason.
		tx := sendVote(t, l, 2, id, 0)
		_, err := confirm(t.Context(), tx)

		var reverted *evm.ReceiptRevertedError
		require.ErrorAs(t, err, &reverted)
		assert.Equal(t, tx.Hash(), reverted.TxHash)
		assert.NotEmpty(t, reverted.Reason)

		var dataErr rpc.DataError
		require.ErrorAs(t, err, &dataErr)
		assert.Contains(t, dataErr.Error(), ledger.ReasonNotRegistered)
	})

	t.Run("nil tx", func(t *testing.T) {
		_, err := confirm(t.Context(), nil)
		require.ErrorContains(t, err, "tx was nil")
	})

	t.Run("never mined", func(t *testing.T) {
		short := evm.ConfirmFuncGeth(l, 30*time.Millisecond, evm.WithTickInterval(5*time.Millisecond))
		tx := types.NewTx(&types.LegacyTx{Nonce: 99})
		_, err := short(t.Context(), tx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
