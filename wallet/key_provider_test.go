package wallet

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votechain/votechain-client/contract/voting"
	"github.com/votechain/votechain-client/internal/testutils/ledger"
	"github.com/votechain/votechain-client/pkg/logger"
)

type scriptedConfirmer struct {
	connect bool
	sign    bool
	err     error
	signed  []SignRequest
}

func (c *scriptedConfirmer) ApproveConnection(context.Context, []common.Address) (bool, error) {
	return c.connect, c.err
}

func (c *scriptedConfirmer) ConfirmTransaction(_ context.Context, req SignRequest) (bool, error) {
	c.signed = append(c.signed, req)

	return c.sign, c.err
}

func TestNewKeyProvider(t *testing.T) {
	t.Parallel()

	_, err := NewKeyProvider(nil)
	require.Error(t, err)

	_, err = NewKeyProvider([]string{"not-a-key"})
	require.ErrorContains(t, err, "failed to convert private key 0")

	p, err := NewKeyProvider([]string{"0x" + ledger.HexKey(1), ledger.HexKey(2), " " + ledger.HexKey(1) + " "})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{ledger.Account(1), ledger.Account(2)}, p.Accounts())
}

func TestKeyProvider_RequestAccounts(t *testing.T) {
	t.Parallel()

	p, err := NewKeyProvider([]string{ledger.HexKey(1), ledger.HexKey(2)})
	require.NoError(t, err)

	accounts, err := p.RequestAccounts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{ledger.Account(1), ledger.Account(2)}, accounts)

	require.NoError(t, p.Select(ledger.Account(2)))
	accounts, err = p.RequestAccounts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{ledger.Account(2), ledger.Account(1)}, accounts)

	require.Error(t, p.Select(ledger.Account(9)))

	declined, err := NewKeyProvider([]string{ledger.HexKey(1)}, WithConfirmer(&scriptedConfirmer{}))
	require.NoError(t, err)
	_, err = declined.RequestAccounts(t.Context())
	require.ErrorIs(t, err, ErrUserRejected)

	broken, err := NewKeyProvider([]string{ledger.HexKey(1)}, WithConfirmer(&scriptedConfirmer{err: errors.New("tty closed")}))
	require.NoError(t, err)
	_, err = broken.RequestAccounts(t.Context())
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
}

func TestKeyProvider_sessionFollowsSelection(t *testing.T) {
	t.Parallel()

	p, err := NewKeyProvider([]string{ledger.HexKey(1), ledger.HexKey(2)})
	require.NoError(t, err)
	s := NewSession(logger.Test(t), p)
	require.NoError(t, s.Connect(t.Context()))
	defer s.Close()

	require.NoError(t, p.Select(ledger.Account(2)))
	require.Eventually(t, func() bool {
		got, ok := s.Account()
		return ok && got == ledger.Account(2)
	}, time.Second, 5*time.Millisecond)

	p.Lock()
	require.Eventually(t, func() bool {
		_, ok := s.Account()
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, err = p.Transactor(t.Context(), ledger.Account(2), big.NewInt(ledger.DefaultChainID))
	require.Error(t, err)
}

func TestKeyProvider_Transactor(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	h := l.Handle()
	bound := bind.NewBoundContract(h.Address, h.ABI, l, l, l)

	t.Run("confirmed", func(t *testing.T) {
		t.Parallel()

		confirmer := &scriptedConfirmer{connect: true, sign: true}
		p, err := NewKeyProvider([]string{ledger.HexKey(0)}, WithConfirmer(confirmer), WithGasLimit(500_000))
		require.NoError(t, err)

		opts, err := p.Transactor(t.Context(), ledger.Account(0), l.ChainID())
		require.NoError(t, err)
		assert.Equal(t, uint64(500_000), opts.GasLimit)

		_, err = bound.Transact(opts, voting.MethodCreateElection, "Board", []string{"A"})
		require.NoError(t, err)
		require.Len(t, confirmer.signed, 1)
		assert.Equal(t, ledger.Account(0), confirmer.signed[0].From)
		assert.Equal(t, l.ChainID(), confirmer.signed[0].ChainID)
	})

	t.Run("declined", func(t *testing.T) {
		t.Parallel()

		p, err := NewKeyProvider([]string{ledger.HexKey(3)}, WithConfirmer(&scriptedConfirmer{connect: true}))
		require.NoError(t, err)

		opts, err := p.Transactor(t.Context(), ledger.Account(3), l.ChainID())
		require.NoError(t, err)
		opts.GasLimit = 100_000

		_, err = bound.Transact(opts, voting.MethodVote, big.NewInt(1), big.NewInt(0))
		var rejected *UserRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, UserRejectedCode, rejected.ErrorCode())
	})

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()

		p, err := NewKeyProvider([]string{ledger.HexKey(0)})
		require.NoError(t, err)
		_, err = p.Transactor(t.Context(), ledger.Account(4), l.ChainID())
		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
	})
}

func TestKeystoreProvider(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	p := newKeystoreProvider(ks, "secret", nil)

	accounts, err := p.RequestAccounts(t.Context())
	require.NoError(t, err)
	assert.Empty(t, accounts)

	changes := make(chan []common.Address, 1)
	sub := p.SubscribeAccountsChanged(changes)
	defer sub.Unsubscribe()

	_, err = ks.ImportECDSA(ledger.Key(0), "secret")
	require.NoError(t, err)

	select {
	case got := <-changes:
		assert.Equal(t, []common.Address{ledger.Account(0)}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no account change received")
	}

	opts, err := p.Transactor(t.Context(), ledger.Account(0), l.ChainID())
	require.NoError(t, err)
	h := l.Handle()
	bound := bind.NewBoundContract(h.Address, h.ABI, l, l, l)
	_, err = bound.Transact(opts, voting.MethodCreateElection, "Board", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, 1, l.ElectionCount())

	_, err = p.Transactor(t.Context(), ledger.Account(1), l.ChainID())
	require.Error(t, err)

	wrongPass := newKeystoreProvider(ks, "nope", nil)
	opts, err = wrongPass.Transactor(t.Context(), ledger.Account(0), l.ChainID())
	require.NoError(t, err)
	opts.GasLimit = 100_000
	_, err = bound.Transact(opts, voting.MethodCreateElection, "Other", []string{"A"})
	require.Error(t, err)
}

func TestPrompt(t *testing.T) {
	t.Parallel()

	var out strings.Builder
	p := NewPrompt(strings.NewReader("y\nno\nYES\n"), &out)

	ok, err := p.ApproveConnection(t.Context(), []common.Address{ledger.Account(1)})
	require.NoError(t, err)
	assert.True(t, ok)

	to := ledger.Account(2)
	ok, err = p.ConfirmTransaction(t.Context(), SignRequest{From: ledger.Account(1), To: &to, ChainID: big.NewInt(1)})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.ConfirmTransaction(t.Context(), SignRequest{From: ledger.Account(1), ChainID: big.NewInt(1)})
	require.NoError(t, err)
	assert.True(t, ok)

	// End of input declines.
	ok, err = p.ApproveConnection(t.Context(), nil)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Contains(t, out.String(), "Connect account(s) "+ledger.Account(1).Hex())
	assert.Contains(t, out.String(), "contract creation")
}
