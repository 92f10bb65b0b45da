package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/votechain/votechain-client/client"
	"github.com/votechain/votechain-client/config"
	"github.com/votechain/votechain-client/contract"
	"github.com/votechain/votechain-client/internal/testutils/ledger"
	"github.com/votechain/votechain-client/orchestrator"
	"github.com/votechain/votechain-client/pkg/logger"
	"github.com/votechain/votechain-client/wallet"
)

// newTestConfig returns a configuration for the ledger's contract with the wallet holding the
// test key at index key.
func newTestConfig(l *ledger.Ledger, key int) *config.Config {
	return &config.Config{
		Chain: config.ChainConfig{
			ChainID:        ledger.DefaultChainID,
			RPCURL:         "http://localhost:8545",
			ConfirmTimeout: 5 * time.Second,
		},
		Contract: config.ContractConfig{Address: l.Address().Hex()},
		Wallet: config.WalletConfig{
			PrivateKeys: []string{ledger.HexKey(key)},
			AutoApprove: true,
		},
		Sync: config.SyncConfig{PollInterval: 20 * time.Millisecond},
	}
}

// newTestCommand creates the root command talking to the ledger.
func newTestCommand(t *testing.T, l *ledger.Ledger, ccfg *config.Config) *cobra.Command {
	t.Helper()

	cmd, err := NewCommand(Config{
		Logger: logger.Test(t),
		Deps: Deps{
			ConfigLoader: func(string) (*config.Config, error) {
				return ccfg, nil
			},
			ClientFactory: func(ctx context.Context, cfg *config.Config, opts ...client.Option) (*client.Client, error) {
				return client.New(ctx, cfg, append(opts, client.WithOnchainClient(l))...)
			},
		},
	})
	require.NoError(t, err)

	return cmd
}

// execute runs a fresh root command and returns what it printed.
func execute(t *testing.T, l *ledger.Ledger, ccfg *config.Config, args ...string) (string, error) {
	t.Helper()

	cmd := newTestCommand(t, l, ccfg)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())

	return out.String(), err
}

func TestNewCommand_Structure(t *testing.T) {
	t.Parallel()

	cmd := newTestCommand(t, ledger.New(ledger.Account(0), ledger.DefaultChainID), nil)

	assert.Equal(t, "votechain", cmd.Use)
	assert.NotEmpty(t, cmd.Long)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("output"))

	subs := map[string][]string{}
	for _, sc := range cmd.Commands() {
		var uses []string
		for _, sub := range sc.Commands() {
			uses = append(uses, sub.Use)
		}
		subs[sc.Use] = uses
	}
	assert.Len(t, subs, 4)
	assert.Empty(t, subs["account"])
	assert.Empty(t, subs["vote"])
	assert.ElementsMatch(t, []string{"list", "show", "create"}, subs["elections"])
	assert.ElementsMatch(t, []string{"list", "register", "register-bulk"}, subs["voters"])
}

func TestAccount(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)

	t.Run("owner as table", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, l, newTestConfig(l, 0), "account")
		require.NoError(t, err)
		assert.Contains(t, out, ledger.Account(0).Hex())
		assert.Contains(t, out, "yes")
		assert.Contains(t, out, "Voting 1.0.0")
	})

	t.Run("voter as yaml", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, l, newTestConfig(l, 1), "account", "-o", "yaml")
		require.NoError(t, err)

		var view accountView
		require.NoError(t, yaml.Unmarshal([]byte(out), &view))
		assert.Equal(t, ledger.Account(1).Hex(), view.Account)
		assert.False(t, view.Admin)
		assert.Equal(t, ledger.Account(0).Hex(), view.Owner)
		assert.Equal(t, l.Address().Hex(), view.Contract)
	})
}

func TestElections_listAndShow(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	l.SeedElection("Board", "Alice", "Bob")
	l.SeedElection("Budget", "Yes", "No")
	l.SetVotes(1, 0, 3)
	l.SetVotes(1, 1, 1)

	out, err := execute(t, l, newTestConfig(l, 1), "elections", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Board")
	assert.Contains(t, out, "Budget")

	out, err = execute(t, l, newTestConfig(l, 1), "elections", "show", "--election", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "25.0%")

	out, err = execute(t, l, newTestConfig(l, 1), "-o", "yaml", "elections", "show", "--election", "1")
	require.NoError(t, err)
	var view electionDetailView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, uint64(4), view.Total)
	require.Len(t, view.Candidates, 2)
	assert.Equal(t, "Alice", view.Candidates[0].Name)
	assert.InDelta(t, 75.0, view.Candidates[0].Percent, 0.001)

	_, err = execute(t, l, newTestConfig(l, 1), "elections", "show", "--election", "9")
	require.ErrorContains(t, err, "Could not load")
}

func TestElections_showWatch(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	l.SeedElection("Board", "Alice", "Bob")

	cmd := newTestCommand(t, l, newTestConfig(l, 1))
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"elections", "show", "--election", "1", "--watch"})

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, cmd.ExecuteContext(ctx))

	// The initial load plus at least one poll.
	assert.GreaterOrEqual(t, strings.Count(out.String(), "Total"), 2)
}

func TestElections_create(t *testing.T) {
	t.Parallel()

	t.Run("by the owner", func(t *testing.T) {
		t.Parallel()

		l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
		out, err := execute(t, l, newTestConfig(l, 0), "elections", "create", "--name", "Board", "--candidates", "Alice,Bob")
		require.NoError(t, err)
		assert.Contains(t, out, `✓ Election "Board" created!`)
		assert.Equal(t, 1, l.ElectionCount())
	})

	t.Run("by another account", func(t *testing.T) {
		t.Parallel()

		l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
		out, err := execute(t, l, newTestConfig(l, 1), "elections", "create", "--name", "Board", "--candidates", "Alice")

		var serr *orchestrator.SimulationRevertError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, out, "not the contract owner")
		assert.Contains(t, out, "✗ "+ledger.ReasonOnlyOwner)
		assert.Zero(t, l.ElectionCount())
	})

	t.Run("missing candidates", func(t *testing.T) {
		t.Parallel()

		l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
		_, err := execute(t, l, newTestConfig(l, 0), "elections", "create", "--name", "Board")
		require.ErrorContains(t, err, `required flag(s) "candidates" not set`)
	})
}

func TestVoters(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	l.SeedElection("Board", "Alice", "Bob")
	owner := newTestConfig(l, 0)

	out, err := execute(t, l, owner, "voters", "register", "--election", "1", "--voter", ledger.Account(1).Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Voter "+ledger.Account(1).Hex()+" registered!")

	bulk := strings.Join([]string{ledger.Account(2).Hex(), " " + ledger.Account(3).Hex(), ledger.Account(2).Hex(), ""}, ",")
	out, err = execute(t, l, owner, "voters", "register-bulk", "--election", "1", "--voters", bulk)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 voter(s) registered!")

	out, err = execute(t, l, owner, "voters", "list", "--election", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Source: privileged-read")
	for i := 1; i <= 3; i++ {
		assert.Contains(t, out, ledger.Account(i).Hex())
	}

	out, err = execute(t, l, newTestConfig(l, 4), "voters", "list", "--election", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Source: event-scan")
	assert.Contains(t, out, ledger.Account(3).Hex())

	_, err = execute(t, l, owner, "voters", "register", "--election", "1", "--voter", "0x1234")
	var verr *orchestrator.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "voter", verr.Field)
}

func TestVote(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	l.SeedElection("Board", "Alice", "Bob")
	l.SeedRegistration(1, ledger.Account(1))

	out, err := execute(t, l, newTestConfig(l, 1), "vote", "--election", "1", "--candidate", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Vote cast successfully!")
	assert.Contains(t, out, "Election 1 now has 1 vote(s)")
	assert.Equal(t, []uint64{0, 1}, l.Votes(1))

	out, err = execute(t, l, newTestConfig(l, 1), "vote", "--election", "1", "--candidate", "0")
	require.Error(t, err)
	assert.Contains(t, out, "✗ "+ledger.ReasonAlreadyVoted)

	_, err = execute(t, l, newTestConfig(l, 1), "vote", "--election", "1")
	require.ErrorContains(t, err, `required flag(s) "candidate" not set`)
}

func TestVote_prompt(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	l.SeedElection("Board", "Alice", "Bob")
	l.SeedRegistration(1, ledger.Account(1))
	ccfg := newTestConfig(l, 1)
	ccfg.Wallet.AutoApprove = false

	t.Run("declined signature", func(t *testing.T) {
		cmd := newTestCommand(t, l, ccfg)
		out := new(bytes.Buffer)
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetIn(strings.NewReader("y\nn\n"))
		cmd.SetArgs([]string{"vote", "--election", "1", "--candidate", "0"})

		err := cmd.ExecuteContext(t.Context())
		require.Error(t, err)
		assert.True(t, orchestrator.IsRejection(err))
		assert.Contains(t, out.String(), "Connect account(s)")
		assert.Contains(t, out.String(), "Sign transaction from")
		assert.Equal(t, []uint64{0, 0}, l.Votes(1))
	})

	t.Run("declined connection", func(t *testing.T) {
		cmd := newTestCommand(t, l, ccfg)
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetIn(strings.NewReader("n\n"))
		cmd.SetArgs([]string{"vote", "--election", "1", "--candidate", "0"})

		require.ErrorIs(t, cmd.ExecuteContext(t.Context()), wallet.ErrUserRejected)
	})
}

func TestNoContract(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	ccfg := newTestConfig(l, 0)
	ccfg.Contract.Address = ""

	_, err := execute(t, l, ccfg, "elections", "list")
	require.ErrorIs(t, err, contract.ErrNoHandle)
	require.EqualError(t, err, "Contract not deployed, nothing to show")

	_, err = execute(t, l, ccfg, "vote", "--election", "1", "--candidate", "0")
	require.ErrorIs(t, err, contract.ErrNoHandle)
}

func TestInvalidOutput(t *testing.T) {
	t.Parallel()

	l := ledger.New(ledger.Account(0), ledger.DefaultChainID)
	_, err := execute(t, l, newTestConfig(l, 0), "-o", "json", "elections", "list")
	require.ErrorContains(t, err, `invalid output format "json"`)
}

func TestDefaultConfigLoader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.yml")
	require.NoError(t, os.WriteFile(valid, []byte("chain:\n  chain_id: 1337\n  rpc_url: http://localhost:8545\n"), 0o600))
	cfg, err := defaultConfigLoader(valid)
	require.NoError(t, err)
	assert.Equal(t, uint64(1337), cfg.Chain.ChainID)

	invalid := filepath.Join(dir, "invalid.yml")
	require.NoError(t, os.WriteFile(invalid, []byte("chain:\n  rpc_url: http://localhost:8545\n"), 0o600))
	_, err = defaultConfigLoader(invalid)
	require.ErrorContains(t, err, "chain.chain_id is required")
}
