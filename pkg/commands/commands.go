// Package commands provides the votechain CLI.
//
//	cmd, err := commands.NewCommand(commands.Config{})
//	if err != nil {
//	    return err
//	}
//	return cmd.ExecuteContext(ctx)
//
// Every command loads the client configuration named by --config, builds a client.Client and
// closes it before returning. Tests inject the loader and the client factory through Deps.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/votechain/votechain-client/client"
	"github.com/votechain/votechain-client/pkg/commands/flags"
	"github.com/votechain/votechain-client/pkg/commands/text"
	"github.com/votechain/votechain-client/pkg/logger"
	"github.com/votechain/votechain-client/wallet"
)

var (
	rootShort = "Client for the Voting contract"

	rootLong = text.LongDesc(`
		Lists elections, tallies and registered voters of a Voting contract, and creates
		elections, registers voters and casts votes with the configured wallet.

		Every write is simulated before it is signed, and is never retried automatically.
	`)
)

// Config holds the configuration of the CLI.
type Config struct {
	// Logger replaces the logger built from the log section of the client configuration.
	Logger logger.Logger

	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates the root votechain command with all subcommands.
func NewCommand(cfg Config) (*cobra.Command, error) {
	cfg.deps()

	cmd := &cobra.Command{
		Use:           "votechain",
		Short:         rootShort,
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.Config(cmd)
	flags.Output(cmd)

	cmd.AddCommand(newAccountCmd(cfg))
	cmd.AddCommand(newElectionsCmd(cfg))
	cmd.AddCommand(newVotersCmd(cfg))
	cmd.AddCommand(newVoteCmd(cfg))

	return cmd, nil
}

// openClient loads the configuration and builds the client. The wallet prompts on the
// command's streams unless the configuration auto-approves.
func openClient(cmd *cobra.Command, cfg Config, opts ...client.Option) (*client.Client, error) {
	deps := cfg.deps()

	ccfg, err := deps.ConfigLoader(flags.MustString(cmd.Flags().GetString("config")))
	if err != nil {
		return nil, err
	}

	var base []client.Option
	if cfg.Logger != nil {
		base = append(base, client.WithLogger(cfg.Logger))
	}
	if !ccfg.Wallet.AutoApprove {
		base = append(base, client.WithConfirmer(wallet.NewPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())))
	}

	return deps.ClientFactory(cmd.Context(), ccfg, append(base, opts...)...)
}

// connectClient opens the client and connects its wallet.
func connectClient(cmd *cobra.Command, cfg Config, opts ...client.Option) (*client.Client, error) {
	c, err := openClient(cmd, cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(cmd.Context()); err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}
