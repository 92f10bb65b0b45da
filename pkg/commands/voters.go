package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/votechain/votechain-client/elections"
	"github.com/votechain/votechain-client/pkg/commands/flags"
	"github.com/votechain/votechain-client/pkg/commands/text"
)

var (
	votersShort = "Voter registration operations"

	votersLong = text.LongDesc(`
		Commands for listing and registering the voters of an election.

		The voter list is read with the owner-only contract call when the connected account is
		the owner, and rebuilt from the VoterRegistered logs otherwise. Registering voters is
		restricted to the contract owner.
	`)

	votersListShort = "List the registered voters of an election"

	registerShort = "Register one voter for an election (owner only)"

	registerBulkShort = "Register many voters for an election in one transaction (owner only)"

	registerBulkExample = text.Examples(`
		# Register three voters, duplicates and blanks are ignored
		votechain voters register-bulk --election 1 --voters 0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B,0x4Bbeeb066eD09B7AEd07bF39EEe0460DFa261520
	`)
)

// newVotersCmd creates the "voters" command group.
func newVotersCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voters",
		Short: votersShort,
		Long:  votersLong,
	}

	cmd.AddCommand(newListVotersCmd(cfg))
	cmd.AddCommand(newRegisterVoterCmd(cfg))
	cmd.AddCommand(newRegisterVotersCmd(cfg))

	return cmd
}

func newListVotersCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: votersListShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListVoters(cmd, cfg, flags.MustUint64(cmd.Flags().GetUint64("election")))
		},
	}
	flags.Election(cmd)

	return cmd
}

func runListVoters(cmd *cobra.Command, cfg Config, electionID uint64) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	c, err := openClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	// Listing works without a wallet, the privileged read then falls back to the logs.
	if err := c.Connect(cmd.Context()); err != nil {
		c.Logger.Debugw("Listing voters without a connected account", "err", err)
	}

	list, err := c.Syncer.RefreshVoters(cmd.Context(), electionID)
	if err != nil {
		return readFailed(c.Syncer.Snapshot(), err)
	}

	return renderVoters(p, list)
}

func renderVoters(p *printer, list elections.VoterList) error {
	if len(list.Voters) == 0 {
		p.note("No registered voters")
	}
	rows := make([][]string, 0, len(list.Voters))
	for i, v := range list.Voters {
		rows = append(rows, []string{strconv.Itoa(i + 1), v.Hex()})
	}
	if err := p.render(list, []string{"#", "Voter"}, rows); err != nil {
		return err
	}
	p.note("Source: %s", list.Source)

	return nil
}

type registerFlags struct {
	electionID uint64
	voter      string
}

func newRegisterVoterCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: registerShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := registerFlags{
				electionID: flags.MustUint64(cmd.Flags().GetUint64("election")),
				voter:      flags.MustString(cmd.Flags().GetString("voter")),
			}

			return runRegisterVoter(cmd, cfg, f)
		},
	}

	flags.Election(cmd)
	cmd.Flags().String("voter", "", "Voter address (required)")
	_ = cmd.MarkFlagRequired("voter")

	return cmd
}

func runRegisterVoter(cmd *cobra.Command, cfg Config, f registerFlags) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	c, err := connectClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.Orchestrator.RegisterVoter(cmd.Context(), f.electionID, f.voter)

	return settled(p, report, err)
}

type registerBulkFlags struct {
	electionID uint64
	voters     string
}

func newRegisterVotersCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "register-bulk",
		Short:   registerBulkShort,
		Example: registerBulkExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := registerBulkFlags{
				electionID: flags.MustUint64(cmd.Flags().GetUint64("election")),
				voters:     flags.MustString(cmd.Flags().GetString("voters")),
			}

			return runRegisterVoters(cmd, cfg, f)
		},
	}

	flags.Election(cmd)
	// A plain string keeps the list as typed; it is trimmed and deduplicated by the client.
	cmd.Flags().String("voters", "", "Comma-separated voter addresses (required)")
	_ = cmd.MarkFlagRequired("voters")

	return cmd
}

func runRegisterVoters(cmd *cobra.Command, cfg Config, f registerBulkFlags) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	c, err := connectClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.Orchestrator.RegisterVoters(cmd.Context(), f.electionID, f.voters)

	return settled(p, report, err)
}
