package commands

import (
	"github.com/spf13/cobra"

	"github.com/votechain/votechain-client/pkg/commands/flags"
	"github.com/votechain/votechain-client/pkg/commands/text"
)

var (
	voteShort = "Cast a vote for a candidate"

	voteLong = text.LongDesc(`
		Casts the connected account's vote for the candidate at --candidate in an election. The
		account must be registered for the election and may vote once.
	`)

	voteExample = text.Examples(`
		# Vote for the second candidate of election 1
		votechain vote --election 1 --candidate 1
	`)
)

type voteFlags struct {
	electionID uint64
	candidate  int
}

// newVoteCmd creates the "vote" command.
func newVoteCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vote",
		Short:   voteShort,
		Long:    voteLong,
		Example: voteExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := voteFlags{
				electionID: flags.MustUint64(cmd.Flags().GetUint64("election")),
				candidate:  flags.MustInt(cmd.Flags().GetInt("candidate")),
			}

			return runVote(cmd, cfg, f)
		},
	}

	flags.Election(cmd)
	cmd.Flags().Int("candidate", -1, "Candidate index, starting at 0 (required)")
	_ = cmd.MarkFlagRequired("candidate")

	return cmd
}

func runVote(cmd *cobra.Command, cfg Config, f voteFlags) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	c, err := connectClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.Orchestrator.CastVote(cmd.Context(), f.electionID, f.candidate)
	if err := settled(p, report, err); err != nil {
		return err
	}
	if detail, ok := c.Syncer.Snapshot().Detail(f.electionID); ok {
		p.note("Election %d now has %d vote(s)", f.electionID, detail.Total)
	}

	return nil
}
