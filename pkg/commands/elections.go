package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/votechain/votechain-client/client"
	"github.com/votechain/votechain-client/elections"
	"github.com/votechain/votechain-client/pkg/commands/flags"
	"github.com/votechain/votechain-client/pkg/commands/text"
)

var (
	electionsShort = "Election operations"

	electionsLong = text.LongDesc(`
		Commands for listing, inspecting and creating elections.

		Creating an election is restricted to the contract owner.
	`)

	listShort = "List every election"

	showShort = "Show the candidates and tallies of an election"

	showLong = text.LongDesc(`
		Shows the candidates of an election with their votes and share of the total. Tallies are
		read in one pass; when any read fails nothing is shown.

		With --watch the election is reloaded every sync.poll_interval until interrupted.
	`)

	showExample = text.Examples(`
		# Show election 1
		votechain elections show --election 1

		# Follow the tallies while votes come in
		votechain elections show --election 1 --watch
	`)

	createShort = "Create an election (owner only)"

	createExample = text.Examples(`
		# Create an election with three candidates
		votechain elections create --name "Board 2025" --candidates Alice,Bob,Carol
	`)
)

type electionDetailView struct {
	ElectionID uint64          `yaml:"electionId"`
	Candidates []candidateView `yaml:"candidates"`
	Total      uint64          `yaml:"total"`
}

type candidateView struct {
	Index   int     `yaml:"index"`
	Name    string  `yaml:"name"`
	Votes   uint64  `yaml:"votes"`
	Percent float64 `yaml:"percent"`
}

// newElectionsCmd creates the "elections" command group.
func newElectionsCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "elections",
		Short: electionsShort,
		Long:  electionsLong,
	}

	cmd.AddCommand(newListElectionsCmd(cfg))
	cmd.AddCommand(newShowElectionCmd(cfg))
	cmd.AddCommand(newCreateElectionCmd(cfg))

	return cmd
}

func newListElectionsCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListElections(cmd, cfg)
		},
	}
}

func runListElections(cmd *cobra.Command, cfg Config) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	c, err := openClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	list, err := c.Syncer.RefreshElections(cmd.Context())
	if err != nil {
		return readFailed(c.Syncer.Snapshot(), err)
	}
	if len(list) == 0 {
		p.note("No elections yet")
	}

	rows := make([][]string, 0, len(list))
	for _, e := range list {
		rows = append(rows, []string{strconv.FormatUint(e.ID, 10), e.Name})
	}

	return p.render(list, []string{"ID", "Name"}, rows)
}

type showFlags struct {
	electionID uint64
	watch      bool
}

func newShowElectionCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show",
		Short:   showShort,
		Long:    showLong,
		Example: showExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := showFlags{
				electionID: flags.MustUint64(cmd.Flags().GetUint64("election")),
				watch:      flags.MustBool(cmd.Flags().GetBool("watch")),
			}

			return runShowElection(cmd, cfg, f)
		},
	}

	flags.Election(cmd)
	cmd.Flags().BoolP("watch", "w", false, "Reload the election every poll interval until interrupted")

	return cmd
}

func runShowElection(cmd *cobra.Command, cfg Config, f showFlags) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	if !f.watch {
		c, err := openClient(cmd, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		detail, err := c.Syncer.RefreshElection(cmd.Context(), f.electionID)
		if err != nil {
			return readFailed(c.Syncer.Snapshot(), err)
		}

		return renderDetail(p, detail)
	}

	// The first load runs in Select; later loads are rendered from the poll goroutine, one at
	// a time.
	c, err := openClient(cmd, cfg, client.WithPollObserver(func(detail elections.Detail, err error) {
		if err != nil {
			p.note("✗ %s", err)
			return
		}
		if rerr := renderDetail(p, detail); rerr != nil {
			p.note("✗ %s", rerr)
		}
	}))
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Poller.Select(cmd.Context(), f.electionID); err != nil {
		return readFailed(c.Syncer.Snapshot(), err)
	}
	<-cmd.Context().Done()

	return nil
}

func renderDetail(p *printer, detail elections.Detail) error {
	view := electionDetailView{ElectionID: detail.ElectionID, Total: detail.Total}
	rows := make([][]string, 0, len(detail.Candidates)+1)
	for _, cand := range detail.Candidates {
		pct := detail.Percent(cand.Index)
		view.Candidates = append(view.Candidates, candidateView{
			Index:   cand.Index,
			Name:    cand.Name,
			Votes:   cand.Votes,
			Percent: pct,
		})
		rows = append(rows, []string{
			strconv.Itoa(cand.Index),
			cand.Name,
			strconv.FormatUint(cand.Votes, 10),
			text.Percent(pct),
		})
	}
	rows = append(rows, []string{"", "Total", strconv.FormatUint(detail.Total, 10), ""})

	return p.render(view, []string{"#", "Candidate", "Votes", "Share"}, rows)
}

type createFlags struct {
	name       string
	candidates []string
}

func newCreateElectionCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create",
		Short:   createShort,
		Example: createExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := createFlags{
				name:       flags.MustString(cmd.Flags().GetString("name")),
				candidates: flags.MustStringSlice(cmd.Flags().GetStringSlice("candidates")),
			}

			return runCreateElection(cmd, cfg, f)
		},
	}

	cmd.Flags().StringP("name", "n", "", "Election name (required)")
	cmd.Flags().StringSlice("candidates", nil, "Comma-separated candidate names (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("candidates")

	return cmd
}

func runCreateElection(cmd *cobra.Command, cfg Config, f createFlags) error {
	p, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	c, err := connectClient(cmd, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if !c.Roles.IsAdmin() {
		p.note("Account is not the contract owner, the transaction is expected to revert")
	}
	report, err := c.Orchestrator.CreateElection(cmd.Context(), f.name, f.candidates)

	return settled(p, report, err)
}

// advisoryError is a failed read reported with the advisory of the snapshot it published.
type advisoryError struct {
	advisory string
	err      error
}

func (e *advisoryError) Error() string {
	return e.advisory
}

func (e *advisoryError) Unwrap() error {
	return e.err
}

func readFailed(snap *elections.Snapshot, err error) error {
	if snap == nil || snap.Advisory == "" {
		return err
	}

	return &advisoryError{advisory: snap.Advisory, err: err}
}
