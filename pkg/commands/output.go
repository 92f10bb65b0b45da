package commands

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/votechain/votechain-client/orchestrator"
	"github.com/votechain/votechain-client/pkg/commands/flags"
)

// printer renders command results as a table or as yaml.
type printer struct {
	out    io.Writer
	format string
}

func newPrinter(cmd *cobra.Command) (*printer, error) {
	format, err := flags.OutputFormat(cmd.Flags())
	if err != nil {
		return nil, err
	}

	return &printer{out: cmd.OutOrStdout(), format: format}, nil
}

// render writes v as yaml, or the rows as a table under header.
func (p *printer) render(v any, header []string, rows [][]string) error {
	if p.format == flags.OutputYAML {
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}

		return enc.Close()
	}

	table := tablewriter.NewWriter(p.out)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	if len(header) > 0 {
		table.SetHeader(header)
	}
	table.AppendBulk(rows)
	table.Render()

	return nil
}

// note writes a line that is not part of the result, such as an advisory.
func (p *printer) note(format string, args ...any) {
	if p.format == flags.OutputYAML {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// report renders the outcome of a write action. The ✓/✗ message is printed in table mode.
func (p *printer) report(r orchestrator.Report) error {
	if p.format == flags.OutputYAML {
		return p.render(r, nil, nil)
	}
	fmt.Fprintln(p.out, r.Message)
	if r.TxHash != (common.Hash{}) {
		return p.render(nil, nil, [][]string{
			{"Tx", r.TxHash.Hex()},
			{"Block", fmt.Sprint(r.Block)},
			{"Gas", fmt.Sprint(r.Gas)},
			{"Report", r.ID},
		})
	}

	return nil
}

// settled renders the report of a settled action and returns the action error. Actions
// rejected before any remote call have no report.
func settled(p *printer, report orchestrator.Report, err error) error {
	if report.ID != "" {
		if rerr := p.report(report); rerr != nil {
			return rerr
		}
	}

	return err
}
