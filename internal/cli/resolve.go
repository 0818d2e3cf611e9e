package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackseed/pkg/depgraph"
	"github.com/matzehuels/stackseed/pkg/observability"
	"github.com/matzehuels/stackseed/pkg/selection"
)

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "resolve FEED...",
		Short: "Show the merged selections for one or more feeds",
		Long: `Solve every feed for its develop command, merge the selections and print
them without creating a workspace.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			runner, err := c.newResolveRunner(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runner.Close()

			spinner := newSpinnerWithContext(cmd.Context(), "Resolving feeds...")
			spinner.Start()
			observability.SetPipelineHooks(&solveProgress{PipelineHooks: observability.Pipeline(), spinner: spinner})
			sels, err := runner.Resolve(cmd.Context(), c.pipelineOptions(cfg, args, refresh))
			if err != nil {
				spinner.StopWithError("Resolution failed")
				return err
			}
			spinner.StopWithSuccess(fmt.Sprintf("Resolved %d components", sels.Len()))
			renderSelections(c.Out, sels)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "download every feed, ignoring the cache")
	return cmd
}

// solveProgress names the feed being solved on the spinner and forwards
// every event to the hooks it wraps.
type solveProgress struct {
	observability.PipelineHooks
	spinner *Spinner
}

func (p *solveProgress) OnSolveStart(ctx context.Context, uri string, refresh bool) {
	p.PipelineHooks.OnSolveStart(ctx, uri, refresh)
	msg := fmt.Sprintf("Solving %s...", depgraph.Label(uri))
	if refresh {
		msg = fmt.Sprintf("Refreshing %s...", depgraph.Label(uri))
	}
	p.spinner.SetMessage(msg)
}

// renderSelections prints sels as a table.
func renderSelections(w io.Writer, sels *selection.Set) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	placeholderStyle := cellStyle.Foreground(colorGray)

	all := sels.All()
	rows := make([][]string, 0, len(all))
	for _, s := range all {
		placeholder := ""
		if s.Placeholder {
			placeholder = "yes"
		}
		rows = append(rows, []string{depgraph.Label(s.Interface), s.ID, s.Version, s.Revision(), placeholder})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Component", "ID", "Version", "Revision", "Placeholder").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(all) && all[row].Placeholder {
				return placeholderStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t)
}
