package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackseed/pkg/depgraph"
	"github.com/matzehuels/stackseed/pkg/errors"
)

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		refresh bool
		format  string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "graph FEED...",
		Short: "Render the dependency graph of the merged selections",
		Long: `Resolve the feeds and render the selected components as a graph.

Requested components are drawn bold, placeholder selections dashed.`,
		Example: `  stackseed graph ./feeds/app.xml | dot -Tpng > app.png
  stackseed graph --format svg -o app.svg ./feeds/app.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != depgraph.FormatDOT && format != depgraph.FormatSVG {
				return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: dot, svg)", format)
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			runner, err := c.newResolveRunner(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runner.Close()

			opts := c.pipelineOptions(cfg, args, refresh)
			if err := opts.ValidateForResolve(); err != nil {
				return err
			}
			sels, err := runner.Resolve(cmd.Context(), opts)
			if err != nil {
				return err
			}
			data, err := depgraph.Render(cmd.Context(), depgraph.Build(sels, opts.Feeds), format)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := c.Out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			printSuccess("Rendered %d components", sels.Len())
			printFile(output)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "download every feed, ignoring the cache")
	cmd.Flags().StringVarP(&format, "format", "f", depgraph.FormatDOT, "output format (dot, svg)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
