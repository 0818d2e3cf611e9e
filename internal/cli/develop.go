package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// developCommand creates the develop command, the main entry point.
func (c *CLI) developCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "develop FEED... WORKSPACE",
		Short: "Create a development workspace for one or more feeds",
		Long: `Create a development workspace for one or more feeds.

Every requested feed is solved for its develop command and the selections
are merged. The workspace is a new git repository: requested components are
checked out at its top level, everything they depend on under .dependencies/.
A top-level CMakeLists.txt builds them all; the first configure pass stops
and asks to be run again.`,
		Example: `  stackseed develop http://ryppl.github.com/feeds/boost/config.xml boost-dev
  stackseed develop --refresh ./feeds/app.xml ./feeds/tool.xml ws`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runner.Close()

			feeds, workspace := splitDevelopArgs(args)
			opts := c.pipelineOptions(cfg, feeds, refresh)
			opts.Workspace = workspace

			prog := newProgress(c.Logger)
			result, err := runner.Develop(cmd.Context(), opts)
			if err != nil {
				if result != nil {
					for _, rec := range result.Failed() {
						printError("%s: %v", rec.Name, rec.Err)
					}
					printWarning("Workspace %s was left uncommitted", result.Workspace.Root)
				}
				return err
			}
			prog.done(fmt.Sprintf("Workspace ready with %d components", len(result.Records)))

			printSuccess("Created workspace %s", result.Workspace.Root)
			printKeyValue("Components", fmt.Sprintf("%d", len(result.Records)))
			printKeyValue("Top-level", fmt.Sprintf("%d", len(result.Descriptors.TopDirs)))
			printKeyValue("Dependencies", fmt.Sprintf("%d", len(result.Descriptors.DepDirs)))
			printNewline()
			printNextStep("Configure it", fmt.Sprintf("cmake -S %s -B %s/build", result.Workspace.Root, result.Workspace.Root))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "download every feed, ignoring the cache")
	return cmd
}

// splitDevelopArgs separates the feeds from the workspace path, which is
// always the last argument.
func splitDevelopArgs(args []string) (feeds []string, workspace string) {
	n := len(args) - 1
	return args[:n], args[n]
}
