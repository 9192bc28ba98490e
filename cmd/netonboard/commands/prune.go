package commands

import (
	"github.com/spf13/cobra"
)

func newPruneCommand() *cobra.Command {
	var (
		declarationFile string
		stateFile       string
		maxParallel     int
		output          string
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete the objects named by a deletion declaration",
		Long: `Run one reconciliation pass against the configured device.

The declaration lists the objects to remove. The pass:
  - Takes candidates from the declaration, and from the device for
    authentication objects
  - Resolves paths with the last known state (localOnly routes)
  - Drops protected instances and steps vetoed by policy
  - Deletes the rest in dependency order, one stage at a time
  - Removes route domains in a single transaction
  - Stops at the first failing stage and records the pass`,
		Example: `  # Prune using the configured state provider
  netonboard prune --declaration declaration.json

  # Prune against a saved snapshot
  netonboard prune --declaration declaration.json --state last.json

  # Read the declaration from stdin with limited parallelism
  cat declaration.json | netonboard prune -d - --max-parallel 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}

			rt, ctx, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if cmd.Flags().Changed("max-parallel") {
				rt.cfg.Engine.MaxParallel = maxParallel
			}

			handler, err := rt.deleteHandler(ctx, declarationFile, stateFile)
			if err != nil {
				return err
			}

			result, err := handler.Reconcile(ctx)
			if result != nil {
				if werr := writeResult(cmd.OutOrStdout(), result, format); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&declarationFile, "declaration", "d", "", "declaration file, - for stdin")
	cmd.Flags().StringVar(&stateFile, "state", "", "snapshot file used instead of the state provider")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "max concurrent steps per stage (0 is unbounded)")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table, json)")
	_ = cmd.MarkFlagRequired("declaration")

	return cmd
}
