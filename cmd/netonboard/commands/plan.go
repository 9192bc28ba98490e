package commands

import (
	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var (
		declarationFile string
		stateFile       string
		output          string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a prune would delete",
		Long: `Build the deletion plan for a deletion declaration without deleting anything.

Device collections are still listed to find remote candidates.`,
		Example: `  # Show the plan as a table
  netonboard plan --declaration declaration.json

  # Export the plan as YAML
  netonboard plan -d declaration.json -o yaml`,
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

			handler, err := rt.deleteHandler(ctx, declarationFile, stateFile)
			if err != nil {
				return err
			}

			plan, err := handler.Plan(ctx)
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), plan, format)
		},
	}

	cmd.Flags().StringVarP(&declarationFile, "declaration", "d", "", "declaration file, - for stdin")
	cmd.Flags().StringVar(&stateFile, "state", "", "snapshot file used instead of the state provider")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table, json, yaml)")
	_ = cmd.MarkFlagRequired("declaration")

	return cmd
}
