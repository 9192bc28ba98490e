package commands

import (
	"github.com/spf13/cobra"
)

func newPoliciesCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List deletion guard policies",
		Long: `List built-in policies and those loaded from engine.policy_paths, with
the enabled state the configuration gives them.`,
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

			rt.cfg.Engine.WatchPolicies = false
			guard, err := rt.guard(ctx)
			if err != nil {
				return err
			}
			return writePolicies(cmd.OutOrStdout(), guard.ListPolicies(), format)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table, json, yaml)")

	return cmd
}
