package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "netonboard",
		Short: "netonboard - declarative BIG-IP onboarding",
		Long: `netonboard reconciles the network and system configuration of an F5 BIG-IP
with a declaration.

It:
  - Deletes objects the declaration no longer names, in dependency order
  - Applies system, GSLB and analytics settings
  - Guards deletions with Rego policies
  - Records every pass and snapshot in SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newPruneCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newHandlersCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newStateCommand())
	rootCmd.AddCommand(newPoliciesCommand())

	return rootCmd
}
