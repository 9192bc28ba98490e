package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoStateProvider = errors.New("no state provider configured; set state.provider")

func newStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Manage device snapshots",
		Long: `Read and write the snapshot that seeds deletion candidates.

The snapshot lives wherever state.provider points: a local file, the SQLite
store or a file on the tunnel host.`,
	}

	cmd.AddCommand(newStateSaveCommand())
	cmd.AddCommand(newStateShowCommand())

	return cmd
}

func newStateSaveCommand() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Store a snapshot as the current state",
		Example: `  # Save the declaration that was just applied
  netonboard state save --from declaration.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(from)
			if err != nil {
				return err
			}

			rt, ctx, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			provider, err := rt.stateProvider()
			if err != nil {
				return err
			}
			if provider == nil {
				return errNoStateProvider
			}

			if err := provider.Save(ctx, data); err != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}
			rt.audit(ctx, "snapshot.saved", provider.Name(), map[string]interface{}{"from": from, "bytes": len(data)})

			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot saved to %s.\n", provider.Name())
			return nil
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "snapshot file, - for stdin")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func newStateShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, ctx, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			provider, err := rt.stateProvider()
			if err != nil {
				return err
			}
			if provider == nil {
				return errNoStateProvider
			}

			snapshot, err := provider.CurrentState(ctx)
			if err != nil {
				return err
			}
			if snapshot == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshot stored.")
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), snapshot)
		},
	}
}
