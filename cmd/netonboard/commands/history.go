package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/netonboard/netonboard/pkg/engine"
	"github.com/netonboard/netonboard/pkg/stores"
)

var errStoreDisabled = errors.New("the store is disabled; set store.enabled")

func newHistoryCommand() *cobra.Command {
	var (
		limit     int
		status    string
		passID    string
		olderThan time.Duration
		output    string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded reconciliation passes",
		Example: `  # Last 20 passes
  netonboard history

  # Failed passes only
  netonboard history --status failed

  # Steps of one pass
  netonboard history --pass 3f1c...

  # Remove passes older than 30 days
  netonboard history --prune 720h`,
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

			if rt.store == nil {
				return errStoreDisabled
			}
			out := cmd.OutOrStdout()

			if olderThan > 0 {
				n, err := rt.store.DeletePassesBefore(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				rt.audit(ctx, "history.pruned", "", map[string]interface{}{"deleted": n, "older_than": olderThan.String()})
				fmt.Fprintf(out, "Deleted %d passes.\n", n)
				return nil
			}

			if passID != "" {
				pass, err := rt.store.GetPass(ctx, passID)
				if err != nil {
					if errors.Is(err, stores.ErrNotFound) {
						return fmt.Errorf("pass %s not found", passID)
					}
					return err
				}
				steps, err := rt.store.ListSteps(ctx, passID)
				if err != nil {
					return err
				}
				return writeSteps(out, pass, steps, format)
			}

			var filter *engine.PassStatus
			if status != "" {
				s := engine.PassStatus(status)
				if err := s.Validate(); err != nil {
					return err
				}
				filter = &s
			}

			passes, err := rt.store.ListPasses(ctx, filter, limit, 0)
			if err != nil {
				return err
			}
			return writePasses(out, passes, format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of passes")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (succeeded, failed)")
	cmd.Flags().StringVar(&passID, "pass", "", "show the steps of one pass")
	cmd.Flags().DurationVar(&olderThan, "prune", 0, "delete passes older than this age")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table, json, yaml)")

	return cmd
}
