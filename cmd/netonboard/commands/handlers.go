package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netonboard/netonboard/pkg/handlers"
)

func newHandlersCommand() *cobra.Command {
	var declarationFile string

	cmd := &cobra.Command{
		Use:   "handlers",
		Short: "Apply system, GSLB and analytics settings",
		Long: `Apply the Common section settings of the declaration to the device.

Handlers run in order and stop at the first failure:
  - System: db variables, DNS, NTP and hostname
  - GSLB: general synchronization settings
  - Analytics: AVR global settings`,
		Example: `  netonboard handlers --declaration declaration.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(declarationFile)
			if err != nil {
				return err
			}
			decl, err := handlers.ParseDeclaration(data)
			if err != nil {
				return err
			}

			rt, ctx, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			device, err := rt.device(ctx)
			if err != nil {
				return err
			}

			runErr := handlers.Run(ctx, rt.logger,
				handlers.NewSystemHandler(decl, device, rt.logger),
				handlers.NewGSLBHandler(decl, device, rt.logger),
				handlers.NewAnalyticsHandler(decl, device, rt.logger),
			)

			details := map[string]interface{}{"declaration": declarationFile}
			if runErr != nil {
				details["error"] = runErr.Error()
			}
			rt.audit(ctx, "handlers.applied", rt.cfg.Device.Host, details)

			if runErr != nil {
				return runErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings applied.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&declarationFile, "declaration", "d", "", "declaration file, - for stdin")
	_ = cmd.MarkFlagRequired("declaration")

	return cmd
}
