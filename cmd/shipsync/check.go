package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

func newCheckCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, credentials and reference data without dispatching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.connect(ctx); err != nil {
				a.log.Error("Check failed", zap.Error(err))
				return err
			}

			tasks, err := a.marketplace.FetchOpenTasks(ctx)
			if err != nil {
				a.log.Error("Marketplace check failed", zap.Error(err))
				return err
			}

			eligible := len(fulfillment.FilterDispatchable(tasks))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:     %s\n", a.backend.Name())
			fmt.Fprintf(out, "ledger:      %s (%d processed)\n", a.ledger.Path(), a.ledger.Len())
			fmt.Fprintf(out, "open tasks:  %d (%d eligible)\n", len(tasks), eligible)
			return nil
		},
	}
}
