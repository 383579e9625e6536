package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/shipsync/internal/application/dispatch"
	"github.com/erp/shipsync/internal/infrastructure/logger"
)

const triggerCLI = "cli"

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one dispatch cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.connect(ctx); err != nil {
				a.log.Error("Startup failed", zap.Error(err))
				return err
			}

			runCtx, cancel := context.WithTimeout(ctx, a.cfg.Scheduler.RunTimeout)
			defer cancel()
			runCtx, log := logger.WithTrigger(runCtx, a.log, triggerCLI)

			report, err := a.service.Run(runCtx)
			logReport(log, report)
			return err
		},
	}
}

// logReport writes the one-line run summary
func logReport(log *zap.Logger, report *dispatch.RunReport) {
	if report == nil {
		return
	}
	fields := []zap.Field{
		zap.String("run_id", report.ID.String()),
		zap.String("backend", report.Backend),
		zap.String("status", string(report.Status)),
		zap.Int("tasks", report.TotalTasks),
		zap.Int("eligible", report.EligibleTasks),
		zap.Int("orders", report.TotalOrders),
		zap.Int("dispatched", report.DispatchedCount),
		zap.Int("skipped", report.SkippedCount),
		zap.Int("failed", report.FailedCount),
		zap.Duration("duration", report.Duration()),
	}
	if report.FailedCount > 0 {
		fields = append(fields, zap.Strings("failed_orders", report.FailedOrderIDs))
	}

	switch report.Status {
	case dispatch.RunStatusFailed:
		log.Error("Dispatch run aborted", append(fields, zap.String("error", report.Error))...)
	case dispatch.RunStatusPartial:
		log.Warn("Dispatch run finished with failures", fields...)
	default:
		log.Info("Dispatch run finished", fields...)
	}
}
