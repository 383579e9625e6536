package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/shipsync/internal/infrastructure/scheduler"
	"github.com/erp/shipsync/internal/interfaces/http/handler"
	"github.com/erp/shipsync/internal/interfaces/http/middleware"
	"github.com/erp/shipsync/internal/interfaces/http/router"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run dispatch cycles on a schedule and serve the status API",
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
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg

	sched, err := scheduler.NewDispatchScheduler(scheduler.DispatchSchedulerConfig{
		Interval:    cfg.Scheduler.Interval,
		RunTimeout:  cfg.Scheduler.RunTimeout,
		HistorySize: cfg.Scheduler.HistorySize,
		RunOnStart:  cfg.Scheduler.RunOnStart,
		ManualOnly:  !cfg.Scheduler.Enabled,
	}, a.service, a.log)
	if err != nil {
		return err
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(router.EngineConfig{
		Logger:   a.log,
		Meter:    a.meter,
		Security: middleware.DefaultSecurityConfig(),
	})
	router.NewRouter(engine).
		RegisterRoot(handler.NewSystemHandler(version, a.backend.Name(), sched)).
		Register(handler.NewDispatchHandler(sched)).
		Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("Status API starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("Shutdown signal received")
	case <-sched.Halted():
		runErr = sched.Err()
		a.log.Error("Dispatch halted, shutting down", zap.Error(runErr))
	case err := <-serverErr:
		runErr = fmt.Errorf("status API: %w", err)
		a.log.Error("Status API failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Status API forced to shutdown", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		a.log.Error("Dispatch scheduler forced to stop", zap.Error(err))
	}

	a.log.Info("Server exited")
	return runErr
}
