package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/ogulcanaydogan/dwlr-guardian/internal/config"
	"github.com/ogulcanaydogan/dwlr-guardian/internal/housekeeping"
	"github.com/ogulcanaydogan/dwlr-guardian/internal/observability"
	"github.com/ogulcanaydogan/dwlr-guardian/internal/server"
	"github.com/ogulcanaydogan/dwlr-guardian/pkg/monitor"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and alert dispatcher",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
	serveCmd.Flags().Bool("access-log", false, "Write HTTP access logs to stderr")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}
	accessLog, _ := cmd.Flags().GetBool("access-log")

	metrics := observability.NewMetrics()
	metrics.SetThresholds(cfg.Thresholds.Low, cfg.Thresholds.High)

	a, err := initApp(cfg, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error("shutdown", "error", err)
		}
	}()
	logger := a.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.File != "" {
		go func() {
			err := config.Watch(ctx, cfg.File, logger, func(next *config.Config) {
				t := monitor.Thresholds{Low: next.Thresholds.Low, High: next.Thresholds.High}
				if err := a.monitor.SetThresholds(t); err != nil {
					logger.Error("apply thresholds", "error", err)
					return
				}
				metrics.SetThresholds(t.Low, t.High)
			})
			if err != nil {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	if cfg.History.Enabled {
		retention := config.Duration(cfg.History.Retention, 30*24*time.Hour)
		pruner := housekeeping.NewPruner(a.store, retention, clockwork.NewRealClock(), logger)
		c := cron.New()
		if _, err := pruner.Schedule(c, cfg.History.PruneSchedule); err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
	}

	opts := []server.Option{server.WithCORSOrigins(cfg.Server.CORSOrigins)}
	if cfg.History.Enabled {
		opts = append(opts, server.WithAlertHistory(a.store))
	}
	if accessLog {
		opts = append(opts, server.WithAccessLog(os.Stderr))
	}
	apiServer := server.NewServer(a.monitor, a.source, logger, opts...)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout, 30*time.Second),
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			"listen", cfg.Server.Listen,
			"source", cfg.Data.Source,
			"dispatch", cfg.Dispatch.Mode,
		)
		fmt.Fprintf(os.Stderr, "DWLR Guardian listening on %s\n", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}
