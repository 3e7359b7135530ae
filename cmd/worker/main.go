package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/cinema-ticket-order/internal/app"
	"github.com/iliyamo/cinema-ticket-order/internal/applogger"
	"github.com/iliyamo/cinema-ticket-order/internal/config"
	"github.com/iliyamo/cinema-ticket-order/internal/database"
	"github.com/iliyamo/cinema-ticket-order/internal/metrics"
)

// env is what every command needs once the flags are parsed.
type env struct {
	cfg    config.Config
	logger *logrus.Logger
	app    *app.App
	close  func()
}

// metricsAddr serves /metrics for the loop commands when set.
var metricsAddr string

func setup() (*env, error) {
	cfg := config.Load()
	logger := applogger.New(cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("redis: ping failed")
	}
	a, err := app.New(cfg, logger, db, rdb, metrics.New("worker", prometheus.DefaultRegisterer))
	if err != nil {
		_ = db.Close()
		_ = rdb.Close()
		return nil, err
	}
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.WithError(err).Error("metrics listener stopped")
			}
		}()
	}
	return &env{
		cfg:    cfg,
		logger: logger,
		app:    a,
		close: func() {
			_ = rdb.Close()
			_ = db.Close()
		},
	}, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "worker",
		Short:        "Background jobs of the place-order service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(expireCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(reexportCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(retryCmd())
	rootCmd.AddCommand(abortCmd())
	rootCmd.AddCommand(consumeEmailCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
