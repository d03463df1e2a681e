package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/flexprice/billingcore/internal/config"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/postgres"
	"github.com/flexprice/billingcore/internal/publisher"
	"github.com/flexprice/billingcore/internal/pubsub"
	"github.com/flexprice/billingcore/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the billing cycle scheduler and the metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			coreModule,
			fx.Provide(scheduler.NewWorker),
			fx.Invoke(
				startTransitionLog,
				startScheduler,
				startMetricsServer,
				closeDB,
			),
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startTransitionLog(lc fx.Lifecycle, cfg *config.Configuration, sub pubsub.Subscriber, log *logger.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return publisher.LogTransitions(ctx, cfg, sub, log)
		},
		OnStop: func(context.Context) error {
			cancel()
			return sub.Close()
		},
	})
}

func startScheduler(lc fx.Lifecycle, worker *scheduler.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return worker.Start()
		},
		OnStop: func(ctx context.Context) error {
			return worker.Stop(ctx)
		},
	})
}

func startMetricsServer(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Infow("starting metrics server", "address", cfg.Metrics.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("metrics server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return srv.Shutdown(ctx)
		},
	})
}

func closeDB(lc fx.Lifecycle, db *postgres.DB) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
}
