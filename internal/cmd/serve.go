package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mailcraft/mailcraft/pkg/queue"
	"github.com/mailcraft/mailcraft/pkg/schedule"
	"github.com/mailcraft/mailcraft/pkg/tracking"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracking endpoints and the background queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		manager, err := queue.NewManager(a.pool, a.client, cfg.Queue,
			queue.WithManagerLogger(a.logger),
			queue.WithPeriodicTask("scheduled-batch", "* * * * *", func(ctx context.Context) error {
				stats, err := a.engine.ProcessBatch(ctx, schedule.BatchOptions{
					BatchSize:            cfg.Mail.Schedule.BatchSize,
					IncludeFailedRetries: true,
				})
				if err != nil {
					return err
				}
				if stats.Claimed > 0 {
					a.logger.Info("scheduled batch processed",
						slog.Int("claimed", stats.Claimed),
						slog.Int("sent", stats.Sent),
						slog.Int("retried", stats.Retried),
						slog.Int("failed", stats.Failed),
						slog.Int("deferred", stats.Deferred),
					)
				}
				return nil
			}),
			queue.WithPeriodicTask("recurring-chains", "15 * * * *", func(ctx context.Context) error {
				since := time.Now().Add(-48 * time.Hour)
				chained, err := a.engine.ProcessRecurringBatch(ctx, since, cfg.Mail.Schedule.BatchSize)
				if chained > 0 {
					a.logger.Info("recurring chains extended", slog.Int("chained", chained))
				}
				return err
			}),
			queue.WithPeriodicTask("cleanup", "45 3 * * *", func(ctx context.Context) error {
				stats, err := a.engine.Cleanup(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("schedule cleanup completed",
					slog.Int64("cancelled", stats.Cancelled),
					slog.Int64("failed", stats.Failed),
				)
				return nil
			}),
		)
		if err != nil {
			return err
		}
		a.client.UseEnqueuer(manager)

		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           newRouter(a, cfg),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := manager.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return manager.Stop(stopCtx)
		})
		g.Go(func() error {
			a.logger.Info("http server listening", slog.String("addr", cfg.Server.Addr))
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(stopCtx)
		})

		return g.Wait()
	},
}

func newRouter(a *app, cfg appConfig) http.Handler {
	prefix := cfg.Mail.Tracking.Prefix
	if prefix == "" {
		prefix = "track"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Mount("/"+prefix, tracking.NewHandler(a.logs, tracking.WithHandlerLogger(a.logger)))

	return r
}
