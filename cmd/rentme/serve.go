package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	ginserver "staysettle/internal/infra/http/gin"
	"staysettle/internal/infra/obs"
)

func newServeCommand() *cobra.Command {
	var embedWorkers bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			ctx := cmd.Context()
			srv := ginserver.NewServer(c.cfg, obs.Middleware{Logger: c.logger, Metrics: c.metrics},
				obs.HealthHandlers{Checks: c.health, Timeout: 2 * time.Second},
				ginserver.Handlers{
					Booking:        &ginserver.BookingHandler{Commands: c.commands, Queries: c.queries, Logger: c.logger},
					Payment:        &ginserver.PaymentHandler{Commands: c.commands, Webhooks: c.payments, Logger: c.logger},
					Settlement:     &ginserver.SettlementHandler{Commands: c.commands, Queries: c.queries, Logger: c.logger},
					AuthMiddleware: ginserver.AuthMiddleware{Secret: []byte(c.cfg.JWTSecret), Logger: c.logger}.Handle,
					Metrics:        c.metrics.Handler(),
				})

			// The memory store and queue are process-local, so their workers
			// must live in the API process.
			runners := []runner{}
			if embedWorkers || c.inMemory {
				runners = c.backgroundRunners()
			}
			runners = append(runners, runner{name: "http", run: func(ctx context.Context) error {
				errCh := make(chan error, 1)
				go func() {
					c.logger.Info("http server listening", "addr", srv.Addr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
					close(errCh)
				}()
				select {
				case err := <-errCh:
					return err
				case <-ctx.Done():
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}})
			return runAll(ctx, c, runners)
		},
	}
	cmd.Flags().BoolVar(&embedWorkers, "with-workers", false, "also run the outbox relay, job worker and promoter")
	return cmd
}

func closeContainer(c *container) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		c.logger.Error("shutdown failed", "error", err)
	}
}
