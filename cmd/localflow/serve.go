package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aaileenssyed/LocalFlow/httpapi"
	"github.com/spf13/cobra"
)

func serveCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over HTTP",
		Long: `Serve the planning session as a JSON API under /api, with /health and
Prometheus metrics on /metrics. Itinerary changes are published to NATS
when events.nats_url is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app, err := g.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if addr == "" {
				addr = app.cfg.HTTP.Addr
			}
			return app.serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; defaults to http.addr")
	return cmd
}

// serve runs the API until ctx is cancelled, then drains in-flight requests.
func (a *App) serve(ctx context.Context, addr string) error {
	api := httpapi.New(a.engine,
		httpapi.WithMetrics(a.metrics),
		httpapi.WithLogger(a.logger),
		httpapi.WithCORSOrigins(a.cfg.HTTP.CORSOrigins),
		httpapi.WithVersion(Version),
	)

	// Generation can take most of the planner endpoint's timeout.
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("LocalFlow API listening", "addr", addr, "session", a.engine.ID(), "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
