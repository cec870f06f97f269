package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kareemsasa3/orbweaver/internal/api"
	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/metrics"
)

const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl API server",
		Long: `Serve starts an HTTP API that runs crawls in the background.

Endpoints:
  POST /api/crawls                      start a crawl {"sitemap": {...}, "max_sub_pages": N}
  GET  /api/crawls                      list jobs
  GET  /api/crawls/{id}                 job status and stats
  GET  /api/crawls/{id}/pages?origin=R  results of pages reached through rule R
  GET  /api/crawls/diff?from=A&to=B     line diff of two jobs' results
  GET  /health                          health check
  GET  /metrics                         Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().IntP("port", "P", config.DefaultPort, "Port to listen on")
	cmd.Flags().StringP("renderer", "r", config.DefaultRenderer, "Page renderer: chrome, rod or static")
	cmd.Flags().String("token", "", "Require this bearer token on /api requests")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("renderer") {
		cfg.Renderer, _ = cmd.Flags().GetString("renderer")
	}
	if cmd.Flags().Changed("token") {
		cfg.APIToken, _ = cmd.Flags().GetString("token")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	opts := []api.Option{api.WithLogger(log)}
	if cfg.EnableMetrics {
		opts = append(opts, api.WithMetrics(metrics.NewPrometheusMetrics()))
	}
	api.Version = getVersion()
	handler := api.NewAPIHandler(cfg, opts...)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting API server on port %d (%s renderer)", cfg.Port, cfg.Renderer)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down API server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		handler.Shutdown()
		return err
	})

	return g.Wait()
}
