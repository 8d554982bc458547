package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/imagineos/tapthepost/internal/handlers"
	"github.com/imagineos/tapthepost/internal/storage"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the slicer and stitcher API server",
		Long: `Starts the HTTP API on the specified port.

Browser clients create a composition session, add images to it by upload or
through the X/Twitter image proxy, reorder them, pick a layout and export a
single stitched PNG. A separate endpoint slices one image into a zip of bands.`,
		Example: `  # Start server on default port 8888
  tapthepost serve

  # Start server on custom port with a config file
  tapthepost serve --port 3000 --config tapthepost.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			exports, err := storage.OpenExports(cfg.DataDir, cfg.ExportTTL)
			if err != nil {
				return err
			}
			defer exports.Close()

			sessions := storage.New()
			fetcher := cfg.Fetcher()
			handler := handlers.New(sessions, exports, cfg.Pipeline(fetcher), fetcher, cfg.MaxUploadBytes)

			sweeper := cron.New()
			_, err = sweeper.AddFunc(cfg.SweepSchedule, func() {
				removed := sessions.Sweep(cfg.SessionIdle, time.Now())
				exports.Collect()
				slog.Debug("Sweep complete", "expired_sessions", removed, "active_sessions", sessions.Len())
			})
			if err != nil {
				return fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSchedule, err)
			}
			sweeper.Start()
			defer sweeper.Stop()

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Tapthepost API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from config, 8888)")

	return cmd
}
