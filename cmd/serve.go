package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yellowpay/payagent/internal/confirm"
	"github.com/yellowpay/payagent/internal/server"
	"github.com/yellowpay/payagent/internal/version"
)

// serveCmd runs the HTTP server that backs the dashboard chat widget.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API server",
	Long: `Start the HTTP server exposing the assistant. The server streams
assistant messages and tool cards over SSE on POST /api/chat and
resolves pending confirmations on POST /api/chat/confirm.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

		var overrides configOverrides
		applyGenerationFlags(cmd.Flags(), &overrides)
		app, err := newApp(overrides)
		if err != nil {
			return err
		}
		defer app.Close()
		if addr, err := cmd.Flags().GetString("addr"); err == nil && addr != "" {
			app.cfg.Addr = addr
		}

		waiters := confirm.NewWaiters()
		defer waiters.Close()

		srv := server.New(app.cfg, app.store, app.registry, waiters, app.newLoop)
		httpServer := &http.Server{
			Addr:        app.cfg.Addr,
			Handler:     srv.Router(),
			ReadTimeout: 30 * time.Second,
			// No write timeout: chat responses stream over SSE for as
			// long as a turn takes.
			WriteTimeout: 0,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("starting server",
				"addr", app.cfg.Addr,
				"model", app.cfg.Model,
				"version", version.Get())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-cmd.Context().Done():
		}

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	},
}

func init() {
	addGenerationFlags(serveCmd.Flags())
	serveCmd.Flags().String("addr", "", "Listen address, e.g. :8080")
	rootCmd.AddCommand(serveCmd)
}
