package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/ecourts-crawler/internal/api/handlers"
	"github.com/jmylchreest/ecourts-crawler/internal/version"
)

var serveRateLimit int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored results and cases over a read-only HTTP API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger.Info("starting api server",
			"version", version.Get().Version,
			"port", cfg.Port,
		)

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		healthHandler := handlers.NewHealthHandler(st, logger)
		recordsHandler := handlers.NewRecordsHandler(st, logger)

		r := chi.NewRouter()

		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(middleware.Timeout(60 * time.Second))

		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"Link"},
			MaxAge:         300,
		}))

		if serveRateLimit > 0 {
			r.Use(httprate.LimitByIP(serveRateLimit, time.Minute))
		}

		humaConfig := huma.DefaultConfig("eCourts Crawler", version.Get().Version)
		humaConfig.Info.Description = "Read-only access to crawled case-status results"
		api := humachi.New(r, humaConfig)
		handlers.Register(api, healthHandler, recordsHandler)

		addr := fmt.Sprintf(":%d", cfg.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", "error", err)
		}

		logger.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&serveRateLimit, "rate-limit", 120, "Requests per minute allowed per client IP (0 disables).")
	rootCmd.AddCommand(serveCmd)
}
