package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"immo/internal/cli"
	apphttp "immo/internal/http"
	"immo/internal/log"
	"immo/internal/middleware/ratelimit"
)

func newServeCmd(s *session) *cobra.Command {
	var writesPerMinute int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd.Context(), func(app *cli.App) error {
				return serve(app, writesPerMinute)
			})
		},
	}
	cmd.Flags().IntVar(&writesPerMinute, "writes-per-minute", ratelimit.DefaultConfig().RequestsPerMinute, "Write requests allowed per client and minute")
	return cmd
}

func serve(app *cli.App, writesPerMinute int) error {
	logger := app.Logger.WithComponent(log.ComponentHTTP)
	srv := apphttp.NewServer(":"+app.Config.Port, apphttp.Deps{
		Statements: app.Statements,
		Portfolio:  app.Portfolio,
		Overview:   app.Overview,
		Ready:      app.Ready,
		Logger:     logger,
		RateLimit:  ratelimit.Config{RequestsPerMinute: writesPerMinute},
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting immo server", "port", app.Config.Port, "backend", app.Config.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", app.Config.Port)
		return err
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
	return nil
}
