package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the login HTTP API",
	Long: `Serve the HTTP API that starts login flows in the background, reports
their status and exposes the stored credential, /health and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			svc    *config.ServiceConfig
			logger zerolog.Logger
		)

		fxApp := fx.New(
			app.CreateServer(flagOverrides(cmd)),
			fx.NopLogger,
			fx.Populate(&svc, &logger),
		)
		if err := fxApp.Err(); err != nil {
			return fmt.Errorf("failed to build application: %w", err)
		}

		ctx := cmd.Context()
		startCtx, cancel := context.WithTimeout(ctx, fxApp.StartTimeout())
		defer cancel()
		if err := fxApp.Start(startCtx); err != nil {
			return fmt.Errorf("failed to start application: %w", err)
		}

		logger.Info().Str("service", svc.Name).Str("port", svc.Port).Msg("Login service started")

		<-ctx.Done()
		logger.Info().Msg("Received shutdown signal, starting graceful shutdown...")

		stopApp(fxApp, svc.ShutdownTimeout, logger)
		logger.Info().Msg("Login service stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
