package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/app"
	"github.com/1195214305/xhs-backend/internal/domain/login/usecase/business"
)

var (
	headless   bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "xhs-login",
	Short: "Xiaohongshu QR login and credential manager",
	Long: `xhs-login drives a browser through the Xiaohongshu QR code login,
detects when the scan is confirmed and stores the session cookies as the
single valid credential.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command with ctx
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "run the browser without a window (overrides BROWSER_HEADLESS)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print progress and results as JSON lines")
}

// flagOverrides applies command line flags on top of the loaded config
func flagOverrides(cmd *cobra.Command) fx.Option {
	if !cmd.Flags().Changed("headless") {
		return fx.Options()
	}
	return fx.Decorate(func(c *config.BrowserConfig) *config.BrowserConfig {
		c.Headless = headless
		return c
	})
}

// withUseCase starts the application graph, hands the use case to fn and
// stops the graph afterwards
func withUseCase(cmd *cobra.Command, fn func(ctx context.Context, uc *business.LoginUseCase) error) error {
	var (
		uc     *business.LoginUseCase
		svc    *config.ServiceConfig
		logger zerolog.Logger
	)

	fxApp := fx.New(
		app.CreateApp(flagOverrides(cmd)),
		fx.NopLogger,
		fx.Populate(&uc, &svc, &logger),
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

	defer stopApp(fxApp, svc.ShutdownTimeout, logger)

	return fn(ctx, uc)
}

func stopApp(fxApp *fx.App, timeout time.Duration, logger zerolog.Logger) {
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping application")
	}
}
