package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	"github.com/1195214305/xhs-backend/internal/domain/login/logintest"
	"github.com/1195214305/xhs-backend/internal/domain/login/repository/memory"
	"github.com/1195214305/xhs-backend/internal/domain/login/usecase/business"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "extract-qr", "invalidate", "serve"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("headless"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
}

func resolveBrowser(t *testing.T, cmd *cobra.Command) *config.BrowserConfig {
	t.Helper()

	var got *config.BrowserConfig
	fxApp := fx.New(
		fx.Supply(&config.BrowserConfig{Headless: false}),
		flagOverrides(cmd),
		fx.NopLogger,
		fx.Populate(&got),
	)
	require.NoError(t, fxApp.Err())
	return got
}

func TestFlagOverrides(t *testing.T) {
	saved := headless
	t.Cleanup(func() { headless = saved })

	t.Run("unchanged flag keeps config", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.Flags().BoolVar(&headless, "headless", false, "")
		assert.False(t, resolveBrowser(t, cmd).Headless)
	})

	t.Run("set flag overrides config", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.Flags().BoolVar(&headless, "headless", false, "")
		require.NoError(t, cmd.Flags().Set("headless", "true"))
		assert.True(t, resolveBrowser(t, cmd).Headless)
	})
}

func TestRunLogin_LaunchFailure(t *testing.T) {
	launchErr := errors.New("no chrome")
	uc := business.NewUseCase(business.Params{
		Launcher: &logintest.Launcher{Err: launchErr},
		Store:    memory.NewRepository(),
		Logger:   zerolog.Nop(),
	})

	err := runLogin(context.Background(), uc)
	require.Error(t, err)
	assert.ErrorIs(t, err, launchErr)
}

func TestRunInvalidate(t *testing.T) {
	store := memory.NewRepository()
	_, err := store.Save(context.Background(), map[string]string{"web_session": "s", "customer-sso-sid": "u1"})
	require.NoError(t, err)

	uc := business.NewUseCase(business.Params{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, runInvalidate(context.Background(), uc))

	_, err = store.Current(context.Background())
	assert.Error(t, err)
}

func TestReportOutcome(t *testing.T) {
	assert.Equal(t, "timeout", reportOutcome(entities.LoginReport{Outcome: "timeout"}))
	assert.Equal(t, "failed: boom", reportOutcome(entities.LoginReport{Outcome: "failed", Error: "boom"}))
}
