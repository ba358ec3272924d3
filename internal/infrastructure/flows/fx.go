package flows

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
)

// NewStoreFx creates the flow store for fx DI
func NewStoreFx(lc fx.Lifecycle, cfg *config.FlowsConfig, logger zerolog.Logger) *Store {
	store := NewStore(cfg.CleanupInterval, cfg.MaxFlows, logger)

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			store.Stop()
			return nil
		},
	})

	return store
}

// NewManagerFx creates the flow manager for fx DI. Running flows are
// cancelled on shutdown.
func NewManagerFx(
	lc fx.Lifecycle,
	runner deps.LoginRunner,
	store *Store,
	cfg *config.FlowsConfig,
	logger zerolog.Logger,
) *Manager {
	manager := NewManager(runner, store, cfg, logger)

	lc.Append(fx.Hook{
		OnStop: manager.Stop,
	})

	return manager
}
