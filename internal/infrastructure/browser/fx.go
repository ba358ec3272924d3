package browser

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
)

// Module provides the Chrome launcher for fx DI
var Module = fx.Module("browser",
	fx.Provide(
		func(cfg *config.BrowserConfig, logger zerolog.Logger) deps.BrowserLauncher {
			return NewLauncher(cfg, logger)
		},
	),
)
