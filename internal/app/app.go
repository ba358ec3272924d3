package app

import (
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login"
	"github.com/1195214305/xhs-backend/internal/infrastructure"
	httpfx "github.com/1195214305/xhs-backend/internal/infrastructure/http"
)

// CreateApp creates the fx application options shared by every command
func CreateApp(opts ...fx.Option) fx.Option {
	return fx.Options(
		fx.Provide(config.Out),
		infrastructure.Module,
		login.Module,
		fx.Options(opts...),
	)
}

// CreateServer adds the HTTP API and background flows
func CreateServer(opts ...fx.Option) fx.Option {
	return CreateApp(
		httpfx.Module,
		login.HTTPModule,
		fx.Options(opts...),
	)
}
