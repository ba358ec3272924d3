package login

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	loginhttp "github.com/1195214305/xhs-backend/internal/domain/login/delivery/http"
	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/poller"
	"github.com/1195214305/xhs-backend/internal/domain/login/repository/memory"
	mongorepo "github.com/1195214305/xhs-backend/internal/domain/login/repository/mongo"
	"github.com/1195214305/xhs-backend/internal/domain/login/repository/postgres"
	"github.com/1195214305/xhs-backend/internal/domain/login/usecase/business"
	"github.com/1195214305/xhs-backend/internal/infrastructure/database"
	"github.com/1195214305/xhs-backend/internal/infrastructure/flows"
	"github.com/1195214305/xhs-backend/internal/infrastructure/http/server"
	mongoinfra "github.com/1195214305/xhs-backend/internal/infrastructure/mongo"
)

// Module provides the login use case and its credential store for fx DI
var Module = fx.Module("login",
	fx.Provide(NewCredentialStoreFx),
	fx.Provide(NewUseCaseFx),
	fx.Provide(
		func(uc *business.LoginUseCase) deps.LoginRunner { return uc },
		func(uc *business.LoginUseCase) deps.CredentialService { return uc },
	),
)

// HTTPModule provides background flows and the HTTP API for fx DI
var HTTPModule = fx.Module("login-http",
	fx.Provide(flows.NewStoreFx),
	fx.Provide(flows.NewManagerFx),
	fx.Provide(func(m *flows.Manager) deps.FlowService { return m }),
	fx.Provide(NewLoginHandlerFx),
	fx.Provide(NewHealthHandlerFx),
	fx.Provide(NewRouterFx),
	fx.Invoke(RegisterRoutes),
)

// StoreResult provides the credential store and its health check
type StoreResult struct {
	fx.Out

	Store  deps.CredentialStore
	Health loginhttp.HealthCheck `group:"health_checks"`
}

// NewCredentialStoreFx opens the credential store selected by STORAGE_DRIVER
func NewCredentialStoreFx(
	lc fx.Lifecycle,
	storageCfg *config.StorageConfig,
	dbCfg *config.DatabaseConfig,
	mongoCfg *config.MongoConfig,
	logger zerolog.Logger,
) (StoreResult, error) {
	switch storageCfg.Driver {
	case config.DriverPostgres:
		db, err := database.NewPostgresDBFx(lc, dbCfg, logger)
		if err != nil {
			return StoreResult{}, err
		}
		return StoreResult{
			Store: postgres.NewRepository(db),
			Health: loginhttp.HealthCheck{
				Name:     "postgres",
				Critical: true,
				Check: func(ctx context.Context) error {
					sqlDB, err := db.DB()
					if err != nil {
						return err
					}
					return sqlDB.PingContext(ctx)
				},
			},
		}, nil

	case config.DriverMongo:
		client, err := mongoinfra.NewClientFx(lc, mongoCfg, logger)
		if err != nil {
			return StoreResult{}, err
		}
		coll := client.Database(mongoCfg.Database).Collection(mongoCfg.Collection)

		var sessions mongorepo.SessionStarter
		if mongoCfg.Transactions {
			sessions = client
		}
		return StoreResult{
			Store: mongorepo.NewRepository(coll, sessions, logger),
			Health: loginhttp.HealthCheck{
				Name:     "mongodb",
				Critical: true,
				Check: func(ctx context.Context) error {
					return client.Ping(ctx, readpref.Primary())
				},
			},
		}, nil

	case config.DriverMemory:
		logger.Warn().Msg("Using in-memory credential store, credentials are lost on exit")
		return StoreResult{
			Store: memory.NewRepository(),
			Health: loginhttp.HealthCheck{
				Name:  "memory",
				Check: func(context.Context) error { return nil },
			},
		}, nil

	default:
		return StoreResult{}, fmt.Errorf("unknown storage driver %q", storageCfg.Driver)
	}
}

// UseCaseParams groups the use case dependencies for fx
type UseCaseParams struct {
	fx.In

	Launcher  deps.BrowserLauncher
	Extractor deps.QRExtractor
	Encoder   deps.QREncoder
	Store     deps.CredentialStore
	Metrics   deps.LoginMetrics
	Sinks     []deps.ProgressSink `group:"progress_sinks"`
	Browser   *config.BrowserConfig
	Login     *config.LoginConfig
	Logger    zerolog.Logger
}

// NewUseCaseFx creates the login use case for fx DI
func NewUseCaseFx(p UseCaseParams) *business.LoginUseCase {
	return business.NewUseCase(business.Params{
		Launcher:  p.Launcher,
		Extractor: p.Extractor,
		Encoder:   p.Encoder,
		Store:     p.Store,
		Metrics:   p.Metrics,
		Sinks:     p.Sinks,
		Config:    UseCaseConfig(p.Browser, p.Login),
		Logger:    p.Logger,
	})
}

// UseCaseConfig assembles the run configuration from config sections
func UseCaseConfig(b *config.BrowserConfig, l *config.LoginConfig) business.Config {
	return business.Config{
		LoginURL:          b.LoginURL,
		QRWrapperSelector: b.QRWrapperSelector,
		QRImageSelector:   b.QRImageSelector,
		ModalTimeout:      b.ModalTimeout,
		StatusEndpoint:    l.StatusEndpoint,
		QRCreateEndpoint:  l.QRCreateEndpoint,
		TrustStatusPush:   l.TrustStatusPush,
		Poller: poller.Config{
			Interval:          l.PollInterval,
			Timeout:           l.Timeout,
			SettleDelay:       l.SettleDelay,
			CheckTimeout:      l.CheckTimeout,
			ProfileURLPattern: l.ProfileURLPattern,
			AvatarSelector:    l.AvatarSelector,
			QRSelector:        b.QRImageSelector,
			SessionCookie:     l.SessionCookie,
		},
	}
}

// NewLoginHandlerFx creates the login handler for fx DI
func NewLoginHandlerFx(flowSvc deps.FlowService, credentials deps.CredentialService, logger zerolog.Logger) *loginhttp.LoginHandler {
	return loginhttp.NewLoginHandler(flowSvc, credentials, logger)
}

// HealthParams collects registered health checks
type HealthParams struct {
	fx.In

	Checks []loginhttp.HealthCheck `group:"health_checks"`
	Logger zerolog.Logger
}

// NewHealthHandlerFx creates the health handler for fx DI
func NewHealthHandlerFx(p HealthParams) *loginhttp.HealthHandler {
	return loginhttp.NewHealthHandler(p.Checks, p.Logger)
}

// NewRouterFx creates the login router for fx DI
func NewRouterFx(handler *loginhttp.LoginHandler, health *loginhttp.HealthHandler, logger zerolog.Logger) *loginhttp.Router {
	return loginhttp.NewRouter(handler, health, logger)
}

// RegisterRoutes registers login routes on the server
func RegisterRoutes(srv *server.Server, router *loginhttp.Router) {
	router.RegisterRoutes(srv.Router)
}
