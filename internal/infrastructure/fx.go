package infrastructure

import (
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/internal/infrastructure/browser"
	"github.com/1195214305/xhs-backend/internal/infrastructure/kafka"
	"github.com/1195214305/xhs-backend/internal/infrastructure/logger"
	"github.com/1195214305/xhs-backend/internal/infrastructure/metrics"
	"github.com/1195214305/xhs-backend/internal/infrastructure/notifier"
	"github.com/1195214305/xhs-backend/internal/infrastructure/qrcode"
)

// Module aggregates the infrastructure every command needs. Storage is
// opened by the login module because the driver is chosen at runtime.
var Module = fx.Module("infrastructure",
	logger.Module,
	metrics.Module,
	browser.Module,
	qrcode.Module,
	kafka.Module,
	notifier.Module,
)
