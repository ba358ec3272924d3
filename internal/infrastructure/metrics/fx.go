package metrics

import (
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
)

// Module provides metrics for fx DI
var Module = fx.Module("metrics",
	fx.Provide(
		GetDefaultMetrics,
		func(m *Metrics) deps.LoginMetrics {
			return m
		},
	),
)
