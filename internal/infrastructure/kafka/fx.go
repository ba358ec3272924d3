package kafka

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/progress"
	"github.com/1195214305/xhs-backend/internal/infrastructure/metrics"
)

// Module provides the Kafka login event sink for fx DI
var Module = fx.Module("kafka",
	fx.Provide(
		fx.Annotate(
			NewEventSinkFx,
			fx.ResultTags(`group:"progress_sinks"`),
		),
	),
)

// NewEventSinkFx creates the Kafka progress sink, or a discarding sink when
// no brokers are configured
func NewEventSinkFx(
	lc fx.Lifecycle,
	kafkaCfg *config.KafkaConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) (deps.ProgressSink, error) {
	if !kafkaCfg.Enabled() {
		logger.Info().Msg("Kafka brokers not configured, login events are not published")
		return progress.Discard, nil
	}

	producer, err := NewEventProducer(kafkaCfg, m, logger.With().Str("component", "login-event-producer").Logger())
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return producer.Close()
		},
	})

	return producer, nil
}
