package notifier

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/progress"
)

// Module provides the Telegram progress sink for fx DI
var Module = fx.Module("notifier",
	fx.Provide(
		fx.Annotate(
			NewTelegramSinkFx,
			fx.ResultTags(`group:"progress_sinks"`),
		),
	),
)

// NewTelegramSinkFx creates the Telegram sink, or a discarding sink when no
// bot token or chat is configured
func NewTelegramSinkFx(cfg *config.NotifierConfig, logger zerolog.Logger) (deps.ProgressSink, error) {
	if !cfg.Enabled() {
		return progress.Discard, nil
	}

	bot, err := NewTelegramBot(cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}

	logger.Info().Int64("chat_id", cfg.TelegramChatID).Msg("Telegram notifier enabled")
	return NewTelegramNotifier(bot, cfg.TelegramChatID, logger.With().Str("component", "telegram-notifier").Logger()), nil
}
