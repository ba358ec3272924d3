package qrcode

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
)

// Module provides the QR extractor and encoder for fx DI
var Module = fx.Module("qrcode",
	fx.Provide(
		NewEncoder,
		NewDecoder,
		func(cfg *config.BrowserConfig, decoder *Decoder, encoder *Encoder, logger zerolog.Logger) deps.QRExtractor {
			return NewDOMExtractor(cfg.QRImageSelector, decoder, encoder, logger)
		},
		func(encoder *Encoder) deps.QREncoder {
			return encoder
		},
	),
)
