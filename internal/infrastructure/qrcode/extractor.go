package qrcode

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
)

const pngDataPrefix = "data:image/png;base64,"

// DOMExtractor reads the login QR image from the page. It prefers an inline
// PNG data URL and falls back to an element screenshot.
type DOMExtractor struct {
	selector string
	decoder  *Decoder
	encoder  *Encoder
	logger   zerolog.Logger
}

// NewDOMExtractor creates an extractor for the QR image matched by selector
func NewDOMExtractor(selector string, decoder *Decoder, encoder *Encoder, logger zerolog.Logger) *DOMExtractor {
	return &DOMExtractor{
		selector: selector,
		decoder:  decoder,
		encoder:  encoder,
		logger:   logger.With().Str("component", "qr_extractor").Logger(),
	}
}

// Extract reads the login URL out of the QR image and re-encodes it, which
// gives a clean PNG and the terminal rendering. When the image cannot be
// decoded the page image is returned as is, without ASCII or URL.
func (e *DOMExtractor) Extract(ctx context.Context, page deps.Page) (*entities.QRCode, error) {
	data, source, err := e.imageBytes(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("qr image %q is empty", e.selector)
	}

	url, err := e.decoder.Decode(data)
	if err == nil {
		qrc, encErr := e.encoder.Encode(url)
		if encErr == nil {
			e.logger.Info().Str("source", source).Msg("QR code extracted and decoded")
			return qrc, nil
		}
		err = encErr
	}
	e.logger.Warn().Err(err).Str("source", source).Int("bytes", len(data)).Msg("QR code extracted but not decoded")

	return &entities.QRCode{
		Success: true,
		Image:   base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (e *DOMExtractor) imageBytes(ctx context.Context, page deps.Page) ([]byte, string, error) {
	src, ok, err := page.Attribute(ctx, e.selector, "src")
	if err != nil && errors.Is(err, loginerrors.ErrSessionClosed) {
		return nil, "", err
	}

	if err == nil && ok && strings.HasPrefix(src, pngDataPrefix) {
		data, decErr := base64.StdEncoding.DecodeString(strings.TrimPrefix(src, pngDataPrefix))
		if decErr == nil {
			return data, "data_url", nil
		}
		e.logger.Debug().Err(decErr).Msg("qr data url is not valid base64")
	}

	data, err := page.Screenshot(ctx, e.selector)
	if err != nil {
		return nil, "", fmt.Errorf("screenshot qr image: %w", err)
	}
	return data, "screenshot", nil
}

var _ deps.QRExtractor = (*DOMExtractor)(nil)
