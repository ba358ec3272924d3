package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
)

// QRURLCapture remembers the login URL returned by the QR-create endpoint,
// so the QR code can be re-encoded instead of scraped from the page.
type QRURLCapture struct {
	endpoint string
	logger   zerolog.Logger

	mu  sync.RWMutex
	url string
}

// NewQRURLCapture creates a capture matching responses whose URL contains endpoint
func NewQRURLCapture(endpoint string, logger zerolog.Logger) *QRURLCapture {
	return &QRURLCapture{
		endpoint: endpoint,
		logger:   logger.With().Str("component", "qr_url_capture").Logger(),
	}
}

// Attach subscribes the capture to a session's responses
func (c *QRURLCapture) Attach(src deps.ResponseSource) (detach func()) {
	return src.Subscribe(func(url string) bool {
		return c.endpoint != "" && strings.Contains(url, c.endpoint)
	}, c.Handle)
}

// Handle processes one QR-create response
func (c *QRURLCapture) Handle(resp deps.Response) {
	if resp.Status != http.StatusOK || resp.Body == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bodyReadTimeout)
	defer cancel()

	body, err := resp.Body(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("qr create body unavailable")
		return
	}

	url, ok := ParseQRCreate(body)
	if !ok {
		return
	}

	c.mu.Lock()
	c.url = url
	c.mu.Unlock()

	c.logger.Debug().Msg("qr login url captured")
}

// URL returns the last captured login URL, or ""
func (c *QRURLCapture) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

// ParseQRCreate extracts data.url from a QR-create body
func ParseQRCreate(body []byte) (string, bool) {
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", false
	}
	if !envelope.Success || envelope.Data.URL == "" {
		return "", false
	}
	return envelope.Data.URL, true
}
