// Package observer tracks QR login status pushes seen on a browser session.
package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

const bodyReadTimeout = 5 * time.Second

// Observer records the latest status push for one session.
// Create one per session; it holds no shared state.
type Observer struct {
	endpoint string
	metrics  deps.LoginMetrics
	logger   zerolog.Logger

	mu        sync.RWMutex
	latest    *entities.StatusPush
	loginInfo entities.LoginInfo
	history   []entities.QrCode
}

// New creates an observer matching responses whose URL contains endpoint
func New(endpoint string, metrics deps.LoginMetrics, logger zerolog.Logger) *Observer {
	return &Observer{
		endpoint: endpoint,
		metrics:  metrics,
		logger:   logger.With().Str("component", "status_observer").Logger(),
	}
}

// Attach subscribes the observer to a session's responses
func (o *Observer) Attach(src deps.ResponseSource) (detach func()) {
	return src.Subscribe(o.Matches, o.Handle)
}

// Matches reports whether url belongs to the status-push endpoint
func (o *Observer) Matches(url string) bool {
	return o.endpoint != "" && strings.Contains(url, o.endpoint)
}

// Handle processes one matching response. Malformed or unexpected bodies are
// dropped; the observer never propagates errors to the session.
func (o *Observer) Handle(resp deps.Response) {
	if resp.Status != http.StatusOK || resp.Body == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bodyReadTimeout)
	defer cancel()

	body, err := resp.Body(ctx)
	if err != nil {
		o.logger.Debug().Err(err).Str("url", resp.URL).Msg("status push body unavailable")
		return
	}

	push, ok := ParseStatusPush(body)
	if !ok {
		return
	}

	o.Record(push)
}

// Record stores a parsed push as the latest status
func (o *Observer) Record(push entities.StatusPush) {
	code := push.Data.CodeStatus

	o.mu.Lock()
	o.latest = &push
	o.history = append(o.history, code)
	if code == entities.QrConfirmed && push.Data.LoginInfo != nil {
		o.loginInfo = push.Data.LoginInfo
	}
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordStatusPush(int(code))
	}

	switch code {
	case entities.QrScanned:
		o.logger.Info().Msg("QR scanned, waiting for confirmation")
	case entities.QrConfirmed:
		o.logger.Info().Str("user_id", push.Data.LoginInfo.UserID()).Msg("QR login confirmed by status push")
	}
}

// ParseStatusPush decodes a status-push body. It returns false when the
// body is not JSON, success is not true, or data.code_status is missing.
func ParseStatusPush(body []byte) (entities.StatusPush, bool) {
	var envelope struct {
		Success bool                       `json:"success"`
		Data    map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return entities.StatusPush{}, false
	}
	if !envelope.Success || envelope.Data == nil {
		return entities.StatusPush{}, false
	}

	rawCode, ok := envelope.Data["code_status"]
	if !ok {
		return entities.StatusPush{}, false
	}
	var code int
	if err := json.Unmarshal(rawCode, &code); err != nil {
		return entities.StatusPush{}, false
	}

	push := entities.StatusPush{
		Success: true,
		Data:    entities.StatusPushData{CodeStatus: entities.QrCode(code)},
		Raw:     append(json.RawMessage(nil), body...),
	}

	if rawInfo, ok := envelope.Data["login_info"]; ok {
		var info entities.LoginInfo
		if err := json.Unmarshal(rawInfo, &info); err == nil {
			push.Data.LoginInfo = info
		}
	}

	return push, true
}

// LatestStatus returns the most recent status push
func (o *Observer) LatestStatus() (entities.StatusPush, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.latest == nil {
		return entities.StatusPush{}, false
	}
	return *o.latest, true
}

// IsLoggedIn reports whether the latest push carried code_status 2
func (o *Observer) IsLoggedIn() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latest != nil && o.latest.Data.CodeStatus == entities.QrConfirmed
}

// LoginInfo returns the login_info captured with a confirmed push
func (o *Observer) LoginInfo() (entities.LoginInfo, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loginInfo, o.loginInfo != nil
}

// History returns every code seen so far, oldest first
func (o *Observer) History() []entities.QrCode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]entities.QrCode, len(o.history))
	copy(out, o.history)
	return out
}
