package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

// LoginEvent is the wire format of a login progress event. Cookies and QR
// images never leave the process.
type LoginEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	FlowID     string    `json:"flow_id"`
	Step       string    `json:"step"`
	Success    bool      `json:"success"`
	Terminal   bool      `json:"terminal"`
	UserID     string    `json:"user_id,omitempty"`
	CodeStatus *int      `json:"code_status,omitempty"`
	QRURL      string    `json:"qr_url,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLoginEvent converts a progress event to its wire format
func NewLoginEvent(e entities.ProgressEvent) *LoginEvent {
	out := &LoginEvent{
		EventID:    uuid.New().String(),
		Type:       "login." + string(e.Step),
		FlowID:     e.FlowID,
		Step:       string(e.Step),
		Success:    e.Success,
		Terminal:   e.Step.IsTerminal(),
		UserID:     e.UserID,
		Reason:     e.Reason,
		OccurredAt: e.Timestamp,
	}
	if e.Status != nil {
		code := int(e.Status.Data.CodeStatus)
		out.CodeStatus = &code
	}
	if e.QR != nil {
		out.QRURL = e.QR.URL
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now().UTC()
	}
	return out
}
