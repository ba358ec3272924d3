package entities

import "time"

// FlowStatus is the externally visible state of a login flow
type FlowStatus string

const (
	FlowStarting  FlowStatus = "starting"
	FlowWaiting   FlowStatus = "waiting"
	FlowConfirmed FlowStatus = "confirmed"
	FlowCancelled FlowStatus = "cancelled"
	FlowTimeout   FlowStatus = "timeout"
	FlowFailed    FlowStatus = "failed"
)

// IsTerminal reports whether the flow has finished
func (s FlowStatus) IsTerminal() bool {
	switch s {
	case FlowConfirmed, FlowCancelled, FlowTimeout, FlowFailed:
		return true
	}
	return false
}

// FlowStatusForStep maps a terminal progress step to a flow status
func FlowStatusForStep(step Step) FlowStatus {
	switch step {
	case StepConfirmed:
		return FlowConfirmed
	case StepCancelled:
		return FlowCancelled
	case StepTimeout:
		return FlowTimeout
	case StepFailed:
		return FlowFailed
	default:
		return FlowWaiting
	}
}

// FlowSnapshot is a point-in-time copy of a login flow
type FlowSnapshot struct {
	ID         string     `json:"flow_id"`
	Status     FlowStatus `json:"status"`
	QR         *QRCode    `json:"qrcode,omitempty"`
	CodeStatus *QrCode    `json:"code_status,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
