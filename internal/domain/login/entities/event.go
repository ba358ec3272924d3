package entities

import "time"

// Step names a progress milestone
type Step string

const (
	StepQRCodeReady  Step = "qrcode-ready"
	StepWaiting      Step = "waiting"
	StepQRCodeStatus Step = "qrcode-status"

	// Terminal steps; exactly one is emitted per run
	StepConfirmed Step = "confirmed"
	StepCancelled Step = "cancelled"
	StepTimeout   Step = "timeout"
	StepFailed    Step = "failed"
)

// IsTerminal reports whether the step ends a run
func (s Step) IsTerminal() bool {
	switch s {
	case StepConfirmed, StepCancelled, StepTimeout, StepFailed:
		return true
	}
	return false
}

// TerminalStep maps a poll outcome to its terminal step
func TerminalStep(o Outcome) Step {
	switch o {
	case OutcomeConfirmed:
		return StepConfirmed
	case OutcomeCancelled:
		return StepCancelled
	case OutcomeTimeout:
		return StepTimeout
	default:
		return StepFailed
	}
}

// ProgressEvent is one structured milestone of a login run
type ProgressEvent struct {
	FlowID    string      `json:"flow_id,omitempty"`
	Step      Step        `json:"step"`
	Success   bool        `json:"success"`
	QR        *QRCode     `json:"qrcode,omitempty"`
	Status    *StatusPush `json:"status,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
