package entities

// Outcome is the terminal state of a completion poll
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeTimeout   Outcome = "timeout"
)

// CompletionResult is what the completion poller hands back.
// Cookies is non-empty only for OutcomeConfirmed.
type CompletionResult struct {
	Outcome Outcome         `json:"outcome"`
	Cookies []SessionCookie `json:"cookies,omitempty"`
	Signal  string          `json:"signal,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Ticks   int             `json:"ticks"`
}

// Success reports whether the login was confirmed
func (r CompletionResult) Success() bool {
	return r.Outcome == OutcomeConfirmed && len(r.Cookies) > 0
}

// LoginReport is the final summary of one login run
type LoginReport struct {
	Success     bool      `json:"success"`
	Outcome     string    `json:"outcome"`
	UserID      string    `json:"user_id,omitempty"`
	CookieCount int       `json:"cookie_count"`
	LoginInfo   LoginInfo `json:"login_info,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// QRCode is the result of the QR extraction collaborator
type QRCode struct {
	Success bool   `json:"success"`
	Image   string `json:"qr_base64,omitempty"` // base64 PNG
	ASCII   string `json:"qr_ascii,omitempty"`
	URL     string `json:"qr_url,omitempty"`
}
