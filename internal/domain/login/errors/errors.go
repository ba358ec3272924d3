package errors

import "errors"

var (
	ErrSessionClosed      = errors.New("browser session closed")
	ErrNavigationFailed   = errors.New("failed to reach login entry point")
	ErrQRExtractionFailed = errors.New("failed to extract qr code")
	ErrStorage            = errors.New("credential storage failure")
	ErrNoValidCredential  = errors.New("no valid credential stored")
	ErrFlowNotFound       = errors.New("login flow not found")
	ErrFlowExpired        = errors.New("login flow expired")
	ErrMaxFlowsReached    = errors.New("maximum concurrent login flows reached")
	ErrRateLimited        = errors.New("login flow start rate exceeded")
)
