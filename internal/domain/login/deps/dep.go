package deps

import (
	"context"
	"time"

	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

// Response is one network response observed on a browser session.
// Body is fetched lazily; it may fail when the body was evicted.
type Response struct {
	URL    string
	Status int
	Body   func(ctx context.Context) ([]byte, error)
}

// ResponseSource exposes a session's network traffic.
// Handlers run on the session's event goroutines and must not block.
type ResponseSource interface {
	Subscribe(match func(url string) bool, handler func(Response)) (unsubscribe func())
}

// Page is the part of a live browser page the login flow drives.
// Every method returns an error wrapping errors.ErrSessionClosed once the
// page or browser is gone.
type Page interface {
	ResponseSource

	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	WaitVisible(ctx context.Context, selector string) error
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	Screenshot(ctx context.Context, selector string) ([]byte, error)
	Cookies(ctx context.Context) ([]entities.SessionCookie, error)

	// Closed is closed when the page becomes unreachable
	Closed() <-chan struct{}
}

// Session is a launched browser owning one page
type Session interface {
	Page
	Close() error
}

// BrowserLauncher starts a fresh browser session per login flow
type BrowserLauncher interface {
	Launch(ctx context.Context) (Session, error)
}

// QRExtractor pulls the login QR code off a page
type QRExtractor interface {
	Extract(ctx context.Context, page Page) (*entities.QRCode, error)
}

// QREncoder renders a login URL as a QR code
type QREncoder interface {
	Encode(content string) (*entities.QRCode, error)
}

// CredentialStore persists login cookies. Exactly one record is valid after
// a successful Save.
type CredentialStore interface {
	Save(ctx context.Context, cookies map[string]string) (string, error)
	InvalidateAll(ctx context.Context) (int64, error)
	Current(ctx context.Context) (*entities.CredentialRecord, error)
}

// ProgressSink receives progress events of a login run
type ProgressSink interface {
	Emit(ctx context.Context, event entities.ProgressEvent) error
}

// LoginMetrics records login flow measurements
type LoginMetrics interface {
	RecordFlow(outcome string, duration time.Duration)
	RecordSignal(signal string)
	RecordStatusPush(code int)
	RecordCredentialSave(err error)
	RecordInvalidation(count int64)
	FlowStarted()
	FlowFinished()
}

// LoginRunner runs one complete login flow
type LoginRunner interface {
	Run(ctx context.Context, flowID string, sinks ...ProgressSink) (entities.LoginReport, error)
}

// FlowService manages login flows started over the API
type FlowService interface {
	Start(ctx context.Context) (*entities.FlowSnapshot, error)
	Status(ctx context.Context, flowID string) (*entities.FlowSnapshot, error)
	Cancel(ctx context.Context, flowID string) error
}

// CredentialService exposes the stored credentials
type CredentialService interface {
	CurrentCredential(ctx context.Context) (*entities.CredentialRecord, error)
	InvalidateAll(ctx context.Context) (int64, error)
}
