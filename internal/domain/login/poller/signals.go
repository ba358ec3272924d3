package poller

import (
	"context"
	"regexp"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

// Signal names
const (
	SignalNavigation = "navigation"
	SignalAvatar     = "avatar"
	SignalCookieDiff = "cookie_diff"
	SignalQRGone     = "qr_gone"
	SignalStatusPush = "status_push"
)

// Signal is one completion heuristic evaluated on every tick.
// A check error means "absent this tick" unless it wraps ErrSessionClosed.
type Signal struct {
	Name  string
	Check func(ctx context.Context, t *Tick) (bool, error)
}

// Tick carries per-tick state shared by the signals of one evaluation.
// The cookie jar is read at most once per tick.
type Tick struct {
	Number int
	Page   deps.Page

	sessionCookie  string
	initialSession string
	baselineKnown  bool

	fetched    bool
	cookies    []entities.SessionCookie
	cookiesErr error
}

// InitialSession is the session cookie value captured when polling started
func (t *Tick) InitialSession() string {
	return t.initialSession
}

// BaselineKnown reports whether InitialSession was actually read. Until then
// the cookie signals stay silent.
func (t *Tick) BaselineKnown() bool {
	return t.baselineKnown
}

// SessionValue returns the current value of the designated session cookie
func (t *Tick) SessionValue(ctx context.Context) (string, error) {
	if !t.fetched {
		t.cookies, t.cookiesErr = t.Page.Cookies(ctx)
		t.fetched = true
	}
	if t.cookiesErr != nil {
		return "", t.cookiesErr
	}
	return entities.CookieValue(t.cookies, t.sessionCookie), nil
}

// NavigationSignal fires when the page URL matches the post-login pattern
func NavigationSignal(pattern *regexp.Regexp) Signal {
	return Signal{
		Name: SignalNavigation,
		Check: func(ctx context.Context, t *Tick) (bool, error) {
			url, err := t.Page.URL(ctx)
			if err != nil {
				return false, err
			}
			return pattern.MatchString(url), nil
		},
	}
}

// AvatarSignal fires when the authenticated-UI avatar is visible
func AvatarSignal(selector string) Signal {
	return Signal{
		Name: SignalAvatar,
		Check: func(ctx context.Context, t *Tick) (bool, error) {
			return t.Page.IsVisible(ctx, selector)
		},
	}
}

// CookieDiffSignal fires when the session cookie is set and differs from its
// value at poll start
func CookieDiffSignal() Signal {
	return Signal{
		Name: SignalCookieDiff,
		Check: func(ctx context.Context, t *Tick) (bool, error) {
			if !t.baselineKnown {
				return false, nil
			}
			current, err := t.SessionValue(ctx)
			if err != nil {
				return false, err
			}
			return current != "" && current != t.initialSession, nil
		},
	}
}

// QRGoneSignal is the weak signal: the QR image is hidden. It only fires
// together with a non-empty session cookie, so modal churn alone never
// confirms a login.
func QRGoneSignal(qrSelector string) Signal {
	return Signal{
		Name: SignalQRGone,
		Check: func(ctx context.Context, t *Tick) (bool, error) {
			if !t.baselineKnown {
				return false, nil
			}
			visible, err := t.Page.IsVisible(ctx, qrSelector)
			if err != nil || visible {
				return false, err
			}
			current, err := t.SessionValue(ctx)
			if err != nil {
				return false, err
			}
			return current != "", nil
		},
	}
}

// StatusPushSignal fires once the status-push observer reports a confirmed
// login
func StatusPushSignal(loggedIn func() bool) Signal {
	return Signal{
		Name: SignalStatusPush,
		Check: func(_ context.Context, _ *Tick) (bool, error) {
			return loggedIn(), nil
		},
	}
}
