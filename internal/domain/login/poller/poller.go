// Package poller decides when a QR login has completed.
//
// A Poller starts in the waiting state and ends in exactly one of confirmed,
// cancelled or timeout. Every interval it evaluates its signals in priority
// order; the first positive one confirms the login. After a settle delay it
// takes one cookie snapshot, and that snapshot is the result.
package poller

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
	"github.com/1195214305/xhs-backend/internal/utils"
)

const snapshotTimeout = 10 * time.Second

// Config holds poller timing and page selectors
type Config struct {
	Interval     time.Duration
	Timeout      time.Duration
	SettleDelay  time.Duration
	CheckTimeout time.Duration

	ProfileURLPattern string
	AvatarSelector    string
	QRSelector        string
	SessionCookie     string
}

// DefaultConfig returns the timings and selectors of the web login page
func DefaultConfig() Config {
	return Config{
		Interval:          2 * time.Second,
		Timeout:           180 * time.Second,
		SettleDelay:       2 * time.Second,
		CheckTimeout:      1500 * time.Millisecond,
		ProfileURLPattern: `/user/profile/`,
		AvatarSelector:    ".user-side-bar .avatar-item, .side-bar .avatar-item",
		QRSelector:        ".qrcode-img",
		SessionCookie:     "web_session",
	}
}

// Option customises a Poller
type Option func(*Poller)

// WithSignals appends signals after the built-in ones
func WithSignals(signals ...Signal) Option {
	return func(p *Poller) {
		p.signals = append(p.signals, signals...)
	}
}

// WithMetrics records which signal confirmed a login
func WithMetrics(m deps.LoginMetrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// Poller runs the completion state machine against one page
type Poller struct {
	cfg     Config
	page    deps.Page
	signals []Signal
	metrics deps.LoginMetrics
	logger  zerolog.Logger
}

// New creates a poller for page. The built-in signals, in priority order, are
// navigation, avatar, session-cookie diff and the guarded QR-gone signal.
func New(page deps.Page, cfg Config, logger zerolog.Logger, opts ...Option) (*Poller, error) {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}

	profile, err := regexp.Compile(cfg.ProfileURLPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid profile url pattern: %w", err)
	}

	p := &Poller{
		cfg:  cfg,
		page: page,
		signals: []Signal{
			NavigationSignal(profile),
			AvatarSignal(cfg.AvatarSelector),
			CookieDiffSignal(),
			QRGoneSignal(cfg.QRSelector),
		},
		logger: logger.With().Str("component", "completion_poller").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// TickBudget is the number of ticks allowed before timing out
func (p *Poller) TickBudget() int {
	n := int(p.cfg.Timeout / p.cfg.Interval)
	if n < 1 {
		return 1
	}
	return n
}

// Run polls until the login is confirmed, the session goes away or the
// timeout passes. The timeout is a wall-clock deadline covering waits and
// checks. It always returns a terminal result.
func (p *Poller) Run(ctx context.Context) entities.CompletionResult {
	deadlineCtx, cancel := context.WithDeadline(ctx, time.Now().Add(p.cfg.Timeout))
	defer cancel()

	var base baseline
	if err := p.captureBaseline(ctx, deadlineCtx, &base, nil); err != nil {
		return cancelled(fmt.Sprintf("capture initial cookies: %v", err), 0)
	}

	p.logger.Info().
		Bool("baseline_known", base.known).
		Str("initial_session", utils.MaskSecret(base.value)).
		Int("tick_budget", p.TickBudget()).
		Dur("interval", p.cfg.Interval).
		Msg("waiting for login")

	budget := p.TickBudget()
	for n := 1; n <= budget; n++ {
		if reason, ok := p.wait(deadlineCtx, p.cfg.Interval); !ok {
			if p.expired(ctx, deadlineCtx) {
				return p.timedOut(n - 1)
			}
			return cancelled(reason, n-1)
		}

		tick := &Tick{
			Number:        n,
			Page:          p.page,
			sessionCookie: p.cfg.SessionCookie,
		}

		if !base.known {
			if err := p.captureBaseline(ctx, deadlineCtx, &base, tick); err != nil {
				return cancelled(err.Error(), n)
			}
		}
		tick.baselineKnown = base.known
		tick.initialSession = base.value

		signal, err := p.evaluate(ctx, deadlineCtx, tick)
		if err != nil {
			return cancelled(err.Error(), n)
		}
		if signal != "" {
			return p.confirm(ctx, signal, n)
		}
		if p.expired(ctx, deadlineCtx) {
			return p.timedOut(n)
		}
	}

	return p.timedOut(budget)
}

// baseline is the session cookie value seen when polling started. It stays
// unknown until a cookie read succeeds.
type baseline struct {
	known bool
	value string
}

// captureBaseline reads the session cookie once. A closed session is fatal;
// any other failure leaves the baseline unknown so it is retried next tick.
// With a tick the read is shared with that tick's signals.
func (p *Poller) captureBaseline(ctx, deadlineCtx context.Context, base *baseline, tick *Tick) error {
	checkCtx, cancel := context.WithTimeout(deadlineCtx, p.cfg.CheckTimeout)
	defer cancel()

	var (
		value string
		err   error
	)
	if tick != nil {
		value, err = tick.SessionValue(checkCtx)
	} else {
		var cookies []entities.SessionCookie
		cookies, err = p.page.Cookies(checkCtx)
		value = entities.CookieValue(cookies, p.cfg.SessionCookie)
	}
	if err != nil {
		if isFatal(ctx, err) {
			return err
		}
		p.logger.Debug().Err(err).Msg("session cookie baseline not captured, cookie signals disabled")
		return nil
	}

	base.known = true
	base.value = value
	return nil
}

// evaluate runs the signals of one tick and returns the first positive one.
// A non-nil error means the session is gone.
func (p *Poller) evaluate(ctx, deadlineCtx context.Context, tick *Tick) (string, error) {
	for _, s := range p.signals {
		checkCtx, cancel := context.WithTimeout(deadlineCtx, p.cfg.CheckTimeout)
		ok, err := s.Check(checkCtx, tick)
		cancel()

		if err != nil {
			if isFatal(ctx, err) {
				return "", err
			}
			p.logger.Debug().Err(err).Str("signal", s.Name).Int("tick", tick.Number).Msg("signal check failed")
			continue
		}
		if ok {
			return s.Name, nil
		}
	}
	return "", nil
}

// expired reports whether the poll deadline passed while ctx is still live
func (p *Poller) expired(ctx, deadlineCtx context.Context) bool {
	if ctx.Err() != nil || deadlineCtx.Err() == nil {
		return false
	}
	select {
	case <-p.page.Closed():
		return false
	default:
		return true
	}
}

func (p *Poller) timedOut(ticks int) entities.CompletionResult {
	p.logger.Warn().Int("ticks", ticks).Msg("login not completed before timeout")
	return entities.CompletionResult{
		Outcome: entities.OutcomeTimeout,
		Reason:  fmt.Sprintf("no completion signal after %s", p.cfg.Timeout),
		Ticks:   ticks,
	}
}

// confirm waits for late cookies and takes the authoritative snapshot
func (p *Poller) confirm(ctx context.Context, signal string, ticks int) entities.CompletionResult {
	p.logger.Info().Str("signal", signal).Int("tick", ticks).Msg("login completion detected")
	if p.metrics != nil {
		p.metrics.RecordSignal(signal)
	}

	if reason, ok := p.wait(ctx, p.cfg.SettleDelay); !ok {
		return cancelled(reason, ticks)
	}

	snapCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	cookies, err := p.page.Cookies(snapCtx)
	if err != nil {
		return cancelled(fmt.Sprintf("cookie snapshot failed: %v", err), ticks)
	}
	if len(cookies) == 0 {
		return cancelled("cookie snapshot empty", ticks)
	}

	return entities.CompletionResult{
		Outcome: entities.OutcomeConfirmed,
		Cookies: cookies,
		Signal:  signal,
		Ticks:   ticks,
	}
}

// wait suspends for d. It returns false with a reason when the context is
// cancelled or the page closes first.
func (p *Poller) wait(ctx context.Context, d time.Duration) (string, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Sprintf("login wait aborted: %v", ctx.Err()), false
	case <-p.page.Closed():
		return loginerrors.ErrSessionClosed.Error(), false
	case <-timer.C:
		return "", true
	}
}

func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, loginerrors.ErrSessionClosed) || ctx.Err() != nil
}

func cancelled(reason string, ticks int) entities.CompletionResult {
	return entities.CompletionResult{
		Outcome: entities.OutcomeCancelled,
		Reason:  reason,
		Ticks:   ticks,
	}
}
