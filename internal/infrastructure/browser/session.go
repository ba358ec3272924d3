package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
)

const (
	responseBuffer = 64
	closeTimeout   = 5 * time.Second
)

type subscription struct {
	match   func(string) bool
	handler func(deps.Response)
}

// Session is one Chrome tab. Network responses are delivered to subscribers
// in arrival order on a dedicated goroutine, so handlers may fetch bodies.
type Session struct {
	tabCtx  context.Context
	release func()
	logger  zerolog.Logger

	mu      sync.Mutex
	subs    map[int]subscription
	nextSub int
	pending map[network.RequestID]*network.Response

	responses chan deps.Response
	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(tabCtx context.Context, release func(), logger zerolog.Logger) *Session {
	s := &Session{
		tabCtx:    tabCtx,
		release:   release,
		logger:    logger,
		subs:      make(map[int]subscription),
		pending:   make(map[network.RequestID]*network.Response),
		responses: make(chan deps.Response, responseBuffer),
		closed:    make(chan struct{}),
	}

	go s.dispatch()
	go func() {
		select {
		case <-tabCtx.Done():
			s.markClosed()
		case <-s.closed:
		}
	}()

	return s
}

// Subscribe registers handler for responses whose URL satisfies match
func (s *Session) Subscribe(match func(url string) bool, handler func(deps.Response)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscription{match: match, handler: handler}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// onEvent runs on the chromedp event loop and must not block or execute
// commands.
func (s *Session) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil || !s.wanted(e.Response.URL) {
			return
		}
		s.mu.Lock()
		s.pending[e.RequestID] = e.Response
		s.mu.Unlock()

	case *network.EventLoadingFinished:
		s.mu.Lock()
		resp, ok := s.pending[e.RequestID]
		delete(s.pending, e.RequestID)
		s.mu.Unlock()
		if !ok {
			return
		}
		select {
		case s.responses <- s.response(e.RequestID, resp):
		default:
			s.logger.Warn().Str("url", resp.URL).Msg("response buffer full, dropping response")
		}

	case *network.EventLoadingFailed:
		s.mu.Lock()
		delete(s.pending, e.RequestID)
		s.mu.Unlock()

	case *inspector.EventDetached, *inspector.EventTargetCrashed:
		s.markClosed()
	}
}

func (s *Session) wanted(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.match(url) {
			return true
		}
	}
	return false
}

func (s *Session) response(id network.RequestID, resp *network.Response) deps.Response {
	return deps.Response{
		URL:    resp.URL,
		Status: int(resp.Status),
		Body: func(ctx context.Context) ([]byte, error) {
			var body []byte
			err := s.run(ctx, "response body", chromedp.ActionFunc(func(ctx context.Context) error {
				var err error
				body, err = network.GetResponseBody(id).Do(ctx)
				return err
			}))
			return body, err
		},
	}
}

func (s *Session) dispatch() {
	for {
		select {
		case <-s.closed:
			return
		case resp := <-s.responses:
			s.mu.Lock()
			var handlers []func(deps.Response)
			for _, sub := range s.subs {
				if sub.match(resp.URL) {
					handlers = append(handlers, sub.handler)
				}
			}
			s.mu.Unlock()

			for _, h := range handlers {
				h(resp)
			}
		}
	}
}

// run executes actions on the tab, bounded by ctx
func (s *Session) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	select {
	case <-s.closed:
		return fmt.Errorf("%s: %w", op, loginerrors.ErrSessionClosed)
	default:
	}

	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}

	switch {
	case s.isClosed(), s.tabCtx.Err() != nil, errors.Is(err, chromedp.ErrInvalidContext):
		return fmt.Errorf("%s: %w", op, loginerrors.ErrSessionClosed)
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Navigate loads url in the tab
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, "navigate", chromedp.Navigate(url))
}

// URL returns the current document location
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, "location", chromedp.Location(&loc))
	return loc, err
}

// IsVisible reports whether any element matching selector is rendered
func (s *Session) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	err := s.run(ctx, "visible", chromedp.Evaluate(visibleExpr(selector), &visible))
	return visible, err
}

// WaitVisible blocks until selector is visible or ctx ends
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, "wait visible", chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Attribute reads one attribute of the first element matching selector
func (s *Session) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var value *string
	if err := s.run(ctx, "attribute", chromedp.Evaluate(attributeExpr(selector, name), &value)); err != nil {
		return "", false, err
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

// Screenshot captures the element matching selector as PNG
func (s *Session) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, "screenshot", chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery))
	return buf, err
}

// Cookies returns every cookie in the browser jar
func (s *Session) Cookies(ctx context.Context) ([]entities.SessionCookie, error) {
	var raw []*network.Cookie
	err := s.run(ctx, "cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]entities.SessionCookie, 0, len(raw))
	for _, c := range raw {
		if c == nil {
			continue
		}
		cookies = append(cookies, toSessionCookie(c))
	}
	return cookies, nil
}

// Closed is closed once the tab or browser is gone
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() error {
	wasOpen := !s.isClosed()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.tabCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.markClosed()
	s.release()

	if wasOpen {
		s.logger.Info().Msg("Browser closed")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func (s *Session) markClosed() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func toSessionCookie(c *network.Cookie) entities.SessionCookie {
	out := entities.SessionCookie{
		Name:   c.Name,
		Value:  c.Value,
		Domain: c.Domain,
		Path:   c.Path,
	}
	if !c.Session && c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		out.Expiry = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return out
}

func visibleExpr(selector string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).some(el => {
	const r = el.getBoundingClientRect();
	const st = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 && st.visibility !== "hidden" && st.display !== "none";
})`, jsString(selector))
}

func attributeExpr(selector, name string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	return el ? el.getAttribute(%s) : null;
})()`, jsString(selector), jsString(name))
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

var _ deps.Session = (*Session)(nil)
