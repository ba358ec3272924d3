// Package logintest provides a scriptable in-memory browser page for tests.
package logintest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
)

// Page is a fake deps.Session. Zero value is not usable; call NewPage.
type Page struct {
	mu sync.Mutex

	url        string
	visible    map[string]bool
	attrs      map[string]string
	cookies    []entities.SessionCookie
	screenshot []byte
	errs       map[string]error

	navigated   []string
	cookieCalls int

	// OnNavigate runs after every Navigate call
	OnNavigate func(p *Page, url string)
	// OnCookies runs before Cookies returns, with the 1-based call number
	OnCookies func(p *Page, call int)

	subs   map[int]subscription
	nextID int

	closed    chan struct{}
	closeOnce sync.Once
}

type subscription struct {
	match   func(string) bool
	handler func(deps.Response)
}

// NewPage creates an open page at about:blank
func NewPage() *Page {
	return &Page{
		url:     "about:blank",
		visible: make(map[string]bool),
		attrs:   make(map[string]string),
		errs:    make(map[string]error),
		subs:    make(map[int]subscription),
		closed:  make(chan struct{}),
	}
}

// SetURL sets the current page URL
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// SetVisible marks selector as visible or hidden
func (p *Page) SetVisible(selector string, visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible[selector] = visible
}

// SetAttribute sets the value returned by Attribute(selector, name)
func (p *Page) SetAttribute(selector, name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attrs[selector+"@"+name] = value
}

// SetScreenshot sets the bytes returned by Screenshot
func (p *Page) SetScreenshot(png []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshot = png
}

// SetCookie adds or replaces a cookie in the jar
func (p *Page) SetCookie(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setCookieLocked(name, value)
}

// SetError makes op fail with err. Ops are "navigate", "url", "visible",
// "wait", "attribute", "screenshot" and "cookies". A nil err clears it.
func (p *Page) SetError(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.errs, op)
		return
	}
	p.errs[op] = err
}

// Navigated returns every URL passed to Navigate
func (p *Page) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// CookieCalls returns how many times Cookies was called
func (p *Page) CookieCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cookieCalls
}

// Subscribers returns the number of active subscriptions
func (p *Page) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Push delivers a response to every matching subscriber synchronously
func (p *Page) Push(url string, status int, body string) {
	p.mu.Lock()
	var handlers []func(deps.Response)
	for _, s := range p.subs {
		if s.match(url) {
			handlers = append(handlers, s.handler)
		}
	}
	p.mu.Unlock()

	resp := deps.Response{
		URL:    url,
		Status: status,
		Body: func(context.Context) ([]byte, error) {
			return []byte(body), nil
		},
	}
	for _, h := range handlers {
		h(resp)
	}
}

// Subscribe implements deps.ResponseSource
func (p *Page) Subscribe(match func(string) bool, handler func(deps.Response)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = subscription{match: match, handler: handler}

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Navigate records url and makes it the current URL
func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	if err := p.checkLocked("navigate"); err != nil {
		p.mu.Unlock()
		return err
	}
	p.navigated = append(p.navigated, url)
	p.url = url
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

// URL returns the current URL
func (p *Page) URL(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked("url"); err != nil {
		return "", err
	}
	return p.url, nil
}

// IsVisible reports the visibility set with SetVisible
func (p *Page) IsVisible(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked("visible"); err != nil {
		return false, err
	}
	return p.visible[selector], nil
}

// WaitVisible polls until selector is visible or ctx ends
func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	for {
		p.mu.Lock()
		if err := p.checkLocked("wait"); err != nil {
			p.mu.Unlock()
			return err
		}
		ok := p.visible[selector]
		p.mu.Unlock()
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", selector, ctx.Err())
		case <-p.closed:
			return fmt.Errorf("wait for %s: %w", selector, loginerrors.ErrSessionClosed)
		case <-time.After(time.Millisecond):
		}
	}
}

// Attribute returns the value set with SetAttribute
func (p *Page) Attribute(_ context.Context, selector, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked("attribute"); err != nil {
		return "", false, err
	}
	v, ok := p.attrs[selector+"@"+name]
	return v, ok, nil
}

// Screenshot returns the bytes set with SetScreenshot
func (p *Page) Screenshot(_ context.Context, _ string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked("screenshot"); err != nil {
		return nil, err
	}
	return p.screenshot, nil
}

// Cookies returns a copy of the jar
func (p *Page) Cookies(_ context.Context) ([]entities.SessionCookie, error) {
	p.mu.Lock()
	p.cookieCalls++
	call := p.cookieCalls
	hook := p.OnCookies
	p.mu.Unlock()

	if hook != nil {
		hook(p, call)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked("cookies"); err != nil {
		return nil, err
	}
	return append([]entities.SessionCookie(nil), p.cookies...), nil
}

// Closed is closed once Close has been called
func (p *Page) Closed() <-chan struct{} {
	return p.closed
}

// IsClosed reports whether Close has been called
func (p *Page) IsClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// Close marks the page as gone
func (p *Page) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *Page) checkLocked(op string) error {
	select {
	case <-p.closed:
		return fmt.Errorf("%s: %w", op, loginerrors.ErrSessionClosed)
	default:
	}
	return p.errs[op]
}

func (p *Page) setCookieLocked(name, value string) {
	for i := range p.cookies {
		if p.cookies[i].Name == name {
			p.cookies[i].Value = value
			return
		}
	}
	p.cookies = append(p.cookies, entities.SessionCookie{
		Name:   name,
		Value:  value,
		Domain: ".xiaohongshu.com",
		Path:   "/",
	})
}

var _ deps.Session = (*Page)(nil)

// Launcher hands out a prepared page
type Launcher struct {
	Page *Page
	Err  error

	mu       sync.Mutex
	launches int
}

// Launch returns l.Page or l.Err
func (l *Launcher) Launch(_ context.Context) (deps.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Page, nil
}

// Launches returns how many times Launch was called
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

var _ deps.BrowserLauncher = (*Launcher)(nil)
