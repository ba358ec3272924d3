package business

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
	"github.com/1195214305/xhs-backend/internal/domain/login/logintest"
	"github.com/1195214305/xhs-backend/internal/domain/login/poller"
	"github.com/1195214305/xhs-backend/internal/domain/login/repository/memory"
)

const (
	wrapperSelector = ".login-container .qrcode"
	statusURL       = "https://edith.xiaohongshu.com/api/sns/web/v1/login/qrcode/status?qr_id=1"
	createURL       = "https://edith.xiaohongshu.com/api/sns/web/v1/login/qrcode/create"
)

func testConfig() Config {
	pc := poller.DefaultConfig()
	pc.Interval = 5 * time.Millisecond
	pc.Timeout = 40 * time.Millisecond
	pc.SettleDelay = time.Millisecond
	pc.CheckTimeout = 50 * time.Millisecond

	return Config{
		LoginURL:          "https://www.xiaohongshu.com/explore",
		QRWrapperSelector: wrapperSelector,
		QRImageSelector:   ".qrcode-img",
		ModalTimeout:      200 * time.Millisecond,
		StatusEndpoint:    "/api/sns/web/v1/login/qrcode/status",
		QRCreateEndpoint:  "/api/sns/web/v1/login/qrcode/create",
		Poller:            pc,
	}
}

type fakeExtractor struct {
	qr    *entities.QRCode
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ deps.Page) (*entities.QRCode, error) {
	f.calls++
	return f.qr, f.err
}

type fakeEncoder struct {
	encoded []string
}

func (f *fakeEncoder) Encode(content string) (*entities.QRCode, error) {
	f.encoded = append(f.encoded, content)
	return &entities.QRCode{Success: true, Image: "ZW5jb2RlZA==", ASCII: "##", URL: content}, nil
}

type failingStore struct {
	saves int
}

func (s *failingStore) Save(context.Context, map[string]string) (string, error) {
	s.saves++
	return "", errors.Join(loginerrors.ErrStorage, errors.New("connection refused"))
}

func (s *failingStore) InvalidateAll(context.Context) (int64, error) { return 0, nil }

func (s *failingStore) Current(context.Context) (*entities.CredentialRecord, error) {
	return nil, loginerrors.ErrNoValidCredential
}

type recordingSink struct {
	mu     sync.Mutex
	events []entities.ProgressEvent
}

func (r *recordingSink) Emit(_ context.Context, e entities.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) steps() []entities.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.Step, len(r.events))
	for i, e := range r.events {
		out[i] = e.Step
	}
	return out
}

func assertSteps(t *testing.T, sink *recordingSink, want ...entities.Step) {
	t.Helper()
	got := sink.steps()
	if len(got) != len(want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("steps = %v, want %v", got, want)
		}
	}

	terminals := 0
	for _, s := range got {
		if s.IsTerminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("terminal events = %d, want exactly 1", terminals)
	}
}

// loginPage opens the modal on navigation
func loginPage() *logintest.Page {
	page := logintest.NewPage()
	page.OnNavigate = func(p *logintest.Page, _ string) {
		p.SetVisible(wrapperSelector, true)
		p.SetVisible(".qrcode-img", true)
		p.SetCookie("a1", "A")
	}
	return page
}

func newUseCase(page *logintest.Page, store deps.CredentialStore, cfg Config) (*LoginUseCase, *fakeExtractor, *fakeEncoder) {
	extractor := &fakeExtractor{qr: &entities.QRCode{Success: true, Image: "cXI=", ASCII: "██"}}
	encoder := &fakeEncoder{}
	uc := NewUseCase(Params{
		Launcher:  &logintest.Launcher{Page: page},
		Extractor: extractor,
		Encoder:   encoder,
		Store:     store,
		Config:    cfg,
		Logger:    zerolog.Nop(),
	})
	return uc, extractor, encoder
}

func TestLoginUseCase_Confirmed(t *testing.T) {
	page := loginPage()
	page.OnCookies = func(p *logintest.Page, call int) {
		if call == 2 {
			p.SetCookie("web_session", "ws")
		}
	}
	store := memory.NewRepository()
	uc, _, _ := newUseCase(page, store, testConfig())
	sink := &recordingSink{}

	report, err := uc.Run(context.Background(), "flow-1", sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertSteps(t, sink, entities.StepQRCodeReady, entities.StepWaiting, entities.StepConfirmed)

	if !report.Success || report.UserID != "Aws" || report.CookieCount != 2 {
		t.Errorf("report = %+v", report)
	}
	if sink.events[0].QR == nil || sink.events[0].QR.Image != "cXI=" {
		t.Errorf("qrcode-ready event without QR: %+v", sink.events[0])
	}
	if sink.events[2].FlowID != "flow-1" || sink.events[2].UserID != "Aws" {
		t.Errorf("terminal event = %+v", sink.events[2])
	}

	current, err := store.Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current.Cookies["web_session"] != "ws" {
		t.Errorf("stored cookies = %v", current.Cookies)
	}
	if !page.IsClosed() {
		t.Error("browser session not closed")
	}
	if page.Subscribers() != 0 {
		t.Errorf("subscribers left attached: %d", page.Subscribers())
	}
}

func TestLoginUseCase_StatusPushReported(t *testing.T) {
	page := loginPage()
	page.OnCookies = func(p *logintest.Page, call int) {
		if call == 2 {
			p.Push(statusURL, http.StatusOK, `{"success":true,"data":{"code_status":2,"login_info":{"user_id":"u-7"}}}`)
			p.SetCookie("web_session", "ws")
		}
	}
	uc, _, _ := newUseCase(page, memory.NewRepository(), testConfig())
	sink := &recordingSink{}

	report, err := uc.Run(context.Background(), "", sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertSteps(t, sink, entities.StepQRCodeReady, entities.StepWaiting, entities.StepQRCodeStatus, entities.StepConfirmed)
	if report.LoginInfo.UserID() != "u-7" {
		t.Errorf("report login_info user = %q, want u-7", report.LoginInfo.UserID())
	}
	if sink.events[0].FlowID == "" {
		t.Error("flow id not generated")
	}
}

func TestLoginUseCase_TrustStatusPush(t *testing.T) {
	push := func(p *logintest.Page, call int) {
		if call == 2 {
			p.Push(statusURL, http.StatusOK, `{"success":true,"data":{"code_status":2}}`)
		}
	}

	t.Run("trusted", func(t *testing.T) {
		page := loginPage()
		page.OnCookies = push
		cfg := testConfig()
		cfg.TrustStatusPush = true
		uc, _, _ := newUseCase(page, memory.NewRepository(), cfg)
		sink := &recordingSink{}

		report, err := uc.Run(context.Background(), "", sink)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !report.Success {
			t.Fatalf("report = %+v, want success via status push", report)
		}
	})

	t.Run("not trusted", func(t *testing.T) {
		page := loginPage()
		page.OnCookies = push
		uc, _, _ := newUseCase(page, memory.NewRepository(), testConfig())
		sink := &recordingSink{}

		report, err := uc.Run(context.Background(), "", sink)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if report.Success || report.Outcome != string(entities.OutcomeTimeout) {
			t.Fatalf("report = %+v, want timeout", report)
		}
		assertSteps(t, sink, entities.StepQRCodeReady, entities.StepWaiting, entities.StepQRCodeStatus, entities.StepTimeout)
	})
}

func TestLoginUseCase_Timeout(t *testing.T) {
	page := loginPage()
	store := memory.NewRepository()
	uc, _, _ := newUseCase(page, store, testConfig())
	sink := &recordingSink{}

	report, err := uc.Run(context.Background(), "", sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertSteps(t, sink, entities.StepQRCodeReady, entities.StepWaiting, entities.StepTimeout)
	if report.Success || report.Outcome != "timeout" {
		t.Errorf("report = %+v", report)
	}
	if n := len(store.Records()); n != 0 {
		t.Errorf("records = %d, want 0", n)
	}
}

func TestLoginUseCase_CancelledMidPoll(t *testing.T) {
	page := loginPage()
	store := memory.NewRepository()
	cfg := testConfig()
	cfg.Poller.Timeout = 10 * time.Second
	uc, _, _ := newUseCase(page, store, cfg)
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	page.OnCookies = func(p *logintest.Page, call int) {
		if call == 3 {
			cancel()
		}
	}

	report, err := uc.Run(ctx, "", sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertSteps(t, sink, entities.StepQRCodeReady, entities.StepWaiting, entities.StepCancelled)
	if report.Outcome != "cancelled" {
		t.Errorf("Outcome = %q, want cancelled", report.Outcome)
	}
	if n := len(store.Records()); n != 0 {
		t.Errorf("store writes = %d, want 0", n)
	}
}

func TestLoginUseCase_BrowserClosedMidPoll(t *testing.T) {
	page := loginPage()
	store := memory.NewRepository()
	cfg := testConfig()
	cfg.Poller.Timeout = 10 * time.Second
	uc, _, _ := newUseCase(page, store, cfg)
	sink := &recordingSink{}

	page.OnCookies = func(p *logintest.Page, call int) {
		if call == 2 {
			_ = p.Close()
		}
	}

	report, err := uc.Run(context.Background(), "", sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertSteps(t, sink, entities.StepQRCodeReady, entities.StepWaiting, entities.StepCancelled)
	if report.Outcome != "cancelled" || len(store.Records()) != 0 {
		t.Errorf("report = %+v, records = %d", report, len(store.Records()))
	}
}

func TestLoginUseCase_LaunchFailure(t *testing.T) {
	uc := NewUseCase(Params{
		Launcher: &logintest.Launcher{Err: errors.New("chrome not found")},
		Store:    memory.NewRepository(),
		Config:   testConfig(),
		Logger:   zerolog.Nop(),
	})
	sink := &recordingSink{}

	report, err := uc.Run(context.Background(), "", sink)
	if err == nil {
		t.Fatal("Run() error = nil, want launch failure")
	}

	assertSteps(t, sink, entities.StepFailed)
	if report.Outcome != "failed" || report.Error == "" {
		t.Errorf("report = %+v", report)
	}
}

func TestLoginUseCase_ModalNeverShown(t *testing.T) {
	page := logintest.NewPage()
	cfg := testConfig()
	cfg.ModalTimeout = 20 * time.Millisecond
	uc, extractor, _ := newUseCase(page, memory.NewRepository(), cfg)
	sink := &recordingSink{}

	_, err := uc.Run(context.Background(), "", sink)
	if !errors.Is(err, loginerrors.ErrNavigationFailed) {
		t.Fatalf("Run() error = %v, want ErrNavigationFailed", err)
	}

	assertSteps(t, sink, entities.StepFailed)
	if extractor.calls != 0 {
		t.Error("extractor called without a login modal")
	}
	if !page.IsClosed() {
		t.Error("browser session not closed after failure")
	}
}

func TestLoginUseCase_ExtractionFailure(t *testing.T) {
	page := loginPage()
	uc, extractor, _ := newUseCase(page, memory.NewRepository(), testConfig())
	extractor.qr = nil
	extractor.err = errors.New("qr image has no src")
	sink := &recordingSink{}

	_, err := uc.Run(context.Background(), "", sink)
	if !errors.Is(err, loginerrors.ErrQRExtractionFailed) {
		t.Fatalf("Run() error = %v, want ErrQRExtractionFailed", err)
	}
	assertSteps(t, sink, entities.StepFailed)
}

func TestLoginUseCase_StorageFailure(t *testing.T) {
	page := loginPage()
	page.OnCookies = func(p *logintest.Page, call int) {
		if call == 2 {
			p.SetCookie("web_session", "ws")
		}
	}
	store := &failingStore{}
	uc, _, _ := newUseCase(page, store, testConfig())
	sink := &recordingSink{}

	report, err := uc.Run(context.Background(), "", sink)
	if !errors.Is(err, loginerrors.ErrStorage) {
		t.Fatalf("Run() error = %v, want ErrStorage", err)
	}

	assertSteps(t, sink, entities.StepQRCodeReady, entities.StepWaiting, entities.StepFailed)
	if report.Success || store.saves != 1 {
		t.Errorf("report = %+v, saves = %d", report, store.saves)
	}
}

func TestLoginUseCase_EncodesCapturedURL(t *testing.T) {
	page := loginPage()
	open := page.OnNavigate
	page.OnNavigate = func(p *logintest.Page, url string) {
		p.Push(createURL, http.StatusOK, `{"success":true,"data":{"url":"https://www.xiaohongshu.com/mobile/login?qrId=3"}}`)
		open(p, url)
	}
	uc, extractor, encoder := newUseCase(page, memory.NewRepository(), testConfig())

	qr, err := uc.ExtractQR(context.Background())
	if err != nil {
		t.Fatalf("ExtractQR() error = %v", err)
	}

	if qr.URL != "https://www.xiaohongshu.com/mobile/login?qrId=3" {
		t.Errorf("QR URL = %q", qr.URL)
	}
	if len(encoder.encoded) != 1 || extractor.calls != 0 {
		t.Errorf("encoder calls = %d, extractor calls = %d", len(encoder.encoded), extractor.calls)
	}
	if !page.IsClosed() {
		t.Error("browser session not closed")
	}
}

func TestLoginUseCase_ExtractQRFromPage(t *testing.T) {
	page := loginPage()
	uc, extractor, encoder := newUseCase(page, memory.NewRepository(), testConfig())

	qr, err := uc.ExtractQR(context.Background())
	if err != nil {
		t.Fatalf("ExtractQR() error = %v", err)
	}
	if !qr.Success || qr.Image != "cXI=" {
		t.Errorf("qr = %+v", qr)
	}
	if extractor.calls != 1 || len(encoder.encoded) != 0 {
		t.Errorf("extractor calls = %d, encoder calls = %d", extractor.calls, len(encoder.encoded))
	}
	if got := page.Navigated(); len(got) != 1 || got[0] != "https://www.xiaohongshu.com/explore" {
		t.Errorf("navigated = %v", got)
	}
}

func TestLoginUseCase_InvalidateAll(t *testing.T) {
	store := memory.NewRepository()
	ctx := context.Background()
	if _, err := store.Save(ctx, map[string]string{"a1": "A"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	uc, _, _ := newUseCase(logintest.NewPage(), store, testConfig())

	n, err := uc.InvalidateAll(ctx)
	if err != nil || n != 1 {
		t.Fatalf("InvalidateAll() = %d, %v; want 1, nil", n, err)
	}
	if _, err := uc.CurrentCredential(ctx); !errors.Is(err, loginerrors.ErrNoValidCredential) {
		t.Errorf("CurrentCredential() error = %v, want ErrNoValidCredential", err)
	}
}
