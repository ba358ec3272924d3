package observer

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	"github.com/1195214305/xhs-backend/internal/domain/login/logintest"
)

const statusURL = "https://edith.xiaohongshu.com/api/sns/web/v1/login/qrcode/status?qr_id=1&code=2"

func newObserver() *Observer {
	return New("/api/sns/web/v1/login/qrcode/status", nil, zerolog.Nop())
}

func TestObserver_ScannedThenConfirmed(t *testing.T) {
	page := logintest.NewPage()
	obs := newObserver()
	detach := obs.Attach(page)
	defer detach()

	page.Push(statusURL, http.StatusOK, `{"success":true,"data":{"code_status":1}}`)

	if obs.IsLoggedIn() {
		t.Fatal("IsLoggedIn() = true after code 1")
	}
	latest, ok := obs.LatestStatus()
	if !ok || latest.Data.CodeStatus != entities.QrScanned {
		t.Fatalf("LatestStatus() = %+v, %v; want code 1", latest, ok)
	}

	page.Push(statusURL, http.StatusOK, `{"success":true,"data":{"code_status":2,"login_info":{"user_id":"u-42","nickname":"n"}}}`)

	if !obs.IsLoggedIn() {
		t.Fatal("IsLoggedIn() = false after code 2")
	}
	info, ok := obs.LoginInfo()
	if !ok || info.UserID() != "u-42" {
		t.Errorf("LoginInfo() user = %q, %v; want u-42", info.UserID(), ok)
	}

	history := obs.History()
	if len(history) != 2 || history[0] != entities.QrScanned || history[1] != entities.QrConfirmed {
		t.Errorf("History() = %v, want [1 2]", history)
	}
}

func TestObserver_ConfirmedWithoutScanned(t *testing.T) {
	page := logintest.NewPage()
	obs := newObserver()
	obs.Attach(page)

	page.Push(statusURL, http.StatusOK, `{"success":true,"data":{"code_status":2}}`)

	if !obs.IsLoggedIn() {
		t.Error("IsLoggedIn() = false, want true")
	}
	if _, ok := obs.LoginInfo(); ok {
		t.Error("LoginInfo() present without login_info in payload")
	}
}

func TestObserver_IgnoresBadResponses(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		status int
		body   string
	}{
		{"other endpoint", "https://edith.xiaohongshu.com/api/sns/web/v1/homefeed", http.StatusOK, `{"success":true,"data":{"code_status":2}}`},
		{"non-200", statusURL, http.StatusInternalServerError, `{"success":true,"data":{"code_status":2}}`},
		{"not json", statusURL, http.StatusOK, `<html>`},
		{"success false", statusURL, http.StatusOK, `{"success":false,"data":{"code_status":2}}`},
		{"missing data", statusURL, http.StatusOK, `{"success":true}`},
		{"missing code_status", statusURL, http.StatusOK, `{"success":true,"data":{}}`},
		{"code_status not a number", statusURL, http.StatusOK, `{"success":true,"data":{"code_status":"2"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := logintest.NewPage()
			obs := newObserver()
			obs.Attach(page)

			page.Push(tt.url, tt.status, tt.body)

			if _, ok := obs.LatestStatus(); ok {
				t.Error("status recorded for ignored response")
			}
			if obs.IsLoggedIn() {
				t.Error("IsLoggedIn() = true for ignored response")
			}
		})
	}
}

func TestObserver_LastWriteWins(t *testing.T) {
	page := logintest.NewPage()
	obs := newObserver()
	obs.Attach(page)

	page.Push(statusURL, http.StatusOK, `{"success":true,"data":{"code_status":2}}`)
	page.Push(statusURL, http.StatusOK, `{"success":true,"data":{"code_status":0}}`)

	latest, _ := obs.LatestStatus()
	if latest.Data.CodeStatus != entities.QrPending {
		t.Errorf("latest code = %d, want 0", latest.Data.CodeStatus)
	}
	if string(latest.Raw) != `{"success":true,"data":{"code_status":0}}` {
		t.Errorf("Raw = %s", latest.Raw)
	}
}

func TestObserver_Detach(t *testing.T) {
	page := logintest.NewPage()
	obs := newObserver()
	detach := obs.Attach(page)
	detach()

	page.Push(statusURL, http.StatusOK, `{"success":true,"data":{"code_status":2}}`)

	if obs.IsLoggedIn() {
		t.Error("detached observer still receives pushes")
	}
}

func TestParseQRCreate(t *testing.T) {
	url, ok := ParseQRCreate([]byte(`{"success":true,"data":{"qr_id":"1","code":"2","url":"https://www.xiaohongshu.com/mobile/login?qrId=1"}}`))
	if !ok || url != "https://www.xiaohongshu.com/mobile/login?qrId=1" {
		t.Errorf("ParseQRCreate() = %q, %v", url, ok)
	}

	if _, ok := ParseQRCreate([]byte(`{"success":true,"data":{}}`)); ok {
		t.Error("ParseQRCreate() accepted body without url")
	}
}

func TestQRURLCapture(t *testing.T) {
	page := logintest.NewPage()
	capture := NewQRURLCapture("/api/sns/web/v1/login/qrcode/create", zerolog.Nop())
	capture.Attach(page)

	page.Push("https://edith.xiaohongshu.com/api/sns/web/v1/login/qrcode/create", http.StatusOK,
		`{"success":true,"data":{"url":"https://www.xiaohongshu.com/mobile/login?qrId=9"}}`)

	if got := capture.URL(); got != "https://www.xiaohongshu.com/mobile/login?qrId=9" {
		t.Errorf("URL() = %q", got)
	}
}
