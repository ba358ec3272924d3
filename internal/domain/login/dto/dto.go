package dto

import (
	"time"

	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

// StartFlowResponse is returned once a flow's QR code is ready
type StartFlowResponse struct {
	FlowID    string    `json:"flow_id"`
	Status    string    `json:"status"`
	QRBase64  string    `json:"qr_base64"`
	QRASCII   string    `json:"qr_ascii,omitempty"`
	QRURL     string    `json:"qr_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FlowStatusResponse reports the state of a flow
type FlowStatusResponse struct {
	FlowID     string  `json:"flow_id"`
	Status     string  `json:"status"`
	CodeStatus *string `json:"code_status,omitempty"`
	UserID     *string `json:"user_id,omitempty"` // set after confirmation
	Reason     *string `json:"reason,omitempty"`  // set on cancel, timeout or failure
}

// CredentialResponse describes the current valid credential. Cookie values
// are never returned.
type CredentialResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CookieNames []string  `json:"cookie_names"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InvalidateResponse reports how many credentials were invalidated
type InvalidateResponse struct {
	Invalidated int64 `json:"invalidated"`
}

// NewStartFlowResponse builds the start response from a flow snapshot
func NewStartFlowResponse(s *entities.FlowSnapshot) StartFlowResponse {
	resp := StartFlowResponse{
		FlowID:    s.ID,
		Status:    string(s.Status),
		ExpiresAt: s.ExpiresAt,
	}
	if s.QR != nil {
		resp.QRBase64 = s.QR.Image
		resp.QRASCII = s.QR.ASCII
		resp.QRURL = s.QR.URL
	}
	return resp
}

// NewFlowStatusResponse builds the status response from a flow snapshot
func NewFlowStatusResponse(s *entities.FlowSnapshot) FlowStatusResponse {
	resp := FlowStatusResponse{
		FlowID: s.ID,
		Status: string(s.Status),
	}
	if s.CodeStatus != nil {
		code := s.CodeStatus.String()
		resp.CodeStatus = &code
	}
	if s.UserID != "" {
		resp.UserID = &s.UserID
	}
	if s.Reason != "" {
		resp.Reason = &s.Reason
	}
	return resp
}
