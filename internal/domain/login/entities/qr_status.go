package entities

import "encoding/json"

// QrCode is the code_status value reported by the status-push endpoint
type QrCode int

const (
	QrPending   QrCode = 0 // QR shown, not scanned yet
	QrScanned   QrCode = 1 // scanned on the phone, waiting for confirmation
	QrConfirmed QrCode = 2 // confirmed, login_info attached
)

// String returns the lowercase status name
func (c QrCode) String() string {
	switch c {
	case QrPending:
		return "pending"
	case QrScanned:
		return "scanned"
	case QrConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// LoginInfo is the opaque payload attached to a confirmed status push.
// Only user_id is interpreted; the rest is carried through untouched.
type LoginInfo map[string]json.RawMessage

// UserID returns login_info.user_id when it is a JSON string
func (l LoginInfo) UserID() string {
	raw, ok := l["user_id"]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}

// StatusPushData is the data object of a status push
type StatusPushData struct {
	CodeStatus QrCode    `json:"code_status"`
	LoginInfo  LoginInfo `json:"login_info,omitempty"`
}

// StatusPush is one status-push response body.
// Raw keeps the full payload as received.
type StatusPush struct {
	Success bool            `json:"success"`
	Data    StatusPushData  `json:"data"`
	Raw     json.RawMessage `json:"-"`
}
