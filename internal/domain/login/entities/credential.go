package entities

import (
	"strings"
	"time"
)

// IdentityCookieNames lists the cookies whose values, concatenated in this
// order, form a credential's user ID. The order is part of the stored data
// contract and must never change.
var IdentityCookieNames = [...]string{"a1", "webId", "gid", "web_session"}

// DeriveUserID builds the user ID from the identity cookies. Missing cookies
// contribute an empty string.
func DeriveUserID(cookies map[string]string) string {
	var b strings.Builder
	for _, name := range IdentityCookieNames {
		b.WriteString(cookies[name])
	}
	return b.String()
}

// CredentialRecord is one persisted set of login cookies.
// At most one record is valid at a time; records are never deleted.
type CredentialRecord struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Cookies   map[string]string `json:"cookies"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	IsValid   bool              `json:"is_valid"`
}
