package entities

import "time"

// SessionCookie is one browser cookie from a session snapshot
type SessionCookie struct {
	Name   string    `json:"name"`
	Value  string    `json:"value"`
	Domain string    `json:"domain"`
	Path   string    `json:"path"`
	Expiry time.Time `json:"expiry,omitzero"`
}

// CookieMap flattens a snapshot to name -> value. Later duplicates win.
func CookieMap(cookies []SessionCookie) map[string]string {
	m := make(map[string]string, len(cookies))
	for _, c := range cookies {
		m[c.Name] = c.Value
	}
	return m
}

// CookieValue returns the value of the named cookie, or "" when absent
func CookieValue(cookies []SessionCookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
