package models

import (
	"time"
)

// Tokens is the persisted Xero OAuth credential bundle.
// Xero rotates the refresh token on every refresh, so the bundle is always
// replaced as a whole; a partially updated record is unrecoverable.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IDToken      string    `json:"id_token,omitempty"`
	Scope        string    `json:"scope"`
}

// Expired reports whether the access token has reached its expiry.
// ExpiresAt already includes the safety buffer applied at exchange time.
func (t *Tokens) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ConnectionStatus describes the current Xero connection
type ConnectionStatus struct {
	Connected bool       `json:"connected"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	TenantID  string     `json:"tenantId,omitempty"`
}
