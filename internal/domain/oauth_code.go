package domain

import "time"

// AuthorizationCode liga un código OAuth a un challenge PKCE y a la redirección
// de una instancia concreta de la extensión. Se consume borrándolo.
type AuthorizationCode struct {
	Code          string    `json:"-"`
	UserID        string    `json:"user_id"`
	CodeChallenge string    `json:"code_challenge"`
	RedirectURI   string    `json:"redirect_uri"`
	ClientID      string    `json:"client_id"`
	State         string    `json:"state,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (c AuthorizationCode) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
