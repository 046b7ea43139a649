package domain

import "time"

// Session es una sesión web de larga duración. Solo se persiste el hash del
// secreto opaco; el valor en claro vive en la cookie.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	TokenHash    string     `json:"-"`
	ExpiresAt    time.Time  `json:"expires_at"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	UserAgent    string     `json:"user_agent,omitempty"`
	IPAddress    string     `json:"ip_address,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (s Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
