package domain

import "time"

// MagicLinkToken guarda el hash de un secreto de un solo uso. La única
// mutación permitida es fijar UsedAt una vez.
type MagicLinkToken struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	TokenHash  string     `json:"-"`
	Name       string     `json:"name,omitempty"`
	IsRegister bool       `json:"is_register"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (t MagicLinkToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
