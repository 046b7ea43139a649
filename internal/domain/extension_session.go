package domain

import "time"

type ExtensionStatus string

const (
	ExtensionStatusPending   ExtensionStatus = "pending"
	ExtensionStatusCompleted ExtensionStatus = "completed"
	// ExtensionStatusExpired nunca se persiste; solo se reporta al hacer poll.
	ExtensionStatusExpired ExtensionStatus = "expired"
)

// ExtensionAuthSession es el handoff por polling entre la pestaña web y la extensión.
type ExtensionAuthSession struct {
	ID          string          `json:"id"`
	Status      ExtensionStatus `json:"status"`
	UserID      string          `json:"user_id,omitempty"`
	ExpiresAt   time.Time       `json:"expires_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (s ExtensionAuthSession) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
