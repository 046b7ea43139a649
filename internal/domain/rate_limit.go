package domain

import "time"

const (
	ActionMagicLink      = "magic_link"
	ActionOAuthAuthorize = "oauth_authorize"
	ActionOAuthToken     = "oauth_token"
)

// RateLimitRecord es un hecho "ocurrió una petición"; solo se agrega.
type RateLimitRecord struct {
	Identifier string    `json:"identifier"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
}
