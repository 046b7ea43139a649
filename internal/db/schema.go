package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Las restricciones únicas sobre token_hash y code son las que permiten que
// solo un llamador concurrente gane el consumo de un secreto.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL,
		password_hash TEXT,
		display_name  TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash     TEXT NOT NULL UNIQUE,
		expires_at     TIMESTAMPTZ NOT NULL,
		last_active_at TIMESTAMPTZ,
		user_agent     TEXT,
		ip_address     TEXT,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_user_id_idx ON sessions (user_id)`,
	`CREATE TABLE IF NOT EXISTS magic_link_tokens (
		id          TEXT PRIMARY KEY,
		email       TEXT NOT NULL,
		token_hash  TEXT NOT NULL UNIQUE,
		name        TEXT,
		is_register BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at  TIMESTAMPTZ NOT NULL,
		used_at     TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_authorization_codes (
		code           TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		code_challenge TEXT NOT NULL,
		redirect_uri   TEXT NOT NULL,
		client_id      TEXT NOT NULL,
		state          TEXT NOT NULL DEFAULT '',
		expires_at     TIMESTAMPTZ NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS extension_auth_sessions (
		id           TEXT PRIMARY KEY,
		status       TEXT NOT NULL,
		user_id      TEXT REFERENCES users(id) ON DELETE CASCADE,
		expires_at   TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		id         BIGSERIAL PRIMARY KEY,
		identifier TEXT NOT NULL,
		action     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS rate_limits_lookup_idx ON rate_limits (identifier, action, created_at)`,
	`CREATE TABLE IF NOT EXISTS workspaces (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id           TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
		name         TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema crea las tablas de autenticación si no existen.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
