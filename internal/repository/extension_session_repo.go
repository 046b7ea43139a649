package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"annotation-auth/internal/domain"
)

type ExtensionSessionRepository interface {
	Create(ctx context.Context, session domain.ExtensionAuthSession) error
	Get(ctx context.Context, id string) (domain.ExtensionAuthSession, error)
	// Complete pasa pending→completed solo si la fila sigue pendiente y sin vencer.
	Complete(ctx context.Context, id, userID string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PgExtensionSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgExtensionSessionRepository(pool *pgxpool.Pool) *PgExtensionSessionRepository {
	return &PgExtensionSessionRepository{pool: pool}
}

func (r *PgExtensionSessionRepository) Create(ctx context.Context, session domain.ExtensionAuthSession) error {
	const query = `
		INSERT INTO extension_auth_sessions (id, status, user_id, expires_at, completed_at, created_at)
		VALUES ($1, $2, NULL, $3, NULL, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		string(session.Status),
		session.ExpiresAt,
		session.CreatedAt,
	)
	return translateInsertErr(err)
}

func (r *PgExtensionSessionRepository) Get(ctx context.Context, id string) (domain.ExtensionAuthSession, error) {
	const query = `
		SELECT id, status, user_id, expires_at, completed_at, created_at
		FROM extension_auth_sessions
		WHERE id = $1
	`
	var s domain.ExtensionAuthSession
	var status string
	var userID *string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&status,
		&userID,
		&s.ExpiresAt,
		&s.CompletedAt,
		&s.CreatedAt,
	)
	if err != nil {
		return domain.ExtensionAuthSession{}, err
	}
	s.Status = domain.ExtensionStatus(status)
	s.UserID = stringOrEmpty(userID)
	return s, nil
}

func (r *PgExtensionSessionRepository) Complete(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	const query = `
		UPDATE extension_auth_sessions
		SET status = $2, user_id = $3, completed_at = $4
		WHERE id = $1 AND status = $5 AND expires_at > $4
	`
	tag, err := r.pool.Exec(ctx, query,
		id,
		string(domain.ExtensionStatusCompleted),
		userID,
		at,
		string(domain.ExtensionStatusPending),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgExtensionSessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM extension_auth_sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgExtensionSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM extension_auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
