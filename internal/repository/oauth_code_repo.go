package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"annotation-auth/internal/domain"
)

type OAuthCodeRepository interface {
	Create(ctx context.Context, code domain.AuthorizationCode) error
	Get(ctx context.Context, code string) (domain.AuthorizationCode, error)
	// Delete es el punto de commit del intercambio: solo quien recibe true
	// puede emitir tokens.
	Delete(ctx context.Context, code string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PgOAuthCodeRepository struct {
	pool *pgxpool.Pool
}

func NewPgOAuthCodeRepository(pool *pgxpool.Pool) *PgOAuthCodeRepository {
	return &PgOAuthCodeRepository{pool: pool}
}

func (r *PgOAuthCodeRepository) Create(ctx context.Context, code domain.AuthorizationCode) error {
	const query = `
		INSERT INTO oauth_authorization_codes (code, user_id, code_challenge, redirect_uri, client_id, state, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		code.Code,
		code.UserID,
		code.CodeChallenge,
		code.RedirectURI,
		code.ClientID,
		code.State,
		code.ExpiresAt,
		code.CreatedAt,
	)
	return translateInsertErr(err)
}

func (r *PgOAuthCodeRepository) Get(ctx context.Context, code string) (domain.AuthorizationCode, error) {
	const query = `
		SELECT code, user_id, code_challenge, redirect_uri, client_id, state, expires_at, created_at
		FROM oauth_authorization_codes
		WHERE code = $1
	`
	var c domain.AuthorizationCode
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&c.Code,
		&c.UserID,
		&c.CodeChallenge,
		&c.RedirectURI,
		&c.ClientID,
		&c.State,
		&c.ExpiresAt,
		&c.CreatedAt,
	)
	if err != nil {
		return domain.AuthorizationCode{}, err
	}
	return c, nil
}

func (r *PgOAuthCodeRepository) Delete(ctx context.Context, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_authorization_codes WHERE code = $1`, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgOAuthCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_authorization_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
