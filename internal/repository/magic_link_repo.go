package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"annotation-auth/internal/domain"
)

type MagicLinkRepository interface {
	Create(ctx context.Context, token domain.MagicLinkToken) error
	// GetUnusedByHash devuelve pgx.ErrNoRows si no hay un token sin usar con ese hash.
	GetUnusedByHash(ctx context.Context, tokenHash string) (domain.MagicLinkToken, error)
	// MarkUsed fija used_at solo si sigue en NULL; false significa que otro
	// llamador ya lo consumió.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type PgMagicLinkRepository struct {
	pool *pgxpool.Pool
}

func NewPgMagicLinkRepository(pool *pgxpool.Pool) *PgMagicLinkRepository {
	return &PgMagicLinkRepository{pool: pool}
}

func (r *PgMagicLinkRepository) Create(ctx context.Context, token domain.MagicLinkToken) error {
	const query = `
		INSERT INTO magic_link_tokens (id, email, token_hash, name, is_register, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.Email,
		token.TokenHash,
		nullableString(token.Name),
		token.IsRegister,
		token.ExpiresAt,
		token.CreatedAt,
	)
	return translateInsertErr(err)
}

func (r *PgMagicLinkRepository) GetUnusedByHash(ctx context.Context, tokenHash string) (domain.MagicLinkToken, error) {
	const query = `
		SELECT id, email, token_hash, name, is_register, expires_at, used_at, created_at
		FROM magic_link_tokens
		WHERE token_hash = $1 AND used_at IS NULL
	`
	var t domain.MagicLinkToken
	var name *string
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.Email,
		&t.TokenHash,
		&name,
		&t.IsRegister,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return domain.MagicLinkToken{}, err
	}
	t.Name = stringOrEmpty(name)
	return t, nil
}

func (r *PgMagicLinkRepository) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE magic_link_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteStale borra tokens vencidos o usados antes de before; quedan como
// auditoría hasta entonces.
func (r *PgMagicLinkRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM magic_link_tokens WHERE expires_at < $1 OR used_at < $1`
	tag, err := r.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
