package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"annotation-auth/internal/domain"
)

// RateLimitWindow resume los registros de una clave dentro de la ventana.
type RateLimitWindow struct {
	Count  int
	Oldest time.Time
}

// RateLimitStore persiste hechos de petición para el limitador de ventana deslizante.
type RateLimitStore interface {
	Window(ctx context.Context, identifier, action string, since time.Time) (RateLimitWindow, error)
	Record(ctx context.Context, record domain.RateLimitRecord) error
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type PgRateLimitStore struct {
	pool *pgxpool.Pool
}

func NewPgRateLimitStore(pool *pgxpool.Pool) *PgRateLimitStore {
	return &PgRateLimitStore{pool: pool}
}

func (s *PgRateLimitStore) Window(ctx context.Context, identifier, action string, since time.Time) (RateLimitWindow, error) {
	const query = `
		SELECT COUNT(*), MIN(created_at)
		FROM rate_limits
		WHERE identifier = $1 AND action = $2 AND created_at >= $3
	`
	var w RateLimitWindow
	var oldest *time.Time
	if err := s.pool.QueryRow(ctx, query, identifier, action, since).Scan(&w.Count, &oldest); err != nil {
		return RateLimitWindow{}, err
	}
	if oldest != nil {
		w.Oldest = *oldest
	}
	return w, nil
}

func (s *PgRateLimitStore) Record(ctx context.Context, record domain.RateLimitRecord) error {
	const query = `INSERT INTO rate_limits (identifier, action, created_at) VALUES ($1, $2, $3)`
	_, err := s.pool.Exec(ctx, query, record.Identifier, record.Action, record.CreatedAt)
	return err
}

func (s *PgRateLimitStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rate_limits WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
