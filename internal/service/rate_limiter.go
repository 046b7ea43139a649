package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/repository"
)

// RateLimitResult es el resultado de consultar la ventana de una clave.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter aplica límites de ventana deslizante por (identificador, acción).
// Check no registra nada; el llamador invoca Record una vez por intento admitido.
type RateLimiter struct {
	logger *zap.Logger
	store  repository.RateLimitStore
	now    func() time.Time
}

func NewRateLimiter(logger *zap.Logger, store repository.RateLimitStore) *RateLimiter {
	if store == nil {
		store = NewMemoryRateLimitStore()
	}
	return &RateLimiter{
		logger: logger,
		store:  store,
		now:    systemClock,
	}
}

func (l *RateLimiter) Check(ctx context.Context, identifier, action string, max int, window time.Duration) (RateLimitResult, error) {
	identifier = normalizeKey(identifier)
	if identifier == "" {
		return RateLimitResult{}, domain.BadRequest("rate limit identifier is required")
	}
	if max <= 0 || window <= 0 {
		return RateLimitResult{}, fmt.Errorf("rate limit %s: invalid max %d / window %v", action, max, window)
	}

	now := l.now()
	w, err := l.store.Window(ctx, identifier, action, now.Add(-window))
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit window %s: %w", action, err)
	}

	if w.Count < max {
		return RateLimitResult{Allowed: true, Remaining: max - w.Count}, nil
	}

	retryAfter := w.Oldest.Add(window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return RateLimitResult{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
}

// Enforce combina Check con el error tipado RateLimited.
func (l *RateLimiter) Enforce(ctx context.Context, identifier, action string, max int, window time.Duration) error {
	res, err := l.Check(ctx, identifier, action, max, window)
	if err != nil {
		return err
	}
	if !res.Allowed {
		if l.logger != nil {
			l.logger.Warn("rate limit exceeded",
				zap.String("action", action),
				zap.Duration("retry_after", res.RetryAfter),
			)
		}
		return domain.RateLimited(res.RetryAfter)
	}
	return nil
}

func (l *RateLimiter) Record(ctx context.Context, identifier, action string) error {
	identifier = normalizeKey(identifier)
	if identifier == "" {
		return nil
	}
	err := l.store.Record(ctx, domain.RateLimitRecord{
		Identifier: identifier,
		Action:     action,
		CreatedAt:  l.now(),
	})
	if err != nil {
		return fmt.Errorf("rate limit record %s: %w", action, err)
	}
	return nil
}

// Purge borra registros más viejos que retention. Es higiene de almacenamiento;
// Check ya ignora las filas fuera de la ventana.
func (l *RateLimiter) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return l.store.Purge(ctx, l.now().Add(-retention))
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
