package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/repository"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// SessionMeta es la metadata del cliente que se guarda junto a la sesión.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// SessionService emite y valida los secretos opacos de sesión web. En la base
// solo queda el hash; el secreto en claro se entrega una única vez al crearla.
type SessionService struct {
	logger   *zap.Logger
	sessions repository.SessionRepository
	users    repository.UserRepository
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionService(logger *zap.Logger, sessions repository.SessionRepository, users repository.UserRepository, ttl time.Duration) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionService{
		logger:   logger,
		sessions: sessions,
		users:    users,
		ttl:      ttl,
		now:      systemClock,
	}
}

// TTL es la vida de la sesión; la capa HTTP la usa como max-age de la cookie.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create devuelve el secreto en claro y la sesión persistida.
func (s *SessionService) Create(ctx context.Context, userID string, meta SessionMeta) (string, domain.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return "", domain.Session{}, errors.New("session user id is required")
	}
	secret, err := GenerateSecret()
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("generate session secret: %w", err)
	}

	now := s.now()
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashSecret(secret),
		ExpiresAt: now.Add(s.ttl),
		UserAgent: truncate(meta.UserAgent, 512),
		IPAddress: meta.IPAddress,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return secret, session, nil
}

// Validate resuelve la identidad de un secreto de sesión. Cada validación
// exitosa también actualiza last_active_at; las sesiones vencidas se borran.
func (s *SessionService) Validate(ctx context.Context, secret string) (domain.Identity, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return domain.Identity{}, domain.Unauthorized("missing session")
	}

	hash := HashSecret(secret)
	session, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Identity{}, domain.Unauthorized("invalid session")
		}
		return domain.Identity{}, fmt.Errorf("lookup session: %w", err)
	}
	if !HashesEqual(session.TokenHash, hash) {
		return domain.Identity{}, domain.Unauthorized("invalid session")
	}

	now := s.now()
	if session.ExpiredAt(now) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			s.logger.Warn("delete expired session failed", zap.Error(err), zap.String("session_id", session.ID))
		}
		return domain.Identity{}, domain.Unauthorized("session expired")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Identity{}, domain.Unauthorized("invalid session")
		}
		return domain.Identity{}, fmt.Errorf("lookup session user: %w", err)
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		// Un logout concurrente pudo borrar la fila entre la lectura y el touch.
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Identity{}, domain.Unauthorized("invalid session")
		}
		return domain.Identity{}, fmt.Errorf("touch session: %w", err)
	}
	return domain.Identity{UserID: user.ID, Email: user.Email}, nil
}

// Destroy cierra una sesión concreta. Es idempotente.
func (s *SessionService) Destroy(ctx context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	if _, err := s.sessions.DeleteByTokenHash(ctx, HashSecret(secret)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DestroyAll cierra todas las sesiones del usuario.
func (s *SessionService) DestroyAll(ctx context.Context, userID string) error {
	n, err := s.sessions.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	s.logger.Info("sessions destroyed", zap.String("user_id", userID), zap.Int64("count", n))
	return nil
}

// PurgeExpired es higiene; Validate ya trata las vencidas.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
