package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/repository"
)

const defaultExtensionSessionTTL = 10 * time.Minute

type ExtensionSessionHandle struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExtensionPollResult solo trae Tokens y User cuando Status es completed.
type ExtensionPollResult struct {
	Status domain.ExtensionStatus `json:"status"`
	Tokens *TokenPair             `json:"tokens,omitempty"`
	User   *domain.Identity       `json:"user,omitempty"`
}

// ExtensionAuthService permite que la extensión obtenga tokens de un login
// hecho en otra pestaña: la extensión crea un handle, la web lo completa y la
// extensión lo consulta hasta recibir los tokens una única vez.
type ExtensionAuthService struct {
	logger   *zap.Logger
	sessions repository.ExtensionSessionRepository
	users    *UserService
	codec    *TokenCodec
	ttl      time.Duration
	now      func() time.Time
}

func NewExtensionAuthService(
	logger *zap.Logger,
	sessions repository.ExtensionSessionRepository,
	users *UserService,
	codec *TokenCodec,
	ttl time.Duration,
) *ExtensionAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultExtensionSessionTTL
	}
	return &ExtensionAuthService{
		logger:   logger,
		sessions: sessions,
		users:    users,
		codec:    codec,
		ttl:      ttl,
		now:      systemClock,
	}
}

func (s *ExtensionAuthService) Create(ctx context.Context) (ExtensionSessionHandle, error) {
	// El handle basta para recoger los tokens, así que tiene la misma entropía
	// que cualquier otro secreto.
	id, err := GenerateSecret()
	if err != nil {
		return ExtensionSessionHandle{}, fmt.Errorf("generate extension session id: %w", err)
	}
	now := s.now()
	session := domain.ExtensionAuthSession{
		ID:        id,
		Status:    domain.ExtensionStatusPending,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return ExtensionSessionHandle{}, fmt.Errorf("create extension session: %w", err)
	}
	return ExtensionSessionHandle{SessionID: id, ExpiresAt: session.ExpiresAt}, nil
}

// Complete liga la sesión pendiente al usuario autenticado en la web.
func (s *ExtensionAuthService) Complete(ctx context.Context, sessionID, userID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.BadRequest("session id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.Unauthorized("authentication required")
	}

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	now := s.now()
	if session.ExpiredAt(now) {
		s.discard(ctx, sessionID)
		return domain.NotFound("extension session not found or expired")
	}
	if session.Status == domain.ExtensionStatusCompleted {
		return domain.BadRequest("extension session already completed")
	}

	ok, err := s.sessions.Complete(ctx, sessionID, userID, now)
	if err != nil {
		return fmt.Errorf("complete extension session: %w", err)
	}
	if !ok {
		// Otro Complete o un poll ganaron la carrera.
		return domain.BadRequest("extension session is no longer pending")
	}
	s.logger.Info("extension session completed", zap.String("user_id", userID))
	return nil
}

// Poll informa el estado. Una sesión completed se borra al entregar los tokens;
// un segundo poll la ve como inexistente.
func (s *ExtensionAuthService) Poll(ctx context.Context, sessionID string) (ExtensionPollResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ExtensionPollResult{}, domain.BadRequest("session id is required")
	}

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return ExtensionPollResult{}, err
	}
	if session.ExpiredAt(s.now()) {
		s.discard(ctx, sessionID)
		return ExtensionPollResult{Status: domain.ExtensionStatusExpired}, domain.Expired("extension session expired")
	}
	if session.Status != domain.ExtensionStatusCompleted {
		return ExtensionPollResult{Status: domain.ExtensionStatusPending}, nil
	}

	deleted, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return ExtensionPollResult{}, fmt.Errorf("consume extension session: %w", err)
	}
	if !deleted {
		return ExtensionPollResult{}, domain.NotFound("extension session not found")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ExtensionPollResult{}, domain.NotFound("extension session user not found")
		}
		return ExtensionPollResult{}, err
	}
	pair, err := s.codec.IssuePair(user)
	if err != nil {
		return ExtensionPollResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	return ExtensionPollResult{
		Status: domain.ExtensionStatusCompleted,
		Tokens: &pair,
		User:   &domain.Identity{UserID: user.ID, Email: user.Email},
	}, nil
}

// Delete cancela la sesión. Borrar una inexistente no es error.
func (s *ExtensionAuthService) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.Delete(ctx, strings.TrimSpace(sessionID)); err != nil {
		return fmt.Errorf("delete extension session: %w", err)
	}
	return nil
}

func (s *ExtensionAuthService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func (s *ExtensionAuthService) load(ctx context.Context, sessionID string) (domain.ExtensionAuthSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExtensionAuthSession{}, domain.NotFound("extension session not found")
		}
		return domain.ExtensionAuthSession{}, fmt.Errorf("lookup extension session: %w", err)
	}
	return session, nil
}

func (s *ExtensionAuthService) discard(ctx context.Context, sessionID string) {
	if _, err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("delete expired extension session failed", zap.Error(err))
	}
}
