package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/email"
	"annotation-auth/internal/repository"
)

// MagicLinkConfig agrupa los parámetros del flujo sin contraseña.
type MagicLinkConfig struct {
	BaseURL    string
	TTL        time.Duration
	RateMax    int
	RateWindow time.Duration
	// StaleAfter es cuánto se conservan los tokens usados o vencidos para auditoría.
	StaleAfter time.Duration
}

func (c MagicLinkConfig) withDefaults() MagicLinkConfig {
	if c.TTL <= 0 {
		c.TTL = 15 * time.Minute
	}
	if c.RateMax <= 0 {
		c.RateMax = 5
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Hour
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 24 * time.Hour
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

type MagicLinkRequest struct {
	Email      string
	IsRegister bool
	Name       string
}

type MagicLinkRequestResult struct {
	MaskedEmail string `json:"masked_email"`
}

// MagicLinkResult es lo que obtiene quien canjea un magic link válido.
type MagicLinkResult struct {
	User          domain.User
	Tokens        TokenPair
	SessionSecret string
	Session       domain.Session
	IsNewUser     bool
}

// MagicLinkService emite y canjea secretos de un solo uso enviados por correo.
type MagicLinkService struct {
	logger   *zap.Logger
	links    repository.MagicLinkRepository
	users    *UserService
	sessions *SessionService
	codec    *TokenCodec
	limiter  *RateLimiter
	sender   email.Sender
	cfg      MagicLinkConfig
	now      func() time.Time
}

func NewMagicLinkService(
	logger *zap.Logger,
	links repository.MagicLinkRepository,
	users *UserService,
	sessions *SessionService,
	codec *TokenCodec,
	limiter *RateLimiter,
	sender email.Sender,
	cfg MagicLinkConfig,
) *MagicLinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = email.NewDisabledSender("email sender not configured")
	}
	return &MagicLinkService{
		logger:   logger,
		links:    links,
		users:    users,
		sessions: sessions,
		codec:    codec,
		limiter:  limiter,
		sender:   sender,
		cfg:      cfg.withDefaults(),
		now:      systemClock,
	}
}

// Request emite un magic link y lo envía por correo. Solo se persiste el hash
// del secreto.
func (s *MagicLinkService) Request(ctx context.Context, req MagicLinkRequest) (MagicLinkRequestResult, error) {
	emailAddr := normalizeEmail(req.Email)
	if !looksLikeEmail(emailAddr) {
		return MagicLinkRequestResult{}, domain.BadRequest("a valid email is required")
	}
	name := strings.TrimSpace(req.Name)

	if err := s.limiter.Enforce(ctx, emailAddr, domain.ActionMagicLink, s.cfg.RateMax, s.cfg.RateWindow); err != nil {
		return MagicLinkRequestResult{}, err
	}

	_, exists, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		return MagicLinkRequestResult{}, err
	}
	if req.IsRegister {
		if exists {
			return MagicLinkRequestResult{}, domain.Conflict("an account with this email already exists")
		}
		if name == "" {
			return MagicLinkRequestResult{}, domain.BadRequest("name is required to register")
		}
	} else if !exists {
		return MagicLinkRequestResult{}, domain.NotFound("no account found for this email")
	}

	secret, err := GenerateSecret()
	if err != nil {
		return MagicLinkRequestResult{}, fmt.Errorf("generate magic link secret: %w", err)
	}
	now := s.now()
	token := domain.MagicLinkToken{
		ID:         uuid.NewString(),
		Email:      emailAddr,
		TokenHash:  HashSecret(secret),
		IsRegister: req.IsRegister,
		ExpiresAt:  now.Add(s.cfg.TTL),
		CreatedAt:  now,
	}
	if req.IsRegister {
		token.Name = name
	}
	if err := s.links.Create(ctx, token); err != nil {
		return MagicLinkRequestResult{}, fmt.Errorf("store magic link: %w", err)
	}
	if err := s.limiter.Record(ctx, emailAddr, domain.ActionMagicLink); err != nil {
		return MagicLinkRequestResult{}, err
	}

	if err := s.sender.Send(ctx, s.buildMessage(emailAddr, secret, req.IsRegister)); err != nil {
		s.logger.Error("magic link email failed", zap.Error(err), zap.String("email", MaskEmail(emailAddr)))
		return MagicLinkRequestResult{}, fmt.Errorf("send magic link: %w", err)
	}
	s.logger.Info("magic link issued",
		zap.String("email", MaskEmail(emailAddr)),
		zap.Bool("register", req.IsRegister),
	)
	return MagicLinkRequestResult{MaskedEmail: MaskEmail(emailAddr)}, nil
}

// Redeem canjea el secreto por una sesión y un par de tokens. El token se marca
// usado antes de cualquier otro efecto, de modo que un fallo posterior no lo
// deja canjeable.
func (s *MagicLinkService) Redeem(ctx context.Context, secret string, meta SessionMeta) (MagicLinkResult, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return MagicLinkResult{}, domain.BadRequest("token is required")
	}

	hash := HashSecret(secret)
	token, err := s.links.GetUnusedByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MagicLinkResult{}, domain.Unauthorized("invalid or already used link")
		}
		return MagicLinkResult{}, fmt.Errorf("lookup magic link: %w", err)
	}
	if !HashesEqual(token.TokenHash, hash) {
		return MagicLinkResult{}, domain.Unauthorized("invalid or already used link")
	}

	now := s.now()
	won, err := s.links.MarkUsed(ctx, token.ID, now)
	if err != nil {
		return MagicLinkResult{}, fmt.Errorf("mark magic link used: %w", err)
	}
	if !won {
		return MagicLinkResult{}, domain.Unauthorized("invalid or already used link")
	}
	if token.ExpiredAt(now) {
		s.logger.Warn("expired magic link redeemed", zap.String("email", MaskEmail(token.Email)))
		return MagicLinkResult{}, domain.Unauthorized("link expired")
	}

	user, isNew, err := s.findOrCreateUser(ctx, token)
	if err != nil {
		return MagicLinkResult{}, err
	}

	pair, err := s.codec.IssuePair(user)
	if err != nil {
		return MagicLinkResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	sessionSecret, session, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return MagicLinkResult{}, err
	}
	return MagicLinkResult{
		User:          user,
		Tokens:        pair,
		SessionSecret: sessionSecret,
		Session:       session,
		IsNewUser:     isNew,
	}, nil
}

// PurgeStale borra tokens usados o vencidos que ya cumplieron su retención.
func (s *MagicLinkService) PurgeStale(ctx context.Context) (int64, error) {
	return s.links.DeleteStale(ctx, s.now().Add(-s.cfg.StaleAfter))
}

func (s *MagicLinkService) findOrCreateUser(ctx context.Context, token domain.MagicLinkToken) (domain.User, bool, error) {
	user, exists, err := s.users.FindByEmail(ctx, token.Email)
	if err != nil {
		return domain.User{}, false, err
	}
	if exists {
		return user, false, nil
	}

	user, err = s.users.CreatePasswordless(ctx, token.Email, token.Name)
	if err == nil {
		return user, true, nil
	}
	// Otro flujo pudo crear la cuenta entre la búsqueda y el insert.
	if errors.Is(err, domain.ErrConflict) {
		user, exists, lookupErr := s.users.FindByEmail(ctx, token.Email)
		if lookupErr != nil {
			return domain.User{}, false, lookupErr
		}
		if exists {
			return user, false, nil
		}
	}
	return domain.User{}, false, err
}

func (s *MagicLinkService) buildMessage(to, secret string, isRegister bool) email.Message {
	link := s.cfg.BaseURL + "/auth/verify?token=" + url.QueryEscape(secret)
	subject := "Your sign-in link"
	action := "sign in"
	if isRegister {
		subject = "Finish creating your account"
		action = "finish creating your account"
	}
	minutes := int(s.cfg.TTL.Minutes())
	text := fmt.Sprintf("Open this link to %s:\n\n%s\n\nThe link expires in %d minutes and can only be used once.", action, link, minutes)
	body := fmt.Sprintf(`<p>Click the button below to %s.</p><p><a href="%s">Continue</a></p><p>The link expires in %d minutes and can only be used once.</p>`,
		html.EscapeString(action), html.EscapeString(link), minutes)
	return email.Message{
		To:      to,
		Subject: subject,
		HTML:    body,
		Text:    text,
	}
}
