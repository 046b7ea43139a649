package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/repository"
)

// extensionRedirectPattern captura el id de 32 letras de la extensión.
var extensionRedirectPattern = regexp.MustCompile(`^https://([a-z]{32})\.chromiumapp\.org/`)

type OAuthConfig struct {
	CodeTTL          time.Duration
	AuthorizeRateMax int
	TokenRateMax     int
	RateWindow       time.Duration
}

func (c OAuthConfig) withDefaults() OAuthConfig {
	if c.CodeTTL <= 0 {
		c.CodeTTL = 5 * time.Minute
	}
	if c.AuthorizeRateMax <= 0 {
		c.AuthorizeRateMax = 10
	}
	if c.TokenRateMax <= 0 {
		c.TokenRateMax = 20
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	return c
}

type AuthorizeRequest struct {
	UserID        string
	CodeChallenge string
	RedirectURI   string
	ClientID      string
	State         string
}

type AuthorizeResult struct {
	Code string `json:"code"`
	// RedirectURL es RedirectURI con code y state ya añadidos.
	RedirectURL string    `json:"redirect_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type TokenExchangeRequest struct {
	Code         string
	CodeVerifier string
	RedirectURI  string
	ClientID     string
}

type TokenExchangeResult struct {
	Tokens TokenPair
	User   domain.User
}

// OAuthService implementa authorization code + PKCE (S256) para el único
// cliente de primera parte: la extensión del navegador. No hay client secret.
type OAuthService struct {
	logger  *zap.Logger
	codes   repository.OAuthCodeRepository
	users   *UserService
	codec   *TokenCodec
	limiter *RateLimiter
	cfg     OAuthConfig
	now     func() time.Time
}

func NewOAuthService(
	logger *zap.Logger,
	codes repository.OAuthCodeRepository,
	users *UserService,
	codec *TokenCodec,
	limiter *RateLimiter,
	cfg OAuthConfig,
) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthService{
		logger:  logger,
		codes:   codes,
		users:   users,
		codec:   codec,
		limiter: limiter,
		cfg:     cfg.withDefaults(),
		now:     systemClock,
	}
}

// ValidateRedirectURI exige https://<id>.chromiumapp.org/... con id == clientID.
func ValidateRedirectURI(redirectURI, clientID string) error {
	m := extensionRedirectPattern.FindStringSubmatch(redirectURI)
	if m == nil {
		return domain.InvalidRequest("redirect_uri must be an extension chromiumapp.org url")
	}
	if m[1] != clientID {
		return domain.InvalidRequest("redirect_uri does not belong to client_id")
	}
	return nil
}

// Authorize emite un código para el usuario autenticado.
func (s *OAuthService) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return AuthorizeResult{}, domain.Unauthorized("authentication required")
	}
	if req.ClientID == "" {
		return AuthorizeResult{}, domain.InvalidRequest("client_id is required")
	}
	if err := s.limiter.Enforce(ctx, req.ClientID, domain.ActionOAuthAuthorize, s.cfg.AuthorizeRateMax, s.cfg.RateWindow); err != nil {
		return AuthorizeResult{}, err
	}
	if !isCodeChallenge(req.CodeChallenge) {
		return AuthorizeResult{}, domain.InvalidRequest("code_challenge must be an S256 challenge")
	}
	if err := ValidateRedirectURI(req.RedirectURI, req.ClientID); err != nil {
		return AuthorizeResult{}, err
	}
	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return AuthorizeResult{}, domain.InvalidRequest("redirect_uri is malformed")
	}

	code, err := GenerateSecret()
	if err != nil {
		return AuthorizeResult{}, fmt.Errorf("generate authorization code: %w", err)
	}
	now := s.now()
	record := domain.AuthorizationCode{
		Code:          code,
		UserID:        req.UserID,
		CodeChallenge: req.CodeChallenge,
		RedirectURI:   req.RedirectURI,
		ClientID:      req.ClientID,
		State:         req.State,
		ExpiresAt:     now.Add(s.cfg.CodeTTL),
		CreatedAt:     now,
	}
	if err := s.codes.Create(ctx, record); err != nil {
		return AuthorizeResult{}, fmt.Errorf("store authorization code: %w", err)
	}
	if err := s.limiter.Record(ctx, req.ClientID, domain.ActionOAuthAuthorize); err != nil {
		return AuthorizeResult{}, err
	}

	q := redirect.Query()
	q.Set("code", code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	redirect.RawQuery = q.Encode()

	s.logger.Info("authorization code issued", zap.String("user_id", req.UserID), zap.String("client_id", req.ClientID))
	return AuthorizeResult{
		Code:        code,
		RedirectURL: redirect.String(),
		ExpiresAt:   record.ExpiresAt,
	}, nil
}

// Exchange canjea código + verifier por un par de tokens. El borrado del código
// es el punto de commit: si otra petición lo borró primero, esta pierde con
// invalid_grant.
func (s *OAuthService) Exchange(ctx context.Context, req TokenExchangeRequest) (TokenExchangeResult, error) {
	if req.ClientID == "" {
		return TokenExchangeResult{}, domain.InvalidClient("client_id is required")
	}
	if req.Code == "" || req.CodeVerifier == "" || req.RedirectURI == "" {
		return TokenExchangeResult{}, domain.InvalidRequest("code, code_verifier and redirect_uri are required")
	}
	if err := s.limiter.Enforce(ctx, req.ClientID, domain.ActionOAuthToken, s.cfg.TokenRateMax, s.cfg.RateWindow); err != nil {
		return TokenExchangeResult{}, err
	}
	if err := s.limiter.Record(ctx, req.ClientID, domain.ActionOAuthToken); err != nil {
		return TokenExchangeResult{}, err
	}

	code, err := s.codes.Get(ctx, req.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenExchangeResult{}, domain.InvalidGrant("authorization code is invalid")
		}
		return TokenExchangeResult{}, fmt.Errorf("lookup authorization code: %w", err)
	}

	if code.ExpiredAt(s.now()) {
		if _, err := s.codes.Delete(ctx, code.Code); err != nil {
			s.logger.Warn("delete expired authorization code failed", zap.Error(err))
		}
		return TokenExchangeResult{}, domain.InvalidGrant("authorization code expired")
	}
	if req.RedirectURI != code.RedirectURI {
		return TokenExchangeResult{}, domain.InvalidRequest("redirect_uri does not match authorization request")
	}
	if req.ClientID != code.ClientID {
		return TokenExchangeResult{}, domain.InvalidClient("client_id does not match authorization request")
	}
	if !ValidatePKCE(req.CodeVerifier, code.CodeChallenge) {
		s.logger.Warn("pkce verification failed", zap.String("client_id", req.ClientID))
		return TokenExchangeResult{}, domain.InvalidGrant("code_verifier does not match code_challenge")
	}

	user, err := s.users.GetByID(ctx, code.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenExchangeResult{}, domain.InvalidGrant("authorizing user no longer exists")
		}
		return TokenExchangeResult{}, err
	}

	deleted, err := s.codes.Delete(ctx, code.Code)
	if err != nil {
		return TokenExchangeResult{}, fmt.Errorf("consume authorization code: %w", err)
	}
	if !deleted {
		return TokenExchangeResult{}, domain.InvalidGrant("authorization code is invalid")
	}

	pair, err := s.codec.IssuePair(user)
	if err != nil {
		return TokenExchangeResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	return TokenExchangeResult{Tokens: pair, User: user}, nil
}

// PurgeExpired borra códigos vencidos que nadie intentó canjear.
func (s *OAuthService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.codes.DeleteExpired(ctx, s.now())
}
