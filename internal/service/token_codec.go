package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"annotation-auth/internal/domain"
)

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// TokenCodec firma y valida los tokens bearer de acceso y refresco. Cada tipo
// usa su propio secreto y TTL.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims es el esquema fijo de los tokens; se rechaza cualquier token que no lo cumpla.
type Claims struct {
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	// ErrInvalidToken cubre firma incorrecta, algoritmo distinto, expiración y claims malformados.
	ErrInvalidToken = domain.Unauthorized("invalid token")
	// ErrSigningKeyMissing es un error de configuración, no de credenciales.
	ErrSigningKeyMissing = errors.New("token signing key not configured")
)

func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string) *TokenCodec {
	if accessTTL <= 0 {
		accessTTL = 30 * 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	if issuer == "" {
		issuer = "annotation-auth"
	}
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
		now:           systemClock,
	}
}

func (c *TokenCodec) SignAccessToken(subject, email string) (string, error) {
	return c.sign(TokenAccess, subject, email)
}

func (c *TokenCodec) SignRefreshToken(subject, email string) (string, error) {
	return c.sign(TokenRefresh, subject, email)
}

// IssuePair emite un par nuevo para el usuario.
func (c *TokenCodec) IssuePair(user domain.User) (TokenPair, error) {
	access, err := c.SignAccessToken(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.SignRefreshToken(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(c.accessTTL.Seconds()),
	}, nil
}

// Verify valida el token con el secreto del tipo indicado.
func (c *TokenCodec) Verify(token string, kind TokenKind) (domain.Identity, error) {
	secret, _, err := c.keyFor(kind)
	if err != nil {
		return domain.Identity{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	_, err = parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return domain.Identity{}, ErrInvalidToken
	}
	if !validClaims(claims, kind) {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// UserFinder resuelve al titular de un token de refresco.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// Refresh canjea un refresh token válido por un par nuevo. El usuario tiene que
// seguir existiendo; una cuenta borrada invalida sus tokens aunque no hayan vencido.
func (c *TokenCodec) Refresh(ctx context.Context, refreshToken string, users UserFinder) (TokenPair, domain.User, error) {
	identity, err := c.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, domain.User{}, err
	}
	user, err := users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenPair{}, domain.User{}, ErrInvalidToken
		}
		return TokenPair{}, domain.User{}, err
	}
	pair, err := c.IssuePair(user)
	if err != nil {
		return TokenPair{}, domain.User{}, err
	}
	return pair, user, nil
}

func (c *TokenCodec) sign(kind TokenKind, subject, email string) (string, error) {
	secret, ttl, err := c.keyFor(kind)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(email) == "" {
		return "", errors.New("token subject and email are required")
	}
	now := c.now()
	claims := Claims{
		Email:     email,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (c *TokenCodec) keyFor(kind TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case TokenAccess:
		if len(c.accessSecret) == 0 {
			return nil, 0, ErrSigningKeyMissing
		}
		return c.accessSecret, c.accessTTL, nil
	case TokenRefresh:
		if len(c.refreshSecret) == 0 {
			return nil, 0, ErrSigningKeyMissing
		}
		return c.refreshSecret, c.refreshTTL, nil
	default:
		return nil, 0, errors.New("unknown token kind")
	}
}

func validClaims(claims Claims, kind TokenKind) bool {
	if claims.TokenType != string(kind) {
		return false
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Email) == "" {
		return false
	}
	return claims.ID != ""
}
