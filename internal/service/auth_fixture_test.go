package service

import (
	"time"

	"go.uber.org/zap"
)

// authFixture conecta todos los servicios de autenticación sobre repos en
// memoria y un reloj común controlado por el test.
type authFixture struct {
	clock *fakeClock

	userRepo      *mockUserRepo
	tenants       *mockTenantProvisioner
	sessionRepo   *mockSessionRepo
	magicRepo     *mockMagicLinkRepo
	codeRepo      *mockOAuthCodeRepo
	extensionRepo *mockExtensionSessionRepo
	sender        *mockEmailSender

	codec     *TokenCodec
	limiter   *RateLimiter
	users     *UserService
	sessions  *SessionService
	magic     *MagicLinkService
	oauth     *OAuthService
	extension *ExtensionAuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		clock:         newFakeClock(),
		userRepo:      newMockUserRepo(),
		tenants:       newMockTenantProvisioner(),
		sessionRepo:   newMockSessionRepo(),
		magicRepo:     newMockMagicLinkRepo(),
		codeRepo:      newMockOAuthCodeRepo(),
		extensionRepo: newMockExtensionSessionRepo(),
		sender:        &mockEmailSender{},
	}
	logger := zap.NewNop()

	f.codec = NewTokenCodec("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour, "test")
	f.limiter = NewRateLimiter(logger, NewMemoryRateLimitStore())
	f.users = NewUserService(logger, f.userRepo, f.tenants)
	f.sessions = NewSessionService(logger, f.sessionRepo, f.userRepo, 30*24*time.Hour)
	f.magic = NewMagicLinkService(logger, f.magicRepo, f.users, f.sessions, f.codec, f.limiter, f.sender, MagicLinkConfig{
		BaseURL:    "https://app.example.com/",
		TTL:        15 * time.Minute,
		RateMax:    5,
		RateWindow: time.Hour,
	})
	f.oauth = NewOAuthService(logger, f.codeRepo, f.users, f.codec, f.limiter, OAuthConfig{
		CodeTTL:          5 * time.Minute,
		AuthorizeRateMax: 10,
		TokenRateMax:     20,
		RateWindow:       time.Minute,
	})
	f.extension = NewExtensionAuthService(logger, f.extensionRepo, f.users, f.codec, 10*time.Minute)

	// El codec conserva el reloj real: jwt valida exp contra él y los tests
	// avanzan el reloj falso solo para expirar secretos guardados.
	f.limiter.now = f.clock.Now
	f.users.now = f.clock.Now
	f.sessions.now = f.clock.Now
	f.magic.now = f.clock.Now
	f.oauth.now = f.clock.Now
	f.extension.now = f.clock.Now
	return f
}
