package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"annotation-auth/internal/config"
	"annotation-auth/internal/db"
	"annotation-auth/internal/email"
	apihttp "annotation-auth/internal/http"
	"annotation-auth/internal/repository"
	"annotation-auth/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("db schema", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	tenantRepo := repository.NewPgTenantRepository(pool)
	sessionRepo := repository.NewPgSessionRepository(pool)
	magicLinkRepo := repository.NewPgMagicLinkRepository(pool)
	codeRepo := repository.NewPgOAuthCodeRepository(pool)
	extensionRepo := repository.NewPgExtensionSessionRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var rateStore repository.RateLimitStore = repository.NewPgRateLimitStore(pool)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, rate limits stay in postgres", zap.Error(err))
		} else {
			rateStore = repository.NewRedisRateLimitStore(redisClient, cfg.LongestRateWindow())
		}
		cancel()
	}

	codec := service.NewTokenCodec(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.JWTIssuer)
	limiter := service.NewRateLimiter(logger, rateStore)
	userSvc := service.NewUserService(logger, userRepo, tenantRepo)
	sessionSvc := service.NewSessionService(logger, sessionRepo, userRepo, cfg.SessionTTL)
	magicSvc := service.NewMagicLinkService(logger, magicLinkRepo, userSvc, sessionSvc, codec, limiter, emailSender, service.MagicLinkConfig{
		BaseURL:    cfg.AppBaseURL,
		TTL:        cfg.MagicLinkTTL,
		RateMax:    cfg.MagicLinkRateMax,
		RateWindow: cfg.MagicLinkRateWindow,
	})
	oauthSvc := service.NewOAuthService(logger, codeRepo, userSvc, codec, limiter, service.OAuthConfig{
		CodeTTL:          cfg.OAuthCodeTTL,
		AuthorizeRateMax: cfg.OAuthAuthorizeRateMax,
		TokenRateMax:     cfg.OAuthTokenRateMax,
		RateWindow:       cfg.OAuthRateWindow,
	})
	extensionSvc := service.NewExtensionAuthService(logger, extensionRepo, userSvc, codec, cfg.ExtensionSessionTTL)

	cookie := apihttp.CookieConfig{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
		MaxAge: sessionSvc.TTL(),
	}
	authHandler := apihttp.NewAuthHandler(logger, userSvc, sessionSvc, codec, magicSvc, cookie)
	oauthHandler := apihttp.NewOAuthHandler(logger, oauthSvc, codec, userSvc)
	extensionHandler := apihttp.NewExtensionHandler(logger, extensionSvc)
	loginLimiter := apihttp.NewIPRateLimiter(cfg.LoginRatePerSecond, cfg.LoginRateBurst, 10*time.Minute)
	router := apihttp.NewRouter(
		logger,
		authHandler,
		oauthHandler,
		extensionHandler,
		apihttp.RequireAuth(logger, sessionSvc, codec, cookie),
		loginLimiter,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
