package main

import (
	"context"
	"log"
	"os"
	"time"

	"annotation-auth/internal/config"
	"annotation-auth/internal/db"
	"annotation-auth/internal/email"
	"annotation-auth/internal/repository"
	"annotation-auth/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// sweep borra secretos vencidos y registros de rate limit viejos. Está pensado
// para cron; el servicio funciona igual sin él.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	codec := service.NewTokenCodec(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.JWTIssuer)
	limiter := service.NewRateLimiter(logger, repository.NewPgRateLimitStore(pool))
	userSvc := service.NewUserService(logger, userRepo, nil)
	sessionSvc := service.NewSessionService(logger, repository.NewPgSessionRepository(pool), userRepo, cfg.SessionTTL)
	magicSvc := service.NewMagicLinkService(logger, repository.NewPgMagicLinkRepository(pool), userSvc, sessionSvc, codec, limiter,
		email.NewDisabledSender("sweep does not send email"), service.MagicLinkConfig{TTL: cfg.MagicLinkTTL})
	oauthSvc := service.NewOAuthService(logger, repository.NewPgOAuthCodeRepository(pool), userSvc, codec, limiter, service.OAuthConfig{})
	extensionSvc := service.NewExtensionAuthService(logger, repository.NewPgExtensionSessionRepository(pool), userSvc, codec, cfg.ExtensionSessionTTL)

	sweeper := service.NewSweeper(logger, limiter, cfg.LongestRateWindow(), magicSvc, sessionSvc, oauthSvc, extensionSvc)
	if _, err := sweeper.Run(ctx); err != nil {
		logger.Error("sweep incomplete", zap.Error(err))
		os.Exit(1)
	}
}
