package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// SweepReport cuenta las filas borradas por tipo.
type SweepReport struct {
	RateLimitRecords   int64
	MagicLinks         int64
	Sessions           int64
	AuthorizationCodes int64
	ExtensionSessions  int64
}

// Sweeper borra lo que ya no puede canjearse. Ninguna operación depende de que
// corra: todas las lecturas comprueban la expiración por su cuenta.
type Sweeper struct {
	logger        *zap.Logger
	limiter       *RateLimiter
	rateRetention time.Duration
	magicLinks    *MagicLinkService
	sessions      *SessionService
	oauth         *OAuthService
	extension     *ExtensionAuthService
}

func NewSweeper(
	logger *zap.Logger,
	limiter *RateLimiter,
	rateRetention time.Duration,
	magicLinks *MagicLinkService,
	sessions *SessionService,
	oauth *OAuthService,
	extension *ExtensionAuthService,
) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		logger:        logger,
		limiter:       limiter,
		rateRetention: rateRetention,
		magicLinks:    magicLinks,
		sessions:      sessions,
		oauth:         oauth,
		extension:     extension,
	}
}

// Run ejecuta todas las purgas aunque alguna falle y devuelve los errores juntos.
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	var (
		report SweepReport
		errs   []error
	)
	step := func(name string, dst *int64, fn func(context.Context) (int64, error)) {
		n, err := fn(ctx)
		if err != nil {
			s.logger.Error("sweep step failed", zap.String("step", name), zap.Error(err))
			errs = append(errs, err)
			return
		}
		*dst = n
	}

	step("rate_limits", &report.RateLimitRecords, func(ctx context.Context) (int64, error) {
		return s.limiter.Purge(ctx, s.rateRetention)
	})
	step("magic_links", &report.MagicLinks, s.magicLinks.PurgeStale)
	step("sessions", &report.Sessions, s.sessions.PurgeExpired)
	step("oauth_codes", &report.AuthorizationCodes, s.oauth.PurgeExpired)
	step("extension_sessions", &report.ExtensionSessions, s.extension.PurgeExpired)

	s.logger.Info("sweep finished",
		zap.Int64("rate_limits", report.RateLimitRecords),
		zap.Int64("magic_links", report.MagicLinks),
		zap.Int64("sessions", report.Sessions),
		zap.Int64("oauth_codes", report.AuthorizationCodes),
		zap.Int64("extension_sessions", report.ExtensionSessions),
	)
	return report, errors.Join(errs...)
}
