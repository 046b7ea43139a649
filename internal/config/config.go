package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	AppBaseURL  string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`

	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	JWTAccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"720h"`
	JWTRefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"720h"`
	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"annotation-auth"`

	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"session"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`

	MagicLinkTTL        time.Duration `env:"MAGIC_LINK_TTL" envDefault:"15m"`
	MagicLinkRateMax    int           `env:"MAGIC_LINK_RATE_MAX" envDefault:"5"`
	MagicLinkRateWindow time.Duration `env:"MAGIC_LINK_RATE_WINDOW" envDefault:"1h"`

	OAuthCodeTTL          time.Duration `env:"OAUTH_CODE_TTL" envDefault:"5m"`
	OAuthAuthorizeRateMax int           `env:"OAUTH_AUTHORIZE_RATE_MAX" envDefault:"10"`
	OAuthTokenRateMax     int           `env:"OAUTH_TOKEN_RATE_MAX" envDefault:"20"`
	OAuthRateWindow       time.Duration `env:"OAUTH_RATE_WINDOW" envDefault:"1m"`

	ExtensionSessionTTL time.Duration `env:"EXTENSION_SESSION_TTL" envDefault:"10m"`

	LoginRatePerSecond float64 `env:"LOGIN_RATE_PER_SECOND" envDefault:"1"`
	LoginRateBurst     int     `env:"LOGIN_RATE_BURST" envDefault:"10"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza configuraciones con las que el servicio no puede emitir tokens.
func (c *Config) Validate() error {
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	durations := map[string]time.Duration{
		"JWT_ACCESS_TTL":         c.JWTAccessTTL,
		"JWT_REFRESH_TTL":        c.JWTRefreshTTL,
		"SESSION_TTL":            c.SessionTTL,
		"MAGIC_LINK_TTL":         c.MagicLinkTTL,
		"MAGIC_LINK_RATE_WINDOW": c.MagicLinkRateWindow,
		"OAUTH_CODE_TTL":         c.OAuthCodeTTL,
		"OAUTH_RATE_WINDOW":      c.OAuthRateWindow,
		"EXTENSION_SESSION_TTL":  c.ExtensionSessionTTL,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}
	caps := map[string]int{
		"MAGIC_LINK_RATE_MAX":      c.MagicLinkRateMax,
		"OAUTH_AUTHORIZE_RATE_MAX": c.OAuthAuthorizeRateMax,
		"OAUTH_TOKEN_RATE_MAX":     c.OAuthTokenRateMax,
	}
	for name, n := range caps {
		if n <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}
	return nil
}

// LongestRateWindow devuelve la ventana más amplia; los registros más antiguos
// ya no cuentan para ningún límite.
func (c *Config) LongestRateWindow() time.Duration {
	if c.MagicLinkRateWindow > c.OAuthRateWindow {
		return c.MagicLinkRateWindow
	}
	return c.OAuthRateWindow
}
