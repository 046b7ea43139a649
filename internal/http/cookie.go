package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CookieConfig describe la cookie de sesión: HTTP-only, SameSite=Lax, path /.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

func (cfg CookieConfig) name() string {
	if cfg.Name == "" {
		return "session"
	}
	return cfg.Name
}

func (cfg CookieConfig) set(c *gin.Context, secret string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.name(), secret, int(cfg.MaxAge.Seconds()), "/", "", cfg.Secure, true)
}

func (cfg CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.name(), "", -1, "/", "", cfg.Secure, true)
}

func (cfg CookieConfig) read(c *gin.Context) string {
	value, err := c.Cookie(cfg.name())
	if err != nil {
		return ""
	}
	return value
}
