package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/service"
)

const authIdentityKey = "auth_identity"

// RequireAuth acepta un access token Bearer o la cookie de sesión. El header
// tiene prioridad: la extensión no tiene cookie.
func RequireAuth(logger *zap.Logger, sessions *service.SessionService, codec *service.TokenCodec, cookie CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			identity domain.Identity
			err      error
		)
		if token, ok := bearerToken(c); ok {
			identity, err = codec.Verify(token, service.TokenAccess)
		} else if secret := cookie.read(c); secret != "" {
			identity, err = sessions.Validate(c.Request.Context(), secret)
		} else {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials", "code": string(domain.KindUnauthorized)})
			return
		}
		if err != nil {
			writeError(c, logger, "authenticate", err)
			c.Abort()
			return
		}

		c.Set(authIdentityKey, identity)
		c.Next()
	}
}

// GetIdentity obtiene la identidad autenticada desde el contexto.
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	val, ok := c.Get(authIdentityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}
