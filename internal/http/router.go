package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas de autenticación.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	oauthH *OAuthHandler,
	extensionH *ExtensionHandler,
	requireAuth gin.HandlerFunc,
	loginLimiter *IPRateLimiter,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	throttle := func(c *gin.Context) { c.Next() }
	if loginLimiter != nil {
		throttle = loginLimiter.Middleware()
	}

	auth := r.Group("/auth")
	auth.POST("/register", throttle, authH.Register)
	auth.POST("/login", throttle, authH.Login)
	auth.POST("/logout", authH.Logout)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/magic-link", authH.RequestMagicLink)
	auth.POST("/magic-link/verify", throttle, authH.VerifyMagicLink)
	auth.POST("/logout-all", requireAuth, authH.LogoutAll)
	auth.GET("/me", requireAuth, authH.Me)
	auth.PATCH("/me", requireAuth, authH.UpdateMe)
	auth.DELETE("/account", requireAuth, authH.DeleteAccount)

	oauth := r.Group("/oauth")
	oauth.POST("/authorize", requireAuth, oauthH.Authorize)
	oauth.POST("/token", oauthH.Token)

	ext := r.Group("/extension/sessions")
	ext.POST("", extensionH.Create)
	ext.GET("/:id", extensionH.Poll)
	ext.DELETE("/:id", extensionH.Delete)
	ext.POST("/:id/complete", requireAuth, extensionH.Complete)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap. Registra la
// ruta de gin y no la URL real: el id de sesión de la extensión es un secreto.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
