package http

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"annotation-auth/internal/domain"
)

var kindStatus = map[domain.ErrorKind]int{
	domain.KindUnauthorized:   http.StatusUnauthorized,
	domain.KindConflict:       http.StatusConflict,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindBadRequest:     http.StatusBadRequest,
	domain.KindRateLimited:    http.StatusTooManyRequests,
	domain.KindInvalidGrant:   http.StatusBadRequest,
	domain.KindInvalidClient:  http.StatusUnauthorized,
	domain.KindInvalidRequest: http.StatusBadRequest,
	domain.KindExpired:        http.StatusGone,
}

// writeError traduce errores de dominio a status HTTP. Cualquier otro error es
// interno: se loguea y el cliente solo ve "internal error".
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	authErr, ok := domain.AsAuthError(err)
	if !ok {
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	setRetryAfter(c, authErr)
	c.JSON(statusFor(authErr), gin.H{"error": authErr.Message, "code": string(authErr.Kind)})
}

// writeOAuthError usa el formato de error de RFC 6749 para /oauth/*.
func writeOAuthError(c *gin.Context, logger *zap.Logger, op string, err error) {
	authErr, ok := domain.AsAuthError(err)
	if !ok {
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	setRetryAfter(c, authErr)
	c.JSON(statusFor(authErr), gin.H{
		"error":             string(authErr.Kind),
		"error_description": authErr.Message,
	})
}

func statusFor(authErr *domain.AuthError) int {
	if status, ok := kindStatus[authErr.Kind]; ok {
		return status
	}
	return http.StatusBadRequest
}

func setRetryAfter(c *gin.Context, authErr *domain.AuthError) {
	if authErr.Kind != domain.KindRateLimited {
		return
	}
	seconds := int(math.Ceil(authErr.RetryAfter.Seconds()))
	c.Header("Retry-After", strconv.Itoa(seconds))
}

func badRequest(c *gin.Context, logger *zap.Logger, what string, err error) {
	logger.Warn("invalid "+what+" request", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}
