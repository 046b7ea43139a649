package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/service"
)

// ExtensionHandler expone el handoff por polling de la extensión.
type ExtensionHandler struct {
	logger    *zap.Logger
	extension *service.ExtensionAuthService
}

func NewExtensionHandler(logger *zap.Logger, extension *service.ExtensionAuthService) *ExtensionHandler {
	return &ExtensionHandler{logger: logger, extension: extension}
}

// Create maneja POST /extension/sessions.
func (h *ExtensionHandler) Create(c *gin.Context) {
	handle, err := h.extension.Create(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "create extension session", err)
		return
	}
	c.JSON(http.StatusCreated, handle)
}

// Complete maneja POST /extension/sessions/:id/complete desde la web autenticada.
func (h *ExtensionHandler) Complete(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		writeError(c, h.logger, "complete extension session", domain.Unauthorized("authentication required"))
		return
	}
	if err := h.extension.Complete(c.Request.Context(), c.Param("id"), identity.UserID); err != nil {
		writeError(c, h.logger, "complete extension session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.ExtensionStatusCompleted})
}

// Poll maneja GET /extension/sessions/:id.
func (h *ExtensionHandler) Poll(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	res, err := h.extension.Poll(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "poll extension session", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Delete maneja DELETE /extension/sessions/:id.
func (h *ExtensionHandler) Delete(c *gin.Context) {
	if err := h.extension.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, "delete extension session", err)
		return
	}
	c.Status(http.StatusNoContent)
}
