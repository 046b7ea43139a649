package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/service"
)

// AuthHandler expone los flujos de contraseña, magic link y sesión.
type AuthHandler struct {
	logger   *zap.Logger
	users    *service.UserService
	sessions *service.SessionService
	codec    *service.TokenCodec
	magic    *service.MagicLinkService
	cookie   CookieConfig
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(
	logger *zap.Logger,
	users *service.UserService,
	sessions *service.SessionService,
	codec *service.TokenCodec,
	magic *service.MagicLinkService,
	cookie CookieConfig,
) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		users:    users,
		sessions: sessions,
		codec:    codec,
		magic:    magic,
		cookie:   cookie,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "register", err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Name,
	})
	if err != nil {
		writeError(c, h.logger, "register", err)
		return
	}
	h.startSession(c, http.StatusCreated, user, gin.H{"user": user})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "login", err)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "login", err)
		return
	}
	h.startSession(c, http.StatusOK, user, gin.H{"user": user})
}

// RequestMagicLink maneja POST /auth/magic-link.
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var req struct {
		Email      string `json:"email" binding:"required,email"`
		IsRegister bool   `json:"is_register"`
		Name       string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "magic link", err)
		return
	}

	res, err := h.magic.Request(c.Request.Context(), service.MagicLinkRequest{
		Email:      req.Email,
		IsRegister: req.IsRegister,
		Name:       req.Name,
	})
	if err != nil {
		writeError(c, h.logger, "request magic link", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent", "masked_email": res.MaskedEmail})
}

// VerifyMagicLink maneja POST /auth/magic-link/verify.
func (h *AuthHandler) VerifyMagicLink(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "magic link verify", err)
		return
	}

	res, err := h.magic.Redeem(c.Request.Context(), req.Token, sessionMeta(c))
	if err != nil {
		writeError(c, h.logger, "verify magic link", err)
		return
	}
	h.cookie.set(c, res.SessionSecret)
	c.JSON(http.StatusOK, gin.H{
		"user":        res.User,
		"tokens":      res.Tokens,
		"is_new_user": res.IsNewUser,
	})
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "refresh", err)
		return
	}
	tokens, _, err := h.codec.Refresh(c.Request.Context(), req.RefreshToken, h.users)
	if err != nil {
		writeError(c, h.logger, "refresh", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout. Cierra solo la sesión de la cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Destroy(c.Request.Context(), h.cookie.read(c)); err != nil {
		writeError(c, h.logger, "logout", err)
		return
	}
	h.cookie.clear(c)
	c.Status(http.StatusNoContent)
}

// LogoutAll maneja POST /auth/logout-all.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		writeError(c, h.logger, "logout all", domain.Unauthorized("authentication required"))
		return
	}
	if err := h.sessions.DestroyAll(c.Request.Context(), identity.UserID); err != nil {
		writeError(c, h.logger, "logout all", err)
		return
	}
	h.cookie.clear(c)
	c.Status(http.StatusNoContent)
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		writeError(c, h.logger, "me", domain.Unauthorized("authentication required"))
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		writeError(c, h.logger, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMe maneja PATCH /auth/me.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		writeError(c, h.logger, "update profile", domain.Unauthorized("authentication required"))
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "update profile", err)
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), identity.UserID, req.Name)
	if err != nil {
		writeError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteAccount maneja DELETE /auth/account.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		writeError(c, h.logger, "delete account", domain.Unauthorized("authentication required"))
		return
	}
	if err := h.users.DeleteAccount(c.Request.Context(), identity.UserID, h.sessions); err != nil {
		writeError(c, h.logger, "delete account", err)
		return
	}
	h.cookie.clear(c)
	c.Status(http.StatusNoContent)
}

// startSession emite tokens y sesión para un usuario ya autenticado.
func (h *AuthHandler) startSession(c *gin.Context, status int, user domain.User, body gin.H) {
	tokens, err := h.codec.IssuePair(user)
	if err != nil {
		writeError(c, h.logger, "issue tokens", err)
		return
	}
	secret, _, err := h.sessions.Create(c.Request.Context(), user.ID, sessionMeta(c))
	if err != nil {
		writeError(c, h.logger, "create session", err)
		return
	}
	h.cookie.set(c, secret)
	body["tokens"] = tokens
	c.JSON(status, body)
}

func sessionMeta(c *gin.Context) service.SessionMeta {
	return service.SessionMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}
