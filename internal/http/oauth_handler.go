package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/service"
)

// OAuthHandler expone authorize/token para la extensión.
type OAuthHandler struct {
	logger *zap.Logger
	oauth  *service.OAuthService
	codec  *service.TokenCodec
	users  *service.UserService
}

func NewOAuthHandler(logger *zap.Logger, oauth *service.OAuthService, codec *service.TokenCodec, users *service.UserService) *OAuthHandler {
	return &OAuthHandler{
		logger: logger,
		oauth:  oauth,
		codec:  codec,
		users:  users,
	}
}

// Authorize maneja POST /oauth/authorize. Requiere usuario autenticado.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		writeOAuthError(c, h.logger, "authorize", domain.Unauthorized("authentication required"))
		return
	}
	var req struct {
		ResponseType        string `json:"response_type" form:"response_type"`
		ClientID            string `json:"client_id" form:"client_id" binding:"required"`
		RedirectURI         string `json:"redirect_uri" form:"redirect_uri" binding:"required"`
		CodeChallenge       string `json:"code_challenge" form:"code_challenge" binding:"required"`
		CodeChallengeMethod string `json:"code_challenge_method" form:"code_challenge_method"`
		State               string `json:"state" form:"state"`
	}
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("invalid authorize request", zap.Error(err))
		writeOAuthError(c, h.logger, "authorize", domain.InvalidRequest("client_id, redirect_uri and code_challenge are required"))
		return
	}
	if req.ResponseType != "" && req.ResponseType != "code" {
		writeOAuthError(c, h.logger, "authorize", domain.InvalidRequest("response_type must be code"))
		return
	}
	if req.CodeChallengeMethod != "" && req.CodeChallengeMethod != "S256" {
		writeOAuthError(c, h.logger, "authorize", domain.InvalidRequest("code_challenge_method must be S256"))
		return
	}

	res, err := h.oauth.Authorize(c.Request.Context(), service.AuthorizeRequest{
		UserID:        identity.UserID,
		CodeChallenge: req.CodeChallenge,
		RedirectURI:   req.RedirectURI,
		ClientID:      req.ClientID,
		State:         req.State,
	})
	if err != nil {
		writeOAuthError(c, h.logger, "authorize", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":         res.Code,
		"state":        req.State,
		"redirect_url": res.RedirectURL,
		"expires_at":   res.ExpiresAt,
	})
}

// Token maneja POST /oauth/token (authorization_code y refresh_token).
func (h *OAuthHandler) Token(c *gin.Context) {
	var req struct {
		GrantType    string `json:"grant_type" form:"grant_type" binding:"required"`
		Code         string `json:"code" form:"code"`
		CodeVerifier string `json:"code_verifier" form:"code_verifier"`
		RedirectURI  string `json:"redirect_uri" form:"redirect_uri"`
		ClientID     string `json:"client_id" form:"client_id"`
		RefreshToken string `json:"refresh_token" form:"refresh_token"`
	}
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("invalid token request", zap.Error(err))
		writeOAuthError(c, h.logger, "token", domain.InvalidRequest("grant_type is required"))
		return
	}
	c.Header("Cache-Control", "no-store")

	switch req.GrantType {
	case "authorization_code":
		res, err := h.oauth.Exchange(c.Request.Context(), service.TokenExchangeRequest{
			Code:         req.Code,
			CodeVerifier: req.CodeVerifier,
			RedirectURI:  req.RedirectURI,
			ClientID:     req.ClientID,
		})
		if err != nil {
			writeOAuthError(c, h.logger, "token exchange", err)
			return
		}
		c.JSON(http.StatusOK, tokenResponse(res.Tokens, res.User))
	case "refresh_token":
		tokens, user, err := h.codec.Refresh(c.Request.Context(), req.RefreshToken, h.users)
		if err != nil {
			if authErr, ok := domain.AsAuthError(err); ok && authErr.Kind == domain.KindUnauthorized {
				err = domain.InvalidGrant("refresh token is invalid")
			}
			writeOAuthError(c, h.logger, "token refresh", err)
			return
		}
		c.JSON(http.StatusOK, tokenResponse(tokens, user))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type"})
	}
}

func tokenResponse(tokens service.TokenPair, user domain.User) gin.H {
	return gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    tokens.ExpiresIn,
		"user": gin.H{
			"id":           user.ID,
			"email":        user.Email,
			"display_name": user.DisplayName,
		},
	}
}
