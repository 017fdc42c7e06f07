package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gooseberrytechnovision/schooniverse-checkout/configs"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/security"
)

type TokenHandler struct {
	tokens *security.Tokens
}

func NewTokenHandler(cfg configs.Config) *TokenHandler {
	return &TokenHandler{tokens: security.NewTokens(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.Audience, cfg.Security.TTL)}
}

type tokenReq struct {
	ClientID     string `form:"client_id" json:"client_id" binding:"required"`
	ClientSecret string `form:"client_secret" json:"client_secret" binding:"required"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// IssueToken handles POST /v1/token with client credentials, form or JSON.
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
		return
	}
	cl, ok := security.Authenticate(req.ClientID, req.ClientSecret)
	if !ok {
		logging.From(c).Warn("client authentication failed", "client_id", req.ClientID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
		return
	}

	signed, err := h.tokens.Issue(cl)
	if err != nil {
		logging.From(c).Error("sign token", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, tokenResp{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokens.TTL().Seconds()),
	})
}
