package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gooseberrytechnovision/schooniverse-checkout/configs"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/security"
)

// ClientIDKey is the gin.Context key holding the authenticated client id.
const ClientIDKey = "client_id"

type Authz struct {
	tokens *security.Tokens
}

func NewAuthz(cfg configs.Config) *Authz {
	return &Authz{tokens: security.NewTokens(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.Audience, cfg.Security.TTL)}
}

// Require admits requests carrying a valid bearer token that grants every
// permission in perms.
func (a *Authz) Require(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			challenge(c, http.StatusUnauthorized, "invalid_request", "missing bearer token")
			return
		}
		claims, err := a.tokens.Verify(raw)
		if err != nil {
			logging.From(c).Debug("token rejected", "err", err)
			challenge(c, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
			return
		}
		if !claims.Allows(perms...) {
			challenge(c, http.StatusForbidden, "insufficient_scope", "missing required permissions")
			return
		}

		c.Set(ClientIDKey, claims.ClientID)
		logging.With(c, logging.From(c).With("client_id", claims.ClientID))
		c.Next()
	}
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

func challenge(c *gin.Context, status int, code, desc string) {
	c.Header("WWW-Authenticate", fmt.Sprintf("Bearer error=%q, error_description=%q", code, desc))
	c.AbortWithStatusJSON(status, gin.H{"error": code, "error_description": desc})
}
