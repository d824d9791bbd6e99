package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/eventnest/eventnest/internal/auth"
	"github.com/eventnest/eventnest/pkg/errors"
	"github.com/eventnest/eventnest/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// TokenValidator validates bearer access tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*iauth.Claims, error)
}

// Auth enforces JWT bearer authentication.
func Auth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.Request)
		if token == "" {
			unauthorized(c, "")
			return
		}

		claims, err := tokens.ValidateAccessToken(token)
		if err != nil {
			reason := "invalid_token"
			if iauth.IsExpired(err) {
				reason = "token_expired"
			}
			unauthorized(c, reason)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

// RequestToken prefers the token query parameter and falls back to the bearer header.
// Browsers cannot set headers on WebSocket handshakes.
func RequestToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	return BearerToken(r)
}

func unauthorized(c *gin.Context, reason string) {
	challenge := "Bearer"
	if reason != "" {
		challenge += ` error="` + reason + `"`
	}
	c.Header("WWW-Authenticate", challenge)
	response.Error(c, errors.ErrUnauthorized)
	c.Abort()
}
