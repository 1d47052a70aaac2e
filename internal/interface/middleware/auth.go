package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-account-lifecycle/pkg/helpers"
	"github.com/oksasatya/go-account-lifecycle/pkg/response"
)

const (
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
)

// SessionValidator reports whether sid is the live session of a user.
type SessionValidator interface {
	ValidateSession(ctx context.Context, userID, sid string) error
}

// RoleChecker answers the admin gate.
type RoleChecker interface {
	HasRole(ctx context.Context, userID, roleName string) (bool, error)
}

// accessToken reads the access_token cookie, falling back to a Bearer header.
func accessToken(c *gin.Context) string {
	if tok, err := c.Cookie(helpers.AccessCookie); err == nil && tok != "" {
		return tok
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Auth validates the access token and ensures its session is still the
// active one. It sets userID and sessionID in the Gin context on success.
func Auth(jwt *helpers.JWTManager, sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			response.Fail(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}
		if sessions != nil {
			if err := sessions.ValidateSession(c.Request.Context(), claims.UserID, claims.SessionID); err != nil {
				response.Fail(c, http.StatusUnauthorized, "session not found", nil)
				return
			}
		}
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxSessionIDKey, claims.SessionID)
		c.Next()
	}
}

// RequireRole lets the request through only when the authenticated user holds
// role. It must run after Auth.
func RequireRole(roles RoleChecker, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(CtxUserIDKey)
		if uid == "" {
			response.Fail(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		ok, err := roles.HasRole(c.Request.Context(), uid, role)
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, "role check failed", nil)
			return
		}
		if !ok {
			response.Fail(c, http.StatusForbidden, "forbidden", gin.H{"required_role": role})
			return
		}
		c.Next()
	}
}
