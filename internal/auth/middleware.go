package auth

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
)

// FirebaseAuth validates Firebase ID tokens and stores the caller's identity
// in the request context. Browsers cannot set headers on WebSocket upgrades,
// so the token may also arrive as a `token` query parameter.
func FirebaseAuth(authClient *auth.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing authorization token"})
			c.Abort()
			return
		}

		decodedToken, err := authClient.VerifyIDToken(context.Background(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(CtxFirebaseUID, decodedToken.UID)
		if role, ok := decodedToken.Claims["role"].(string); ok {
			c.Set(CtxRole, role)
		}
		c.Next()
	}
}

// DevAuth trusts the X-User-Id and X-User-Role headers, defaulting to
// "demo-user". Development and tests only.
func DevAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if uid == "" {
			uid = "demo-user"
		}
		c.Set(CtxFirebaseUID, uid)
		if role := strings.TrimSpace(c.GetHeader("X-User-Role")); role != "" {
			c.Set(CtxRole, role)
		}
		c.Next()
	}
}

// RequireAdmin gates admin-only routes. It must run after an auth middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "admin role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return strings.TrimSpace(c.Query("token"))
}
