package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxFirebaseUID = "firebase_uid"
	CtxRole        = "user_role"

	RoleAdmin = "admin"
)

// UserFirebaseUID returns the authenticated user's Firebase UID, set by the
// auth middleware.
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}

// IsAdmin reports whether the authenticated user carries the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetString(CtxRole) == RoleAdmin
}
