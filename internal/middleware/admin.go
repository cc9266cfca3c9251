package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bookingflow/internal/pkg/jwt"
	"bookingflow/internal/pkg/response"
)

const (
	RoleAdmin = "admin"

	ctxRole       = "role"
	ctxAdminEmail = "admin_email"
)

// AdminAuth accepts a bearer token issued by the auth service and requires role=admin.
// A nil service disables the check (local development without JWT_SECRET).
func AdminAuth(svc *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			c.Next()
			return
		}

		h := c.GetHeader("Authorization")
		if h == "" {
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Missing Authorization header")
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			return
		}

		claims, err := svc.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
			return
		}

		if claims.Role != RoleAdmin {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			return
		}

		c.Set(ctxRole, claims.Role)
		c.Set(ctxAdminEmail, claims.Email)
		c.Next()
	}
}

// AdminEmailFrom returns the email claim of the authenticated admin, if any.
func AdminEmailFrom(c *gin.Context) string {
	return c.GetString(ctxAdminEmail)
}
