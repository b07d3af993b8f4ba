package middleware

import (
	"github.com/gin-gonic/gin"

	"coupon-backend/internal/shared"
	"coupon-backend/internal/shared/response"
)

const RoleAdmin = "admin"

// AdminMiddleware must run after AuthMiddleware
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(shared.ContextUserRole) != RoleAdmin {
			response.Forbidden(c, "Access denied: admin role required")
			return
		}
		c.Next()
	}
}
