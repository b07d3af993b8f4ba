package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"coupon-backend/internal/shared/response"
)

const HeaderInternalKey = "X-Internal-Key"

// InternalKeyMiddleware guards service-to-service routes. The configured
// value is a bcrypt hash; the caller sends the plain key.
// An empty hash locks the routes entirely.
func InternalKeyMiddleware(keyHash string) gin.HandlerFunc {
	hash := []byte(keyHash)

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderInternalKey)
		if key == "" || len(hash) == 0 {
			response.Unauthorized(c, "missing internal service key")
			return
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(key)); err != nil {
			response.Unauthorized(c, "invalid internal service key")
			return
		}

		c.Next()
	}
}
