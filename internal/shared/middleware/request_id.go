package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"coupon-backend/internal/shared"
)

const HeaderRequestID = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID or generates one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(shared.ContextRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}
