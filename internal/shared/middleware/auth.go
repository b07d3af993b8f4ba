package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"coupon-backend/internal/shared"
	"coupon-backend/internal/shared/response"
	"coupon-backend/internal/shared/utils"
	"coupon-backend/pkg/jwt"
)

// TokenValidator is satisfied by *jwt.Manager
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware requires a valid Bearer access token and puts
// user_id (uuid.UUID) and role into the gin context.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "missing or malformed authorization header")
			return
		}

		if !authenticate(c, validator, token) {
			response.Unauthorized(c, "invalid token")
			return
		}

		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and never rejects.
// A bad token is treated as anonymous.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			authenticate(c, validator, token)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func authenticate(c *gin.Context, validator TokenValidator, token string) bool {
	claims, err := validator.ValidateAccessToken(token)
	if err != nil {
		return false
	}

	userID := utils.ParseUUID(claims.UserID)
	if userID == uuid.Nil {
		return false
	}

	c.Set(shared.ContextUserID, userID)
	c.Set(shared.ContextUserRole, claims.Role)
	return true
}

// UserID returns the authenticated user, if any
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(shared.ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
