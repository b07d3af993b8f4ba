package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"coupon-backend/internal/domains/coupon/model"
	"coupon-backend/internal/shared"
	"coupon-backend/internal/shared/middleware"
	"coupon-backend/internal/shared/response"
)

// handleError maps service errors onto the response envelope. Internal
// failures are logged with the request id and never echoed to the client.
func handleError(c *gin.Context, err error) {
	var appErr *model.AppError
	if !errors.As(err, &appErr) || appErr.Kind == model.KindInternal {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString(shared.ContextRequestID)).
			Msg("Coupon request failed")
		response.ErrorResponse(c, http.StatusInternalServerError, string(model.ErrCodeInternalError), "Internal server error")
		return
	}

	response.ErrorWithDetails(c, appErr.HTTPStatus, string(appErr.Code), appErr.Message, detailsOrNil(appErr.Details))
}

func detailsOrNil(d map[string]interface{}) interface{} {
	if len(d) == 0 {
		return nil
	}
	return d
}

func badRequest(c *gin.Context, message string, err error) {
	var details interface{}
	if err != nil {
		details = gin.H{"info": err.Error()}
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, string(model.ErrCodeValidationFailed), message, details)
}

func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid coupon ID", err)
		return uuid.Nil, false
	}
	return id, true
}

// actorID is the admin performing the request, nil if unknown
func actorID(c *gin.Context) *uuid.UUID {
	if id, ok := middleware.UserID(c); ok {
		return &id
	}
	return nil
}
