package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coupon-backend/internal/domains/coupon/model"
	"coupon-backend/internal/domains/coupon/service"
	"coupon-backend/internal/shared/middleware"
	"coupon-backend/internal/shared/response"
)

// PublicHandler serves the customer-facing and internal coupon endpoints
type PublicHandler struct {
	service service.ServiceInterface
}

func NewPublicHandler(service service.ServiceInterface) *PublicHandler {
	return &PublicHandler{
		service: service,
	}
}

// ValidateCoupon previews a coupon against the caller's order.
// An ineligible coupon is a 200 with valid=false and the reason.
//
// @Router /v1/coupons/validate [post]
func (h *PublicHandler) ValidateCoupon(c *gin.Context) {
	var req model.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	// the user always comes from the token, never from the body
	req.UserID = nil
	if id, ok := middleware.UserID(c); ok {
		req.UserID = &id
	}

	result, err := h.service.ValidateCoupon(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListAvailable returns the coupons anyone can redeem right now
//
// @Router /v1/coupons/available [get]
func (h *PublicHandler) ListAvailable(c *gin.Context) {
	coupons, err := h.service.ListAvailable(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, coupons)
}

// CheckEligibility runs the per-user checks for the authenticated user
//
// @Router /v1/coupons/:code/eligibility [get]
func (h *PublicHandler) CheckEligibility(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	result, err := h.service.CheckEligibility(c.Request.Context(), c.Param("code"), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ApplyCoupon commits a coupon to an order. Called by the order service
// behind the internal key.
//
// @Router /v1/internal/coupons/apply [post]
func (h *PublicHandler) ApplyCoupon(c *gin.Context) {
	var req model.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.service.ApplyCouponToOrder(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}
