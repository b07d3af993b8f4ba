package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"coupon-backend/internal/domains/coupon/model"
	"coupon-backend/internal/domains/coupon/service"
	"coupon-backend/internal/shared/response"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxImportSize   = 5 << 20
)

// AdminHandler serves the admin-only coupon API
type AdminHandler struct {
	service service.ServiceInterface
}

func NewAdminHandler(service service.ServiceInterface) *AdminHandler {
	return &AdminHandler{
		service: service,
	}
}

// -------------------------------------------------------------------
// CREATE & UPDATE
// -------------------------------------------------------------------

// CreateCoupon
// @Router /v1/admin/coupons [post]
func (h *AdminHandler) CreateCoupon(c *gin.Context) {
	var req model.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	coupon, err := h.service.CreateCoupon(c.Request.Context(), &req, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, coupon)
}

// UpdateCoupon applies a partial update. Send "version" to guard against
// concurrent edits.
// @Router /v1/admin/coupons/:id [put]
func (h *AdminHandler) UpdateCoupon(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req model.UpdateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	coupon, err := h.service.UpdateCoupon(c.Request.Context(), id, &req, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, coupon)
}

// UpdateCouponStatus
// @Router /v1/admin/coupons/:id/status [patch]
func (h *AdminHandler) UpdateCouponStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	coupon, err := h.service.UpdateCouponStatus(c.Request.Context(), id, &req, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, coupon)
}

// DeleteCoupon
// @Router /v1/admin/coupons/:id [delete]
func (h *AdminHandler) DeleteCoupon(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteCoupon(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id})
}

// -------------------------------------------------------------------
// READ OPERATIONS
// -------------------------------------------------------------------

// GetCoupon
// @Router /v1/admin/coupons/:id [get]
func (h *AdminHandler) GetCoupon(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	coupon, err := h.service.GetCoupon(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, coupon)
}

// ListCoupons
// @Router /v1/admin/coupons [get]
func (h *AdminHandler) ListCoupons(c *gin.Context) {
	var filter model.ListCouponsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	coupons, total, err := h.service.ListCoupons(c.Request.Context(), &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, coupons, response.NewMeta(filter.Page, filter.Limit, total))
}

// -------------------------------------------------------------------
// ISSUANCE
// -------------------------------------------------------------------

// IssueCoupon grants the coupon to a list of users. Per-user failures are
// reported in the body; the request itself still succeeds.
// @Router /v1/admin/coupons/:id/issue [post]
func (h *AdminHandler) IssueCoupon(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req model.IssueCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.service.IssueCoupon(c.Request.Context(), id, &req, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ImportIssuances issues the coupon to the users of an uploaded CSV file
// (multipart field "file", optional form field "channel").
// @Router /v1/admin/coupons/:id/issue/import [post]
func (h *AdminHandler) ImportIssuances(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required (multipart/form-data)", err)
		return
	}
	if header.Size > maxImportSize {
		badRequest(c, fmt.Sprintf("file must be at most %d bytes", maxImportSize), nil)
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, "Cannot read uploaded file", err)
		return
	}
	defer file.Close()

	log.Info().
		Str("coupon_id", id.String()).
		Str("file_name", header.Filename).
		Int64("file_size", header.Size).
		Msg("Received issuance import")

	channel := model.IssuanceChannel(c.PostForm("channel"))
	result, err := h.service.ImportIssuances(c.Request.Context(), id, file, channel, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListIssuances
// @Router /v1/admin/coupons/:id/issuances [get]
func (h *AdminHandler) ListIssuances(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var filter model.UsageListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	issuances, total, err := h.service.ListIssuances(c.Request.Context(), id, &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, issuances, response.NewMeta(filter.Page, filter.Limit, total))
}

// -------------------------------------------------------------------
// USAGE HISTORY & REPORTING
// -------------------------------------------------------------------

// GetStats
// @Router /v1/admin/coupons/:id/stats [get]
func (h *AdminHandler) GetStats(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// ListUsages
// @Router /v1/admin/coupons/:id/usages [get]
func (h *AdminHandler) ListUsages(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var filter model.UsageListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}

	usages, total, err := h.service.ListUsages(c.Request.Context(), id, &filter)
	if err != nil {
		handleError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, usages, response.NewMeta(filter.Page, filter.Limit, total))
}

// ExportUsages streams the usage history as an xlsx workbook
// @Router /v1/admin/coupons/:id/usages/export [get]
func (h *AdminHandler) ExportUsages(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	file, filename, err := h.service.ExportUsages(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	defer file.Close()

	buf, err := file.WriteToBuffer()
	if err != nil {
		handleError(c, fmt.Errorf("write workbook: %w", err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
