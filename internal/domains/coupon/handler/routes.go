package handler

import "github.com/gin-gonic/gin"

// Guards holds the middleware each route group is wrapped in
type Guards struct {
	OptionalAuth gin.HandlerFunc
	Auth         gin.HandlerFunc
	Admin        gin.HandlerFunc
	InternalKey  gin.HandlerFunc
}

// RegisterRoutes mounts every coupon endpoint under v1
func RegisterRoutes(v1 *gin.RouterGroup, public *PublicHandler, admin *AdminHandler, g Guards) {
	coupons := v1.Group("/coupons")
	{
		coupons.POST("/validate", g.OptionalAuth, public.ValidateCoupon)
		coupons.GET("/available", public.ListAvailable)
		coupons.GET("/:code/eligibility", g.Auth, public.CheckEligibility)
	}

	internal := v1.Group("/internal/coupons", g.InternalKey)
	{
		internal.POST("/apply", public.ApplyCoupon)
	}

	adminGroup := v1.Group("/admin/coupons", g.Auth, g.Admin)
	{
		adminGroup.POST("", admin.CreateCoupon)
		adminGroup.GET("", admin.ListCoupons)
		adminGroup.GET("/:id", admin.GetCoupon)
		adminGroup.PUT("/:id", admin.UpdateCoupon)
		adminGroup.PATCH("/:id/status", admin.UpdateCouponStatus)
		adminGroup.DELETE("/:id", admin.DeleteCoupon)

		adminGroup.POST("/:id/issue", admin.IssueCoupon)
		adminGroup.POST("/:id/issue/import", admin.ImportIssuances)
		adminGroup.GET("/:id/issuances", admin.ListIssuances)

		adminGroup.GET("/:id/stats", admin.GetStats)
		adminGroup.GET("/:id/usages", admin.ListUsages)
		adminGroup.GET("/:id/usages/export", admin.ExportUsages)
	}
}
