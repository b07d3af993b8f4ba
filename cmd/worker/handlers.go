package main

import (
	"github.com/hibiken/asynq"

	couponJob "coupon-backend/internal/domains/coupon/job"
	"coupon-backend/internal/shared"
	"coupon-backend/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	expireIssuances *couponJob.ExpireIssuancesHandler
}

func initializeHandlers(c *container.Container, cfg *Config) *HandlerRegistry {
	return &HandlerRegistry{
		expireIssuances: couponJob.NewExpireIssuancesHandler(c.CouponService, cfg.Jobs.ExpireIssuancesBatch),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Coupon maintenance
	mux.HandleFunc(shared.TypeExpireCouponIssuances, h.expireIssuances.ProcessTask)
}
