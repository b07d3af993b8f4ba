package service

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	catalog "coupon-backend/internal/domains/catalog/model"
	"coupon-backend/internal/domains/coupon/model"
)

type ServiceInterface interface {
	// Customer-facing
	ValidateCoupon(ctx context.Context, req *model.ValidateCouponRequest) (*model.ValidationResult, error)
	CheckEligibility(ctx context.Context, code string, userID uuid.UUID) (*model.EligibilityResult, error)
	ListAvailable(ctx context.Context) ([]*model.CouponInfo, error)

	// Internal (called by the order service)
	ApplyCouponToOrder(ctx context.Context, req *model.ApplyCouponRequest) (*model.ApplyResult, error)

	// Admin
	CreateCoupon(ctx context.Context, req *model.CreateCouponRequest, adminID *uuid.UUID) (*model.Coupon, error)
	GetCoupon(ctx context.Context, id uuid.UUID) (*model.CouponListItem, error)
	ListCoupons(ctx context.Context, filter *model.ListCouponsFilter) ([]model.CouponListItem, int, error)
	UpdateCoupon(ctx context.Context, id uuid.UUID, req *model.UpdateCouponRequest, adminID *uuid.UUID) (*model.Coupon, error)
	UpdateCouponStatus(ctx context.Context, id uuid.UUID, req *model.UpdateStatusRequest, adminID *uuid.UUID) (*model.Coupon, error)
	DeleteCoupon(ctx context.Context, id uuid.UUID) error

	IssueCoupon(ctx context.Context, id uuid.UUID, req *model.IssueCouponRequest, adminID *uuid.UUID) (*model.BulkIssueResult, error)
	ImportIssuances(ctx context.Context, id uuid.UUID, csv io.Reader, channel model.IssuanceChannel, adminID *uuid.UUID) (*model.BulkIssueResult, error)

	GetStats(ctx context.Context, id uuid.UUID) (*model.CouponStats, error)
	ListUsages(ctx context.Context, id uuid.UUID, filter *model.UsageListFilter) ([]model.UsageRecord, int, error)
	ListIssuances(ctx context.Context, id uuid.UUID, filter *model.UsageListFilter) ([]model.Issuance, int, error)
	ExportUsages(ctx context.Context, id uuid.UUID) (*excelize.File, string, error)

	// Jobs
	ExpireIssuances(ctx context.Context, batchSize int) (int, error)
}

// ProductLookup resolves cart lines against the catalog
type ProductLookup interface {
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Product, error)
}

// OrderHistory answers whether a user has ordered before
type OrderHistory interface {
	CountCompletedOrders(ctx context.Context, userID uuid.UUID) (int, error)
}
