package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"coupon-backend/internal/domains/coupon/model"
)

// MemoryRepository is a concurrency-safe CouponRepository kept in process.
// Redeem and Issue check and mutate under one lock, the same guarantee the
// conditional UPDATE gives in Postgres. Snapshots handed out are clones.
type MemoryRepository struct {
	mu      sync.RWMutex
	coupons map[uuid.UUID]*model.Coupon
	byCode  map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		coupons: make(map[uuid.UUID]*model.Coupon),
		byCode:  make(map[string]uuid.UUID),
	}
}

var _ CouponRepository = (*MemoryRepository)(nil)

func stripLedgers(c *model.Coupon) *model.Coupon {
	cp := c.Clone()
	cp.IssuedTo = nil
	cp.UsageHistory = nil
	return cp
}

// -------------------------------------------------------------------
// READ OPERATIONS
// -------------------------------------------------------------------

func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.coupons[id]
	if !ok {
		return nil, model.ErrCouponNotFound
	}
	return stripLedgers(c), nil
}

func (r *MemoryRepository) FindByCode(_ context.Context, code string) (*model.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[model.NormalizeCode(code)]
	if !ok {
		return nil, model.ErrCouponNotFound
	}
	return stripLedgers(r.coupons[id]), nil
}

func (r *MemoryRepository) FindByCodeForUser(_ context.Context, code string, userID uuid.UUID) (*model.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[model.NormalizeCode(code)]
	if !ok {
		return nil, model.ErrCouponNotFound
	}
	return r.coupons[id].UserScoped(userID), nil
}

func (r *MemoryRepository) FindWithHistory(_ context.Context, id uuid.UUID) (*model.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.coupons[id]
	if !ok {
		return nil, model.ErrCouponNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryRepository) ListValid(_ context.Context, now time.Time) ([]*model.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Coupon{}
	for _, c := range r.coupons {
		if c.IsValid(now) {
			out = append(out, stripLedgers(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpirationDate.Before(out[j].ExpirationDate)
	})
	return out, nil
}

func (r *MemoryRepository) ListAdmin(_ context.Context, filter *model.ListCouponsFilter, now time.Time) ([]*model.Coupon, int, error) {
	r.mu.RLock()
	matched := []*model.Coupon{}
	for _, c := range r.coupons {
		if filter.Matches(c, now) {
			matched = append(matched, stripLedgers(c))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, lessFor(filter.Sort, matched))

	total := len(matched)
	start := filter.Offset()
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func lessFor(sortBy string, cs []*model.Coupon) func(i, j int) bool {
	switch sortBy {
	case model.SortCreatedAsc:
		return func(i, j int) bool { return cs[i].CreatedAt.Before(cs[j].CreatedAt) }
	case model.SortExpirationAsc:
		return func(i, j int) bool { return cs[i].ExpirationDate.Before(cs[j].ExpirationDate) }
	case model.SortExpirationDesc:
		return func(i, j int) bool { return cs[i].ExpirationDate.After(cs[j].ExpirationDate) }
	case model.SortUsageDesc:
		return func(i, j int) bool {
			if cs[i].UsedCount != cs[j].UsedCount {
				return cs[i].UsedCount > cs[j].UsedCount
			}
			return cs[i].CreatedAt.After(cs[j].CreatedAt)
		}
	case model.SortCodeAsc:
		return func(i, j int) bool { return strings.Compare(cs[i].Code, cs[j].Code) < 0 }
	default:
		return func(i, j int) bool { return cs[i].CreatedAt.After(cs[j].CreatedAt) }
	}
}

func (r *MemoryRepository) CodeExists(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byCode[model.NormalizeCode(code)]
	return ok, nil
}

// -------------------------------------------------------------------
// WRITE OPERATIONS
// -------------------------------------------------------------------

func (r *MemoryRepository) Create(_ context.Context, c *model.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := model.NormalizeCode(c.Code)
	if _, exists := r.byCode[code]; exists {
		return model.ErrDuplicateCode
	}

	stored := c.Clone()
	stored.Code = code
	r.coupons[stored.ID] = stored
	r.byCode[code] = stored.ID
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, c *model.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.coupons[c.ID]
	if !ok {
		return model.ErrCouponNotFound
	}
	if stored.Version != c.Version {
		return model.ErrVersionConflict
	}
	if (c.UsageLimit != nil && *c.UsageLimit < stored.UsedCount) ||
		(c.IssuanceLimit != nil && *c.IssuanceLimit < stored.IssuedCount) {
		return model.NewConflictError(model.ErrCodeLimitBelowUsage, "Limit cannot be lower than the current count")
	}

	next := c.Clone()
	// counters and ledgers are owned by Redeem / Issue
	next.Code = stored.Code
	next.UsedCount = stored.UsedCount
	next.IssuedCount = stored.IssuedCount
	next.UsageHistory = stored.UsageHistory
	next.IssuedTo = append([]model.Issuance(nil), stored.IssuedTo...)
	next.ReopenIssuances()
	next.CreatedAt = stored.CreatedAt
	next.CreatedBy = stored.CreatedBy
	next.Version = stored.Version + 1

	r.coupons[c.ID] = next
	c.Version = next.Version
	c.UsedCount = next.UsedCount
	c.IssuedCount = next.IssuedCount
	return nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, isActive bool, updatedBy *uuid.UUID) (*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.coupons[id]
	if !ok {
		return nil, model.ErrCouponNotFound
	}
	stored.IsActive = isActive
	stored.UpdatedBy = updatedBy
	stored.UpdatedAt = time.Now().UTC()
	stored.Version++
	return stripLedgers(stored), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.coupons[id]
	if !ok {
		return model.ErrCouponNotFound
	}
	if stored.UsedCount > 0 {
		return model.ErrCannotDelete
	}
	delete(r.byCode, stored.Code)
	delete(r.coupons, id)
	return nil
}

// -------------------------------------------------------------------
// LEDGERS
// -------------------------------------------------------------------

func (r *MemoryRepository) Redeem(_ context.Context, usage *model.UsageRecord) error {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.coupons[usage.CouponID]
	if !ok {
		return model.ErrCouponNotFound
	}
	if stored.IsUsageLimitExceeded() {
		return model.ErrRedemptionRace
	}
	if stored.UserUsageCount(usage.UserID) >= stored.UserUsageLimit {
		return model.ErrUserLimitRace
	}
	for _, u := range stored.UsageHistory {
		if u.OrderID == usage.OrderID {
			return model.ErrDuplicateUsage
		}
	}

	stored.RecordUsage(*usage)
	stored.UpdatedAt = usage.UsedAt
	return nil
}

func (r *MemoryRepository) Issue(_ context.Context, iss *model.Issuance, now time.Time) error {
	if iss.ID == uuid.Nil {
		iss.ID = uuid.New()
	}
	if iss.IssuedAt.IsZero() {
		iss.IssuedAt = now
	}
	iss.Status = model.IssuanceStatusIssued

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.coupons[iss.CouponID]
	if !ok {
		return model.ErrCouponNotFound
	}
	if !stored.CanBeIssued(now) {
		return model.ErrCannotBeIssued
	}
	if stored.IssuanceFor(iss.UserID) != nil {
		return model.ErrAlreadyIssued
	}

	stored.RecordIssuance(*iss)
	stored.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) ListUsages(_ context.Context, couponID uuid.UUID, filter *model.UsageListFilter) ([]model.UsageRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.coupons[couponID]
	if !ok {
		return []model.UsageRecord{}, 0, nil
	}

	usages := append([]model.UsageRecord(nil), stored.UsageHistory...)
	sort.SliceStable(usages, func(i, j int) bool { return usages[i].UsedAt.After(usages[j].UsedAt) })
	return page(usages, filter), len(usages), nil
}

func (r *MemoryRepository) ListIssuances(_ context.Context, couponID uuid.UUID, filter *model.UsageListFilter) ([]model.Issuance, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.coupons[couponID]
	if !ok {
		return []model.Issuance{}, 0, nil
	}

	issuances := stored.Clone().IssuedTo
	sort.SliceStable(issuances, func(i, j int) bool { return issuances[i].IssuedAt.After(issuances[j].IssuedAt) })
	return page(issuances, filter), len(issuances), nil
}

func (r *MemoryRepository) ExpireIssuances(_ context.Context, now time.Time, batchSize int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expired := 0
	for _, c := range r.coupons {
		if !c.IsExpired(now) {
			continue
		}
		for i := range c.IssuedTo {
			if expired >= batchSize {
				return expired, nil
			}
			if c.IssuedTo[i].Status == model.IssuanceStatusIssued {
				c.IssuedTo[i].Status = model.IssuanceStatusExpired
				expired++
			}
		}
	}
	return expired, nil
}

func page[T any](items []T, filter *model.UsageListFilter) []T {
	start := filter.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + filter.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
