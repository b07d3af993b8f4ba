package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupon-backend/internal/domains/coupon/model"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func seedCoupon(t *testing.T, repo *MemoryRepository, mutate ...func(c *model.Coupon)) *model.Coupon {
	t.Helper()
	c := &model.Coupon{
		ID:             uuid.New(),
		Code:           "save20",
		Name:           "Save 20",
		DiscountType:   model.DiscountTypePercentage,
		DiscountValue:  decimal.NewFromInt(20),
		ExpirationDate: now.Add(7 * 24 * time.Hour),
		UserUsageLimit: 1,
		IsActive:       true,
		Version:        1,
		CreatedAt:      now,
	}
	for _, m := range mutate {
		m(c)
	}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestMemoryRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := seedCoupon(t, repo)

	found, err := repo.FindByCode(ctx, " Save20 ")
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)
	assert.Equal(t, "SAVE20", found.Code)

	err = repo.Create(ctx, &model.Coupon{ID: uuid.New(), Code: "SAVE20"})
	assert.ErrorIs(t, err, model.ErrDuplicateCode)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrCouponNotFound)

	exists, err := repo.CodeExists(ctx, "save20")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryRepository_SnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := seedCoupon(t, repo)

	found, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	found.UsedCount = 99
	found.Name = "mutated"

	again, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.UsedCount)
	assert.Equal(t, "Save 20", again.Name)
}

// Two redemptions race for the last slot: exactly one wins.
func TestMemoryRepository_Redeem_NoOverselling(t *testing.T) {
	ctx := context.Background()

	for _, limit := range []int{1, 3, 10} {
		repo := NewMemoryRepository()
		c := seedCoupon(t, repo, func(c *model.Coupon) { c.UsageLimit = intPtr(limit) })

		const workers = 50
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			success  int
			raceLost int
		)
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := repo.Redeem(ctx, &model.UsageRecord{
					CouponID:       c.ID,
					UserID:         uuid.New(),
					OrderID:        uuid.New(),
					DiscountAmount: decimal.NewFromInt(1),
					UsedAt:         now,
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					success++
				case errors.Is(err, model.ErrRedemptionRace):
					raceLost++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, limit, success)
		assert.Equal(t, workers-limit, raceLost)

		stored, err := repo.FindWithHistory(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, limit, stored.UsedCount)
		assert.Len(t, stored.UsageHistory, limit)
	}
}

func TestMemoryRepository_Redeem_Rules(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	user := uuid.New()
	c := seedCoupon(t, repo, func(c *model.Coupon) { c.UserUsageLimit = 2 })

	order := uuid.New()
	require.NoError(t, repo.Redeem(ctx, &model.UsageRecord{CouponID: c.ID, UserID: user, OrderID: order}))

	err := repo.Redeem(ctx, &model.UsageRecord{CouponID: c.ID, UserID: uuid.New(), OrderID: order})
	assert.ErrorIs(t, err, model.ErrDuplicateUsage)

	require.NoError(t, repo.Redeem(ctx, &model.UsageRecord{CouponID: c.ID, UserID: user, OrderID: uuid.New()}))

	err = repo.Redeem(ctx, &model.UsageRecord{CouponID: c.ID, UserID: user, OrderID: uuid.New()})
	assert.ErrorIs(t, err, model.ErrUserLimitRace)

	err = repo.Redeem(ctx, &model.UsageRecord{CouponID: uuid.New(), UserID: user, OrderID: uuid.New()})
	assert.ErrorIs(t, err, model.ErrCouponNotFound)

	scoped, err := repo.FindByCodeForUser(ctx, "SAVE20", user)
	require.NoError(t, err)
	assert.Len(t, scoped.UsageHistory, 2)
	assert.Equal(t, 2, scoped.UsedCount)
}

func TestMemoryRepository_Issue(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	admin := uuid.New()
	c := seedCoupon(t, repo, func(c *model.Coupon) { c.IssuanceLimit = intPtr(2) })

	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()

	iss := &model.Issuance{CouponID: c.ID, UserID: u1, IssuedBy: &admin, Channel: model.ChannelAdmin}
	require.NoError(t, repo.Issue(ctx, iss, now))
	assert.NotEqual(t, uuid.Nil, iss.ID)
	assert.Equal(t, model.IssuanceStatusIssued, iss.Status)

	err := repo.Issue(ctx, &model.Issuance{CouponID: c.ID, UserID: u1, Channel: model.ChannelAdmin}, now)
	assert.ErrorIs(t, err, model.ErrAlreadyIssued)

	require.NoError(t, repo.Issue(ctx, &model.Issuance{CouponID: c.ID, UserID: u2, Channel: model.ChannelAPI}, now))

	err = repo.Issue(ctx, &model.Issuance{CouponID: c.ID, UserID: u3, Channel: model.ChannelAdmin}, now)
	assert.ErrorIs(t, err, model.ErrCannotBeIssued)

	stored, err := repo.FindWithHistory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.IssuedCount)
	assert.Len(t, stored.IssuedTo, 2)

	issuances, total, err := repo.ListIssuances(ctx, c.ID, &model.UsageListFilter{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, issuances, 1)
}

func TestMemoryRepository_Issue_ExpiredOrInactive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	expired := seedCoupon(t, repo, func(c *model.Coupon) {
		c.Code = "OLD"
		c.ExpirationDate = now.Add(-time.Hour)
	})
	inactive := seedCoupon(t, repo, func(c *model.Coupon) {
		c.Code = "OFF"
		c.IsActive = false
	})

	for _, c := range []*model.Coupon{expired, inactive} {
		err := repo.Issue(ctx, &model.Issuance{CouponID: c.ID, UserID: uuid.New(), Channel: model.ChannelAdmin}, now)
		assert.ErrorIs(t, err, model.ErrCannotBeIssued)
	}
}

func TestMemoryRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := seedCoupon(t, repo, func(c *model.Coupon) { c.UsageLimit = intPtr(5) })

	edit, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	edit.Name = "Renamed"
	edit.UsedCount = 42 // ignored
	require.NoError(t, repo.Update(ctx, edit))
	assert.Equal(t, 2, edit.Version)
	assert.Equal(t, 0, edit.UsedCount)

	stale := c.Clone()
	stale.Name = "stale"
	assert.ErrorIs(t, repo.Update(ctx, stale), model.ErrVersionConflict)

	require.NoError(t, repo.Redeem(ctx, &model.UsageRecord{CouponID: c.ID, UserID: uuid.New(), OrderID: uuid.New()}))
	assert.ErrorIs(t, repo.Delete(ctx, c.ID), model.ErrCannotDelete)

	unused := seedCoupon(t, repo, func(c *model.Coupon) { c.Code = "UNUSED1" })
	require.NoError(t, repo.Delete(ctx, unused.ID))
	_, err = repo.FindByCode(ctx, "UNUSED1")
	assert.ErrorIs(t, err, model.ErrCouponNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, unused.ID), model.ErrCouponNotFound)
}

func TestMemoryRepository_Update_ReopensIssuances(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	c := seedCoupon(t, repo, func(c *model.Coupon) { c.IssuanceLimit = intPtr(3) })
	user := uuid.New()

	require.NoError(t, repo.Issue(ctx, &model.Issuance{CouponID: c.ID, UserID: user, Channel: model.ChannelAdmin}, now))
	require.NoError(t, repo.Redeem(ctx, &model.UsageRecord{CouponID: c.ID, UserID: user, OrderID: uuid.New()}))

	scoped, err := repo.FindByCodeForUser(ctx, c.Code, user)
	require.NoError(t, err)
	require.Equal(t, model.IssuanceStatusUsed, scoped.IssuanceFor(user).Status)

	edit, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	edit.UserUsageLimit = 2
	require.NoError(t, repo.Update(ctx, edit))

	scoped, err = repo.FindByCodeForUser(ctx, c.Code, user)
	require.NoError(t, err)
	assert.Equal(t, model.IssuanceStatusIssued, scoped.IssuanceFor(user).Status)
	assert.Equal(t, 1, scoped.UserRemainingUses(user))

	require.NoError(t, repo.Redeem(ctx, &model.UsageRecord{CouponID: c.ID, UserID: user, OrderID: uuid.New()}))
}

func TestMemoryRepository_ListValidAndAdmin(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedCoupon(t, repo, func(c *model.Coupon) { c.Code = "ACTIVE1" })
	seedCoupon(t, repo, func(c *model.Coupon) {
		c.Code = "EXPIRED1"
		c.ExpirationDate = now.Add(-time.Hour)
	})
	seedCoupon(t, repo, func(c *model.Coupon) {
		c.Code = "USEDUP1"
		c.UsageLimit = intPtr(1)
		c.UsedCount = 1
	})
	seedCoupon(t, repo, func(c *model.Coupon) {
		c.Code = "OFF1"
		c.IsActive = false
	})

	valid, err := repo.ListValid(ctx, now)
	require.NoError(t, err)
	require.Len(t, valid, 1)
	assert.Equal(t, "ACTIVE1", valid[0].Code)

	tests := []struct {
		status string
		want   []string
	}{
		{status: "active", want: []string{"ACTIVE1"}},
		{status: "expired", want: []string{"EXPIRED1"}},
		{status: "exhausted", want: []string{"USEDUP1"}},
		{status: "inactive", want: []string{"OFF1"}},
		{status: "all", want: []string{"ACTIVE1", "EXPIRED1", "OFF1", "USEDUP1"}},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			f := &model.ListCouponsFilter{Status: tt.status, Sort: model.SortCodeAsc}
			require.NoError(t, f.Validate())

			items, total, err := repo.ListAdmin(ctx, f, now)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)

			codes := make([]string, 0, len(items))
			for _, c := range items {
				codes = append(codes, c.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestMemoryRepository_ExpireIssuances(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	live := seedCoupon(t, repo, func(c *model.Coupon) {
		c.Code = "LIVE"
		c.IssuanceLimit = intPtr(10)
	})
	require.NoError(t, repo.Issue(ctx, &model.Issuance{CouponID: live.ID, UserID: uuid.New(), Channel: model.ChannelAdmin}, now))
	require.NoError(t, repo.Issue(ctx, &model.Issuance{CouponID: live.ID, UserID: uuid.New(), Channel: model.ChannelAdmin}, now))
	require.NoError(t, repo.Issue(ctx, &model.Issuance{CouponID: live.ID, UserID: uuid.New(), Channel: model.ChannelAdmin}, now))

	later := live.ExpirationDate.Add(time.Hour)

	n, err := repo.ExpireIssuances(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = repo.ExpireIssuances(ctx, later, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.ExpireIssuances(ctx, later, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := repo.FindWithHistory(ctx, live.ID)
	require.NoError(t, err)
	for _, iss := range stored.IssuedTo {
		assert.Equal(t, model.IssuanceStatusExpired, iss.Status)
	}
}
