package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"coupon-backend/internal/domains/coupon/model"
	"coupon-backend/pkg/database"
	"coupon-backend/pkg/logger"
)

// Constraint names from db/schema.sql
const (
	constraintCouponCode   = "coupons_code_key"
	constraintUsageOrder   = "coupon_usages_coupon_order_key"
	constraintIssuanceUser = "coupon_issuances_coupon_user_key"
)

// PostgresRepository implements CouponRepository on pgx
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) CouponRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoupon(row rowScanner) (*model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.Name,
		&c.Description, // nullable
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinimumOrderAmount,
		&c.MaximumDiscountAmount, // nullable
		&c.ExpirationDate,
		&c.UsageLimit, // nullable
		&c.UsedCount,
		&c.UserUsageLimit,
		&c.IssuanceLimit, // nullable
		&c.IssuedCount,
		&c.ApplicableProducts,
		&c.ApplicableCategories,
		&c.ExcludedProducts,
		&c.ExcludedCategories,
		&c.IsFirstTimeUserOnly,
		&c.AllowedUsers,
		&c.ExcludedUsers,
		&c.IsActive,
		&c.CreatedBy,
		&c.UpdatedBy,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrCouponNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// -------------------------------------------------------------------
// READ OPERATIONS
// -------------------------------------------------------------------

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	c, err := scanCoupon(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "find coupon by id")
	}
	return c, nil
}

// FindByCode matches case-insensitively; codes are stored uppercase
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	c, err := scanCoupon(r.db.QueryRow(ctx, query, model.NormalizeCode(code)))
	if err != nil {
		return nil, notFound(err, "find coupon by code")
	}
	return c, nil
}

// FindByCodeForUser loads the coupon plus the user's issuance and usage rows
//
// Note: uses idx_coupon_usages_user and the (coupon_id, user_id) unique index
func (r *PostgresRepository) FindByCodeForUser(ctx context.Context, code string, userID uuid.UUID) (*model.Coupon, error) {
	c, err := r.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	c.IssuedTo, err = r.queryIssuances(ctx, r.db,
		`WHERE coupon_id = $1 AND user_id = $2 ORDER BY issued_at`, c.ID, userID)
	if err != nil {
		return nil, err
	}

	c.UsageHistory, err = r.queryUsages(ctx, r.db,
		`WHERE coupon_id = $1 AND user_id = $2 ORDER BY used_at`, c.ID, userID)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (r *PostgresRepository) FindWithHistory(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	c, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.IssuedTo, err = r.queryIssuances(ctx, r.db, `WHERE coupon_id = $1 ORDER BY issued_at`, c.ID)
	if err != nil {
		return nil, err
	}

	c.UsageHistory, err = r.queryUsages(ctx, r.db, `WHERE coupon_id = $1 ORDER BY used_at`, c.ID)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// ListValid returns every coupon that can currently be redeemed
//
// Business Logic:
// - is_active = true
// - expiration_date >= now
// - usage_limit IS NULL OR used_count < usage_limit
func (r *PostgresRepository) ListValid(ctx context.Context, now time.Time) ([]*model.Coupon, error) {
	query := `
		SELECT ` + couponColumns + `
		FROM coupons
		WHERE is_active = true
		  AND expiration_date >= $1
		  AND (usage_limit IS NULL OR used_count < usage_limit)
		ORDER BY expiration_date ASC
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list valid coupons: %w", err)
	}
	defer rows.Close()

	coupons := []*model.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan valid coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

// ListAdmin pages through coupons using the filter builder in query.go
func (r *PostgresRepository) ListAdmin(ctx context.Context, filter *model.ListCouponsFilter, now time.Time) ([]*model.Coupon, int, error) {
	q := buildListQuery(filter, now)

	var total int
	countQuery := `SELECT COUNT(*) FROM coupons ` + q.Where
	if err := r.db.QueryRow(ctx, countQuery, q.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count admin coupons: %w", err)
	}

	args := append(q.Args, filter.Limit, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM coupons %s %s LIMIT $%d OFFSET $%d`,
		couponColumns, q.Where, q.OrderBy, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list admin coupons: %w", err)
	}
	defer rows.Close()

	coupons := []*model.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan admin coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate admin coupons: %w", err)
	}

	return coupons, total, nil
}

func (r *PostgresRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM coupons WHERE code = $1)`, model.NormalizeCode(code)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check coupon code: %w", err)
	}
	return exists, nil
}

// -------------------------------------------------------------------
// WRITE OPERATIONS
// -------------------------------------------------------------------

func (r *PostgresRepository) Create(ctx context.Context, c *model.Coupon) error {
	query := `
		INSERT INTO coupons (
			id, code, name, description,
			discount_type, discount_value, minimum_order_amount, maximum_discount_amount,
			expiration_date, usage_limit, used_count, user_usage_limit,
			issuance_limit, issued_count,
			applicable_products, applicable_categories, excluded_products, excluded_categories,
			is_first_time_user_only, allowed_users, excluded_users,
			is_active, created_by, updated_by, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27
		)
	`

	_, err := r.db.Exec(ctx, query,
		c.ID,
		model.NormalizeCode(c.Code),
		c.Name,
		c.Description,
		c.DiscountType,
		c.DiscountValue,
		c.MinimumOrderAmount,
		c.MaximumDiscountAmount,
		c.ExpirationDate,
		c.UsageLimit,
		c.UsedCount,
		c.UserUsageLimit,
		c.IssuanceLimit,
		c.IssuedCount,
		uuidArray(c.ApplicableProducts),
		uuidArray(c.ApplicableCategories),
		uuidArray(c.ExcludedProducts),
		uuidArray(c.ExcludedCategories),
		c.IsFirstTimeUserOnly,
		uuidArray(c.AllowedUsers),
		uuidArray(c.ExcludedUsers),
		c.IsActive,
		c.CreatedBy,
		c.UpdatedBy,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, constraintCouponCode) {
			return model.ErrDuplicateCode
		}
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

// Update writes every editable field with optimistic locking
//
// Business Logic:
// - WHERE version = c.Version, then version + 1
// - No row → either gone (404) or modified concurrently (409)
// - Counters are never written here; CHECK constraints reject limits below them
// - "used" issuances reopen when the user limit now leaves them uses
func (r *PostgresRepository) Update(ctx context.Context, c *model.Coupon) error {
	query := `
		UPDATE coupons
		SET
			name = $3,
			description = $4,
			discount_type = $5,
			discount_value = $6,
			minimum_order_amount = $7,
			maximum_discount_amount = $8,
			expiration_date = $9,
			usage_limit = $10,
			user_usage_limit = $11,
			issuance_limit = $12,
			applicable_products = $13,
			applicable_categories = $14,
			excluded_products = $15,
			excluded_categories = $16,
			is_first_time_user_only = $17,
			allowed_users = $18,
			excluded_users = $19,
			is_active = $20,
			updated_by = $21,
			updated_at = $22,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version, used_count, issued_count
	`

	var version, usedCount, issuedCount int
	err := database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			c.ID,
			c.Version,
			c.Name,
			c.Description,
			c.DiscountType,
			c.DiscountValue,
			c.MinimumOrderAmount,
			c.MaximumDiscountAmount,
			c.ExpirationDate,
			c.UsageLimit,
			c.UserUsageLimit,
			c.IssuanceLimit,
			uuidArray(c.ApplicableProducts),
			uuidArray(c.ApplicableCategories),
			uuidArray(c.ExcludedProducts),
			uuidArray(c.ExcludedCategories),
			c.IsFirstTimeUserOnly,
			uuidArray(c.AllowedUsers),
			uuidArray(c.ExcludedUsers),
			c.IsActive,
			c.UpdatedBy,
			c.UpdatedAt,
		).Scan(&version, &usedCount, &issuedCount)
		if err != nil {
			return err
		}

		// a raised user_usage_limit gives exhausted holders their remaining uses back
		_, err = tx.Exec(ctx, `
			UPDATE coupon_issuances i
			SET status = 'issued', used_at = NULL
			WHERE i.coupon_id = $1
				AND i.status = 'used'
				AND (SELECT COUNT(*) FROM coupon_usages u
					WHERE u.coupon_id = i.coupon_id AND u.user_id = i.user_id) < $2
		`, c.ID, c.UserUsageLimit)
		if err != nil {
			return fmt.Errorf("reopen issuances: %w", err)
		}
		return nil
	})

	if err == nil {
		c.Version, c.UsedCount, c.IssuedCount = version, usedCount, issuedCount
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if _, findErr := r.FindByID(ctx, c.ID); findErr != nil {
			return findErr
		}
		return model.ErrVersionConflict
	}
	if database.IsCheckViolation(err) {
		return model.NewConflictError(model.ErrCodeLimitBelowUsage, "Limit cannot be lower than the current count")
	}
	return fmt.Errorf("update coupon: %w", err)
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, isActive bool, updatedBy *uuid.UUID) (*model.Coupon, error) {
	query := `
		UPDATE coupons
		SET is_active = $2, updated_by = $3, updated_at = NOW(), version = version + 1
		WHERE id = $1
		RETURNING ` + couponColumns

	c, err := scanCoupon(r.db.QueryRow(ctx, query, id, isActive, updatedBy))
	if err != nil {
		return nil, notFound(err, "update coupon status")
	}
	return c, nil
}

// Delete removes an unused coupon; ledgers cascade
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM coupons WHERE id = $1 AND used_count = 0`, id)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return model.ErrCannotDelete
}

// -------------------------------------------------------------------
// LEDGERS
// -------------------------------------------------------------------

// Redeem commits one redemption in a single transaction
//
// Business Logic:
//  1. Conditional increment of used_count; the row lock it takes serializes
//     every redemption of this coupon until commit
//  2. No row updated → limit already reached (or coupon gone)
//  3. Per-user count re-checked under the lock
//  4. Usage row inserted; (coupon_id, order_id) is unique
//  5. The user's issuance flips to "used" once their limit is consumed
func (r *PostgresRepository) Redeem(ctx context.Context, usage *model.UsageRecord) error {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}

	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		var userLimit int
		err := tx.QueryRow(ctx, `
			UPDATE coupons
			SET used_count = used_count + 1, updated_at = $2
			WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
			RETURNING user_usage_limit
		`, usage.CouponID, usage.UsedAt).Scan(&userLimit)
		if errors.Is(err, pgx.ErrNoRows) {
			if exists, existsErr := couponExists(ctx, tx, usage.CouponID); existsErr != nil {
				return existsErr
			} else if !exists {
				return model.ErrCouponNotFound
			}
			return model.ErrRedemptionRace
		}
		if err != nil {
			return fmt.Errorf("increment used_count: %w", err)
		}

		var userCount int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`,
			usage.CouponID, usage.UserID,
		).Scan(&userCount)
		if err != nil {
			return fmt.Errorf("count user usages: %w", err)
		}
		if userCount >= userLimit {
			return model.ErrUserLimitRace
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, discount_amount, used_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, usage.ID, usage.CouponID, usage.UserID, usage.OrderID, usage.DiscountAmount, usage.UsedAt)
		if err != nil {
			if database.IsUniqueViolation(err, constraintUsageOrder) {
				return model.ErrDuplicateUsage
			}
			return fmt.Errorf("insert coupon usage: %w", err)
		}

		if userCount+1 >= userLimit {
			_, err = tx.Exec(ctx, `
				UPDATE coupon_issuances
				SET status = 'used', used_at = $3
				WHERE coupon_id = $1 AND user_id = $2 AND status = 'issued'
			`, usage.CouponID, usage.UserID, usage.UsedAt)
			if err != nil {
				return fmt.Errorf("mark issuance used: %w", err)
			}
		}

		return nil
	})
}

// Issue grants the coupon to one user
//
// Business Logic:
// - Same conditional-increment shape as Redeem, against issued_count
// - Active and not expired are part of the condition (canBeIssued)
// - (coupon_id, user_id) is unique → duplicate issuance rolls the increment back
func (r *PostgresRepository) Issue(ctx context.Context, iss *model.Issuance, now time.Time) error {
	if iss.ID == uuid.Nil {
		iss.ID = uuid.New()
	}
	if iss.IssuedAt.IsZero() {
		iss.IssuedAt = now
	}
	iss.Status = model.IssuanceStatusIssued

	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE coupons
			SET issued_count = issued_count + 1, updated_at = $2
			WHERE id = $1
			  AND is_active = true
			  AND expiration_date >= $2
			  AND (issuance_limit IS NULL OR issued_count < issuance_limit)
		`, iss.CouponID, now)
		if err != nil {
			return fmt.Errorf("increment issued_count: %w", err)
		}
		if tag.RowsAffected() == 0 {
			if exists, existsErr := couponExists(ctx, tx, iss.CouponID); existsErr != nil {
				return existsErr
			} else if !exists {
				return model.ErrCouponNotFound
			}
			return model.ErrCannotBeIssued
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO coupon_issuances (id, coupon_id, user_id, issued_by, channel, status, issued_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, iss.ID, iss.CouponID, iss.UserID, iss.IssuedBy, iss.Channel, iss.Status, iss.IssuedAt)
		if err != nil {
			if database.IsUniqueViolation(err, constraintIssuanceUser) {
				return model.ErrAlreadyIssued
			}
			return fmt.Errorf("insert coupon issuance: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) ListUsages(ctx context.Context, couponID uuid.UUID, filter *model.UsageListFilter) ([]model.UsageRecord, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1`, couponID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupon usages: %w", err)
	}

	usages, err := r.queryUsages(ctx, r.db,
		`WHERE coupon_id = $1 ORDER BY used_at DESC LIMIT $2 OFFSET $3`,
		couponID, filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, err
	}
	return usages, total, nil
}

func (r *PostgresRepository) ListIssuances(ctx context.Context, couponID uuid.UUID, filter *model.UsageListFilter) ([]model.Issuance, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM coupon_issuances WHERE coupon_id = $1`, couponID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupon issuances: %w", err)
	}

	issuances, err := r.queryIssuances(ctx, r.db,
		`WHERE coupon_id = $1 ORDER BY issued_at DESC LIMIT $2 OFFSET $3`,
		couponID, filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, err
	}
	return issuances, total, nil
}

// ExpireIssuances marks open issuances of expired coupons as expired, one batch per call
func (r *PostgresRepository) ExpireIssuances(ctx context.Context, now time.Time, batchSize int) (int, error) {
	query := `
		UPDATE coupon_issuances
		SET status = 'expired'
		WHERE id IN (
			SELECT i.id
			FROM coupon_issuances i
			JOIN coupons c ON c.id = i.coupon_id
			WHERE i.status = 'issued' AND c.expiration_date < $1
			ORDER BY i.issued_at
			LIMIT $2
			FOR UPDATE OF i SKIP LOCKED
		)
	`

	tag, err := r.db.Exec(ctx, query, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("expire issuances: %w", err)
	}

	affected := int(tag.RowsAffected())
	if affected > 0 {
		logger.Info("Expired coupon issuances", map[string]interface{}{
			"count": affected,
		})
	}
	return affected, nil
}

// -------------------------------------------------------------------
// HELPERS
// -------------------------------------------------------------------

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func couponExists(ctx context.Context, q querier, id uuid.UUID) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM coupons WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check coupon exists: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) queryUsages(ctx context.Context, q querier, where string, args ...interface{}) ([]model.UsageRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT id, coupon_id, user_id, order_id, discount_amount, used_at
		FROM coupon_usages `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query coupon usages: %w", err)
	}
	defer rows.Close()

	usages := []model.UsageRecord{}
	for rows.Next() {
		var u model.UsageRecord
		if err := rows.Scan(&u.ID, &u.CouponID, &u.UserID, &u.OrderID, &u.DiscountAmount, &u.UsedAt); err != nil {
			return nil, fmt.Errorf("scan coupon usage: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

func (r *PostgresRepository) queryIssuances(ctx context.Context, q querier, where string, args ...interface{}) ([]model.Issuance, error) {
	rows, err := q.Query(ctx, `
		SELECT id, coupon_id, user_id, issued_by, channel, status, issued_at, used_at
		FROM coupon_issuances `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query coupon issuances: %w", err)
	}
	defer rows.Close()

	issuances := []model.Issuance{}
	for rows.Next() {
		var i model.Issuance
		if err := rows.Scan(&i.ID, &i.CouponID, &i.UserID, &i.IssuedBy, &i.Channel, &i.Status, &i.IssuedAt, &i.UsedAt); err != nil {
			return nil, fmt.Errorf("scan coupon issuance: %w", err)
		}
		issuances = append(issuances, i)
	}
	return issuances, rows.Err()
}

// uuidArray writes an empty array instead of NULL for a nil slice
func uuidArray(ids []uuid.UUID) interface{} {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return pq.Array(ids)
}
