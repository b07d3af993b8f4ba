package repository

import (
	"fmt"
	"strings"
	"time"

	"coupon-backend/internal/domains/coupon/model"
	"coupon-backend/internal/shared/utils"
)

// likeEscaper makes user input match literally inside a LIKE pattern
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

const couponColumns = `
	id, code, name, description,
	discount_type, discount_value, minimum_order_amount, maximum_discount_amount,
	expiration_date, usage_limit, used_count, user_usage_limit,
	issuance_limit, issued_count,
	applicable_products, applicable_categories, excluded_products, excluded_categories,
	is_first_time_user_only, allowed_users, excluded_users,
	is_active, created_by, updated_by, version, created_at, updated_at`

// listQuery is the WHERE / ORDER BY part of an admin listing with its positional args
type listQuery struct {
	Where   string
	OrderBy string
	Args    []interface{}
}

// buildListQuery translates the typed filter into SQL. Status uses the same
// precedence as model.Coupon.Status: inactive, expired, exhausted, active.
func buildListQuery(filter *model.ListCouponsFilter, now time.Time) listQuery {
	clauses := []string{}
	args := []interface{}{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch model.CouponStatus(filter.Status) {
	case model.StatusInactive:
		clauses = append(clauses, "is_active = false")
	case model.StatusExpired:
		clauses = append(clauses, fmt.Sprintf("is_active = true AND expiration_date < %s", next(now)))
	case model.StatusExhausted:
		clauses = append(clauses, fmt.Sprintf(
			"is_active = true AND expiration_date >= %s AND usage_limit IS NOT NULL AND used_count >= usage_limit",
			next(now),
		))
	case model.StatusActive:
		clauses = append(clauses, fmt.Sprintf(
			"is_active = true AND expiration_date >= %s AND (usage_limit IS NULL OR used_count < usage_limit)",
			next(now),
		))
	}

	if filter.Search != "" {
		p := next("%" + likeEscaper.Replace(strings.ToLower(filter.Search)) + "%")
		clauses = append(clauses, fmt.Sprintf(`(LOWER(code) LIKE %s ESCAPE '\' OR LOWER(name) LIKE %s ESCAPE '\')`, p, p))
	}

	if filter.DiscountType != "" {
		clauses = append(clauses, "discount_type = "+next(filter.DiscountType))
	}

	if filter.IsActive != nil {
		clauses = append(clauses, "is_active = "+next(*filter.IsActive))
	}

	q := listQuery{Args: args}
	if len(clauses) > 0 {
		q.Where = "WHERE " + utils.JoinWithAnd(clauses)
	}

	switch filter.Sort {
	case model.SortCreatedAsc:
		q.OrderBy = "ORDER BY created_at ASC"
	case model.SortExpirationAsc:
		q.OrderBy = "ORDER BY expiration_date ASC"
	case model.SortExpirationDesc:
		q.OrderBy = "ORDER BY expiration_date DESC"
	case model.SortUsageDesc:
		q.OrderBy = "ORDER BY used_count DESC, created_at DESC"
	case model.SortCodeAsc:
		q.OrderBy = "ORDER BY code ASC"
	default:
		q.OrderBy = "ORDER BY created_at DESC"
	}

	return q
}
