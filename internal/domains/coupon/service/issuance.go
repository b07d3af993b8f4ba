package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"coupon-backend/internal/domains/coupon/model"
	"coupon-backend/pkg/logger"
)

const csvUserIDColumn = "user_id"

// -------------------------------------------------------------------
// BULK ISSUE
// -------------------------------------------------------------------

// IssueCoupon grants the coupon to every user in the batch.
//
// Business Logic:
// - duplicate ids in the request are issued once
// - each user succeeds or fails on its own; one failure never aborts the batch
// - results keep the request order
// - the repository enforces issuance_limit and (coupon, user) uniqueness atomically
func (s *couponService) IssueCoupon(ctx context.Context, id uuid.UUID, req *model.IssueCouponRequest, adminID *uuid.UUID) (*model.BulkIssueResult, error) {
	if err := req.Validate(s.maxBulk); err != nil {
		return nil, err
	}

	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	userIDs := lo.Uniq(req.UserIDs)
	results := make([]model.IssueResult, len(userIDs))
	now := s.now()

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, userID := range userIDs {
		i, userID := i, userID
		g.Go(func() error {
			iss := &model.Issuance{
				ID:       uuid.New(),
				CouponID: coupon.ID,
				UserID:   userID,
				IssuedBy: adminID,
				Channel:  req.Channel,
				IssuedAt: now,
			}
			results[i] = s.issueOne(ctx, iss, now)
			return nil
		})
	}
	_ = g.Wait()

	out := &model.BulkIssueResult{
		CouponID:  coupon.ID,
		Requested: len(userIDs),
		Results:   results,
	}
	for _, r := range results {
		if r.Status == model.IssueStatusIssued {
			out.Issued++
		} else {
			out.Failed++
		}
	}

	logger.Info("Coupon issued", map[string]interface{}{
		"coupon_id": coupon.ID.String(),
		"channel":   string(req.Channel),
		"requested": out.Requested,
		"issued":    out.Issued,
		"failed":    out.Failed,
	})
	return out, nil
}

func (s *couponService) issueOne(ctx context.Context, iss *model.Issuance, now time.Time) model.IssueResult {
	err := s.repo.Issue(ctx, iss, now)
	if err == nil {
		return model.IssueResult{UserID: iss.UserID, Status: model.IssueStatusIssued, Issued: iss}
	}

	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		logger.Error("Coupon issuance failed", err)
		appErr = model.NewInternalError(nil)
	}
	return model.IssueResult{
		UserID: iss.UserID,
		Status: model.IssueStatusFailed,
		Code:   appErr.Code,
		Error:  appErr.Message,
	}
}

// -------------------------------------------------------------------
// CSV IMPORT
// -------------------------------------------------------------------

// ImportIssuances issues the coupon to the users listed in a CSV upload.
// The file needs a header row with a user_id column; other columns are ignored.
func (s *couponService) ImportIssuances(ctx context.Context, id uuid.UUID, r io.Reader, channel model.IssuanceChannel, adminID *uuid.UUID) (*model.BulkIssueResult, error) {
	userIDs, err := parseUserIDsCSV(r, s.maxBulk)
	if err != nil {
		return nil, err
	}

	return s.IssueCoupon(ctx, id, &model.IssueCouponRequest{
		UserIDs: userIDs,
		Channel: channel,
	}, adminID)
}

// parseUserIDsCSV reports every malformed row at once, keyed "row_<n>"
// with n the 1-based line number in the file.
func parseUserIDsCSV(r io.Reader, maxRows int) ([]uuid.UUID, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.NewFieldError("file", "is empty")
	}
	if err != nil {
		return nil, model.NewFieldError("file", fmt.Sprintf("is not valid CSV: %v", err))
	}

	col := lo.IndexOf(lo.Map(header, func(h string, _ int) string {
		return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}), csvUserIDColumn)
	if col < 0 {
		return nil, model.NewFieldError("file", "must have a user_id column")
	}

	fields := map[string]string{}
	var ids []uuid.UUID
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			fields[fmt.Sprintf("row_%d", line)] = err.Error()
			continue
		}
		if col >= len(record) || strings.TrimSpace(record[col]) == "" {
			continue
		}

		id, err := uuid.Parse(strings.TrimSpace(record[col]))
		if err != nil {
			fields[fmt.Sprintf("row_%d", line)] = "invalid user_id"
			continue
		}
		ids = append(ids, id)

		if len(ids) > maxRows {
			return nil, model.NewFieldError("file", fmt.Sprintf("has more than %d users", maxRows))
		}
	}

	if len(fields) > 0 {
		appErr := model.NewFieldError("file", "contains invalid rows")
		appErr.Details["fields"] = lo.Assign(appErr.Details["fields"].(map[string]string), fields)
		return nil, appErr
	}
	if len(ids) == 0 {
		return nil, model.NewFieldError("file", "contains no user ids")
	}
	return ids, nil
}

// -------------------------------------------------------------------
// EXPIRY
// -------------------------------------------------------------------

// ExpireIssuances closes open issuances of expired coupons batch by batch
// until a short batch shows nothing is left. Returns the total expired.
func (s *couponService) ExpireIssuances(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := s.repo.ExpireIssuances(ctx, s.now(), batchSize)
		if err != nil {
			return total, fmt.Errorf("expire issuances: %w", err)
		}
		total += n
		if n < batchSize {
			return total, nil
		}
	}
}
