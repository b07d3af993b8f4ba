package job

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"coupon-backend/internal/shared"
	"coupon-backend/internal/shared/utils"
	"coupon-backend/pkg/logger"
)

// IssuanceExpirer is the slice of the coupon service this job needs
type IssuanceExpirer interface {
	ExpireIssuances(ctx context.Context, batchSize int) (int, error)
}

// ExpireIssuancesHandler closes the open issuances of expired coupons so the
// issuance ledger and statistics reflect what can still be redeemed.
type ExpireIssuancesHandler struct {
	service          IssuanceExpirer
	defaultBatchSize int
}

func NewExpireIssuancesHandler(service IssuanceExpirer, defaultBatchSize int) *ExpireIssuancesHandler {
	if defaultBatchSize <= 0 {
		defaultBatchSize = 500
	}
	return &ExpireIssuancesHandler{
		service:          service,
		defaultBatchSize: defaultBatchSize,
	}
}

// ProcessTask
// EXECUTION FLOW:
// 1. Parse payload (empty for the scheduled run, batch size optional)
// 2. Expire in batches until nothing is left
// 3. Log statistics
func (h *ExpireIssuancesHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.ExpireIssuancesPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return err
	}

	batchSize := payload.BatchSize
	if batchSize <= 0 {
		batchSize = h.defaultBatchSize
	}

	start := time.Now()
	expired, err := h.service.ExpireIssuances(ctx, batchSize)
	if err != nil {
		logger.Error("Expire coupon issuances failed", err)
		return fmt.Errorf("expire issuances (expired so far=%d): %w", expired, err)
	}

	logger.Info("Expire coupon issuances completed", map[string]interface{}{
		"expired":     expired,
		"batch_size":  batchSize,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
