package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"coupon-backend/internal/config"
	"coupon-backend/internal/shared"
	"coupon-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobsConfig
}

func NewScheduler(redis config.RedisConfig, jobConfig config.JobsConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		RedisOpt(redis),
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

// RedisOpt converts the app redis config into asynq connection options
func RedisOpt(redis config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     redis.Addr,
		Password: redis.Password,
		DB:       redis.DB,
	}
}

func (s *Scheduler) RegisterJobs() error {
	if err := s.registerExpireIssuancesJob(); err != nil {
		return err
	}
	return nil
}

// ================================================
// Expire coupon issuances (JOB_EXPIRE_ISSUANCES_CRON, default hourly)
// ================================================
func (s *Scheduler) registerExpireIssuancesJob() error {
	payload, err := json.Marshal(shared.ExpireIssuancesPayload{
		BatchSize: s.jobConfig.ExpireIssuancesBatch,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeExpireCouponIssuances, payload)

	_, err = s.scheduler.Register(
		s.jobConfig.ExpireIssuancesCron,
		task,
		asynq.Queue(shared.QueueLow),
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
		// a slow run must not overlap with the next tick
		asynq.Unique(time.Hour),
	)
	if err != nil {
		logger.Error("Failed to register ExpireCouponIssuances job", err)
		return err
	}

	logger.Info("Registered ExpireCouponIssuances", map[string]interface{}{
		"cron":       s.jobConfig.ExpireIssuancesCron,
		"batch_size": s.jobConfig.ExpireIssuancesBatch,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
