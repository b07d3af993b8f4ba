package main

import (
	"os"

	"coupon-backend/internal/config"
	"coupon-backend/pkg/logger"
)

// Config is the worker's view of the application config
type Config struct {
	Redis      config.RedisConfig
	Jobs       config.JobsConfig
	HealthAddr string
}

func loadConfig(app *config.Config) *Config {
	cfg := &Config{
		Redis:      app.Redis,
		Jobs:       app.Jobs,
		HealthAddr: ":9999",
	}
	if addr := os.Getenv("WORKER_HEALTH_ADDR"); addr != "" {
		cfg.HealthAddr = addr
	}

	logger.Info("Worker config loaded", map[string]interface{}{
		"redis":       cfg.Redis.Addr,
		"concurrency": cfg.Jobs.Concurrency,
		"health_addr": cfg.HealthAddr,
	})

	return cfg
}
