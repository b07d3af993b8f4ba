package container

import (
	"context"
	"fmt"
	"time"

	"coupon-backend/internal/config"
	catalogRepo "coupon-backend/internal/domains/catalog/repository"
	catalogService "coupon-backend/internal/domains/catalog/service"
	couponHandler "coupon-backend/internal/domains/coupon/handler"
	couponRepo "coupon-backend/internal/domains/coupon/repository"
	couponService "coupon-backend/internal/domains/coupon/service"
	orderRepo "coupon-backend/internal/domains/order/repository"
	infraCache "coupon-backend/internal/infrastructure/cache"
	"coupon-backend/internal/infrastructure/database"
	"coupon-backend/pkg/cache"
	"coupon-backend/pkg/jwt"
	"coupon-backend/pkg/logger"
)

// ========================================
// CONTAINER STRUCT
// ========================================

// Container is the root of the dependency graph. Everything in it is a
// singleton for the lifetime of the process.
type Container struct {
	// Infrastructure
	Config     *config.Config
	DB         *database.PostgresDB
	Cache      cache.Cache // nil when CACHE_ENABLED=false
	JWTManager *jwt.Manager

	// Repositories
	CouponRepo  couponRepo.CouponRepository
	ProductRepo catalogRepo.ProductRepository
	HistoryRepo *orderRepo.PostgresHistoryRepository

	// Services
	ProductService *catalogService.ProductService
	CouponService  couponService.ServiceInterface

	// Handlers
	CouponPublicHandler *couponHandler.PublicHandler
	CouponAdminHandler  *couponHandler.AdminHandler
}

// ========================================
// CONSTRUCTOR: BUILD CONTAINER
// ========================================

// NewContainer builds the whole graph.
//
// Order matters:
// 1. Config
// 2. Infrastructure (DB, Cache, JWT)
// 3. Repositories
// 4. Services
// 5. Handlers
func NewContainer() (*Container, error) {
	c := &Container{}

	// ========================================
	// STEP 1: LOAD CONFIGURATION
	// ========================================
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	logger.Info("Config loaded", map[string]interface{}{"environment": cfg.App.Environment})

	// ========================================
	// STEP 2: INITIALIZE DATABASE
	// ========================================
	db := database.NewPostgresDB(cfg.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	c.DB = db

	// ========================================
	// STEP 3: INITIALIZE CACHE
	// ========================================
	c.Cache = c.initCache(ctx)

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	// ========================================
	// STEP 4-6: REPOSITORIES, SERVICES, HANDLERS
	// ========================================
	c.initRepositories()
	c.initServices()
	c.initHandlers()

	logger.Info("DI container initialized", nil)
	return c, nil
}

// ========================================
// PRIVATE INITIALIZATION METHODS
// ========================================

// initCache picks the cache driver. A Redis outage at startup is not fatal:
// the process falls back to the in-memory cache.
func (c *Container) initCache(ctx context.Context) cache.Cache {
	cfg := c.Config.Cache
	if !cfg.Enabled {
		logger.Info("Cache disabled", nil)
		return nil
	}

	if cfg.Driver == "redis" {
		rc := infraCache.NewRedisCache(c.Config.Redis.Addr, c.Config.Redis.Password, c.Config.Redis.DB, cfg.Prefix)
		err := rc.Connect(ctx)
		if err == nil {
			return rc
		}
		logger.Warn("Redis unavailable, falling back to memory cache", map[string]interface{}{
			"error": err.Error(),
		})
		_ = rc.Close()
	}

	return cache.NewMemoryCache(cfg.ProductTTL, cfg.CleanupInterval)
}

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.CouponRepo = couponRepo.NewPostgresRepository(pool)
	c.ProductRepo = catalogRepo.NewPostgresProductRepository(pool)
	c.HistoryRepo = orderRepo.NewPostgresHistoryRepository(pool)
}

func (c *Container) initServices() {
	c.ProductService = catalogService.NewProductService(c.ProductRepo, c.Cache, c.Config.Cache.ProductTTL)

	c.CouponService = couponService.NewCouponService(
		c.CouponRepo,
		c.ProductService, // cross-domain: prices and categories
		c.HistoryRepo,    // cross-domain: first-order checks
		couponService.Options{
			Cache:            c.Cache,
			AvailableTTL:     c.Config.Cache.AvailableTTL,
			MaxBulkIssue:     c.Config.Coupon.MaxBulkIssue,
			BulkIssueWorkers: c.Config.Coupon.BulkIssueWorkers,
		},
	)
}

func (c *Container) initHandlers() {
	c.CouponPublicHandler = couponHandler.NewPublicHandler(c.CouponService)
	c.CouponAdminHandler = couponHandler.NewAdminHandler(c.CouponService)
}

// ========================================
// HELPER METHODS
// ========================================

// CacheDriver reports the active cache for the health endpoint
func (c *Container) CacheDriver() string {
	switch c.Cache.(type) {
	case nil:
		return "disabled"
	case *infraCache.RedisCache:
		return "redis"
	default:
		return "memory"
	}
}

// Cleanup releases the DB pool and Redis connections during shutdown
func (c *Container) Cleanup() {
	if c.DB != nil {
		_ = c.DB.Close()
	}

	if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
		if err := rc.Close(); err != nil {
			logger.Error("Failed to close Redis", err)
		}
	}

	logger.Info("Container cleanup completed", nil)
}
