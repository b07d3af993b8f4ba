package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"coupon-backend/internal/domains/catalog/model"
	"coupon-backend/internal/domains/catalog/repository"
	"coupon-backend/pkg/cache"
	"coupon-backend/pkg/logger"
)

const productCacheKey = "product:%s"

// ProductService resolves product ids through a read-through cache.
// cache may be nil, in which case every call hits the repository.
type ProductService struct {
	repo  repository.ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

func NewProductService(repo repository.ProductRepository, c cache.Cache, ttl time.Duration) *ProductService {
	return &ProductService{repo: repo, cache: c, ttl: ttl}
}

// GetProducts returns the known products among ids. Cache failures are
// logged and fall through to the repository.
func (s *ProductService) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	ids = lo.Uniq(ids)
	found := make(map[uuid.UUID]*model.Product, len(ids))

	missing := ids
	if s.cache != nil {
		missing = make([]uuid.UUID, 0, len(ids))
		for _, id := range ids {
			var p model.Product
			hit, err := s.cache.Get(ctx, fmt.Sprintf(productCacheKey, id), &p)
			if err != nil {
				logger.Warn("Product cache read failed", map[string]interface{}{
					"product_id": id.String(),
					"error":      err.Error(),
				})
			}
			if hit {
				found[id] = &p
				continue
			}
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		return found, nil
	}

	fetched, err := s.repo.FindByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}

	for id, p := range fetched {
		found[id] = p
		if s.cache != nil {
			if err := s.cache.Set(ctx, fmt.Sprintf(productCacheKey, id), p, s.ttl); err != nil {
				logger.Warn("Product cache write failed", map[string]interface{}{
					"product_id": id.String(),
					"error":      err.Error(),
				})
			}
		}
	}

	return found, nil
}
