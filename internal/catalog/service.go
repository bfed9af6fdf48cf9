package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 5 * time.Minute

// Service serves catalog lookups with a redis read-through cache.
// Catalog rows change rarely; a short TTL keeps quotation line
// rendering cheap without an invalidation protocol.
type Service struct {
	repo  Repository
	cache *redis.Client
}

// NewService builds the catalog service. cache may be nil.
func NewService(repo Repository, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache}
}

// GetVariant returns one variant.
func (s *Service) GetVariant(ctx context.Context, id int64) (*Variant, error) {
	key := fmt.Sprintf("catalog:variant:%d", id)
	var v Variant
	if s.cacheGet(ctx, key, &v) {
		return &v, nil
	}
	variant, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, variant)
	return variant, nil
}

// GetColor returns one color.
func (s *Service) GetColor(ctx context.Context, id int64) (*Color, error) {
	key := fmt.Sprintf("catalog:color:%d", id)
	var c Color
	if s.cacheGet(ctx, key, &c) {
		return &c, nil
	}
	color, err := s.repo.GetColor(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, color)
	return color, nil
}

// GetWarehouse returns one warehouse.
func (s *Service) GetWarehouse(ctx context.Context, id int64) (*Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

// ListVariants returns active variants.
func (s *Service) ListVariants(ctx context.Context) ([]Variant, error) {
	return s.repo.ListVariants(ctx)
}

// ListColors returns all colors.
func (s *Service) ListColors(ctx context.Context) ([]Color, error) {
	return s.repo.ListColors(ctx)
}

// ListWarehouses returns all warehouses.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

func (s *Service) cacheGet(ctx context.Context, key string, target any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, target) == nil
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, data, cacheTTL).Err()
}
