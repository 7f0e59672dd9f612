package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"mailmart/internal/model"
	"mailmart/internal/service"
)

const (
	categoryKeyPrefix = "category:"
	categoriesKey     = "categories:all"
)

// CategoryCache puts Redis in front of a CatalogStore. Redis failures fall
// through to the store; writes go to the store and then evict.
type CategoryCache struct {
	next   service.CatalogStore
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCategoryCache(next service.CatalogStore, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CategoryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryCache{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CategoryCache) Category(ctx context.Context, id string) (model.Category, error) {
	var cat model.Category
	if c.get(ctx, categoryKeyPrefix+id, &cat) {
		return cat, nil
	}
	cat, err := c.next.Category(ctx, id)
	if err != nil {
		return model.Category{}, err
	}
	c.set(ctx, categoryKeyPrefix+id, cat)
	return cat, nil
}

func (c *CategoryCache) Categories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	if c.get(ctx, categoriesKey, &cats) {
		return cats, nil
	}
	cats, err := c.next.Categories(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, categoriesKey, cats)
	return cats, nil
}

func (c *CategoryCache) UpsertCategory(ctx context.Context, cat model.Category) (model.Category, error) {
	saved, err := c.next.UpsertCategory(ctx, cat)
	if err != nil {
		return model.Category{}, err
	}
	if err := c.rdb.Del(ctx, categoryKeyPrefix+saved.ID, categoriesKey).Err(); err != nil {
		c.logger.Warn("category cache eviction failed", "category_id", saved.ID, "error", err)
	}
	return saved, nil
}

func (c *CategoryCache) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("category cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("category cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (c *CategoryCache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("category cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("category cache write failed", "key", key, "error", err)
	}
}
