package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/franciosse/piscine-organique-backend/internal/logger"
)

// OrderCache holds serialized flattened lesson orders keyed by course id and
// structure version. A structure edit bumps the version, so stale entries
// simply stop being read and expire on their own.
type OrderCache interface {
	Get(ctx context.Context, courseID string, version int) ([]byte, bool, error)
	Set(ctx context.Context, courseID string, version int, payload []byte) error
	Close() error
}

const orderCacheTTL = 24 * time.Hour

type orderCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewOrderCache(addr string, log *logger.Logger) (OrderCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &orderCache{log: log.With("client", "OrderCache"), rdb: rdb}, nil
}

func cacheKey(courseID string, version int) string {
	return fmt.Sprintf("course_order:%s:v%d", courseID, version)
}

func (c *orderCache) Get(ctx context.Context, courseID string, version int) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, cacheKey(courseID, version)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *orderCache) Set(ctx context.Context, courseID string, version int, payload []byte) error {
	return c.rdb.Set(ctx, cacheKey(courseID, version), payload, orderCacheTTL).Err()
}

func (c *orderCache) Close() error {
	return c.rdb.Close()
}

// NewNoopCache returns a cache that never hits. Used when REDIS_ADDR is not
// configured and in tests; the evaluator recomputes the order each call,
// which is correct, just not memoized.
func NewNoopCache() OrderCache { return noopCache{} }

type noopCache struct{}

func (noopCache) Get(ctx context.Context, courseID string, version int) ([]byte, bool, error) {
	return nil, false, nil
}

func (noopCache) Set(ctx context.Context, courseID string, version int, payload []byte) error {
	return nil
}

func (noopCache) Close() error { return nil }
