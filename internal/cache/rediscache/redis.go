// Package rediscache implements [cache.Cache] on Redis. Each quote set is a
// JSON string under its fingerprint with the freshness window as expiry, so
// Redis drops stale sets on its own.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dreamware/shipquote/internal/quote"
)

// Cache implements [cache.Cache] backed by Redis.
type Cache struct {
	Client redis.Cmdable
	TTL    time.Duration // 0 keeps sets until overwritten
}

// New returns a Redis cache with the given freshness window.
func New(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{Client: client, TTL: ttl}
}

func (c *Cache) Lookup(ctx context.Context, fingerprint string) ([]quote.Quote, bool, error) {
	data, err := c.Client.Get(ctx, fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", fingerprint, err)
	}

	var quotes []quote.Quote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, false, fmt.Errorf("decode cached quotes: %w", err)
	}
	if len(quotes) == 0 {
		return nil, false, nil
	}
	return quotes, true, nil
}

func (c *Cache) Store(ctx context.Context, req quote.Request, quotes []quote.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	data, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("encode quotes: %w", err)
	}
	if err := c.Client.Set(ctx, req.Fingerprint(), data, c.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
