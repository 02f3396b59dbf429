package pgcache

import (
	"context"
	"time"

	"github.com/dreamware/shipquote/internal/quote"
)

// Cache implements [cache.Cache] over a Repository. A stored set is fresh
// for TTL after it was saved.
type Cache struct {
	Repo *Repository
	TTL  time.Duration
}

// NewCache returns a cache over repo with the given freshness window.
func NewCache(repo *Repository, ttl time.Duration) *Cache {
	return &Cache{Repo: repo, TTL: ttl}
}

func (c *Cache) Lookup(ctx context.Context, fingerprint string) ([]quote.Quote, bool, error) {
	since := time.Time{}
	if c.TTL > 0 {
		since = c.Repo.now().Add(-c.TTL)
	}
	quotes, err := c.Repo.FindCached(ctx, fingerprint, since)
	if err != nil {
		return nil, false, err
	}
	if len(quotes) == 0 {
		return nil, false, nil
	}
	return quotes, true, nil
}

func (c *Cache) Store(ctx context.Context, req quote.Request, quotes []quote.Quote) error {
	_, err := c.Repo.SaveMany(ctx, quotes, MetadataFor(req))
	return err
}
