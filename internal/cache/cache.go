// Package cache implements the cache-aside store that sits in front of the
// carrier fan-out. Implementations keep the quote set of a request for a
// freshness window; after that a lookup misses and the caller refetches.
package cache

import (
	"context"

	"github.com/dreamware/shipquote/internal/quote"
)

// Cache stores quote sets by request fingerprint.
// All implementations must be safe for concurrent use. Two writers racing on
// the same fingerprint resolve as last write wins.
type Cache interface {
	// Lookup returns the fresh quote set stored under fingerprint
	// ok is false on a miss; err reports an unreachable store
	Lookup(ctx context.Context, fingerprint string) (quotes []quote.Quote, ok bool, err error)

	// Store saves quotes under req.Fingerprint(), replacing any previous set
	// Storing an empty set does nothing
	Store(ctx context.Context, req quote.Request, quotes []quote.Quote) error
}
