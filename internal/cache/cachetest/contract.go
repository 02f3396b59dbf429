// Package cachetest provides contract tests for [cache.Cache]
// implementations.
package cachetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dreamware/shipquote/internal/cache"
	"github.com/dreamware/shipquote/internal/quote"
)

// Factory creates a fresh, empty [cache.Cache] for each test invocation.
type Factory func(t *testing.T) cache.Cache

// Request returns a valid request for destination, pickup on 2026-05-01.
func Request(destination string) quote.Request {
	return quote.Request{
		Origin:      "Lisbon",
		Destination: destination,
		WeightKg:    12.5,
		PickupDate:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Quotes returns two distinct quotes named after prefix.
func Quotes(prefix string) []quote.Quote {
	a, _ := quote.NewQuote(prefix+"-a", prefix+" Alpha", 85, "EUR", 3, 4, "road")
	b, _ := quote.NewQuote(prefix+"-b", prefix+" Beta", 90, "EUR", 2, 3, "air")
	b.IsFastest = true
	return []quote.Quote{a, b}
}

// Run exercises the [cache.Cache] contract.
func Run(t *testing.T, factory Factory) {
	t.Run("MissOnUnknownFingerprint", func(t *testing.T) {
		c := factory(t)
		got, ok, err := c.Lookup(context.Background(), Request("Porto").Fingerprint())
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if ok || len(got) != 0 {
			t.Fatalf("Lookup = %v, %v; want miss", got, ok)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		c := factory(t)
		ctx := context.Background()
		req := Request("Porto")
		want := Quotes("rt")

		if err := c.Store(ctx, req, want); err != nil {
			t.Fatalf("Store: %v", err)
		}
		got, ok, err := c.Lookup(ctx, req.Fingerprint())
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if !ok {
			t.Fatal("Lookup missed after Store")
		}
		assertEqual(t, want, got)
	})

	t.Run("EmptyStoreIsNoop", func(t *testing.T) {
		c := factory(t)
		ctx := context.Background()
		req := Request("Faro")

		if err := c.Store(ctx, req, nil); err != nil {
			t.Fatalf("Store(nil): %v", err)
		}
		if err := c.Store(ctx, req, []quote.Quote{}); err != nil {
			t.Fatalf("Store(empty): %v", err)
		}
		_, ok, err := c.Lookup(ctx, req.Fingerprint())
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if ok {
			t.Fatal("Lookup hit after storing an empty set")
		}
	})

	t.Run("EmptyStoreKeepsPreviousSet", func(t *testing.T) {
		c := factory(t)
		ctx := context.Background()
		req := Request("Braga")
		want := Quotes("keep")

		if err := c.Store(ctx, req, want); err != nil {
			t.Fatalf("Store: %v", err)
		}
		if err := c.Store(ctx, req, nil); err != nil {
			t.Fatalf("Store(nil): %v", err)
		}
		got, ok, err := c.Lookup(ctx, req.Fingerprint())
		if err != nil || !ok {
			t.Fatalf("Lookup = %v, %v", ok, err)
		}
		assertEqual(t, want, got)
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		c := factory(t)
		ctx := context.Background()
		req := Request("Coimbra")

		if err := c.Store(ctx, req, Quotes("first")); err != nil {
			t.Fatalf("first Store: %v", err)
		}
		// Persistent stores order sets by creation time.
		time.Sleep(5 * time.Millisecond)
		second := Quotes("second")[:1]
		if err := c.Store(ctx, req, second); err != nil {
			t.Fatalf("second Store: %v", err)
		}
		got, ok, err := c.Lookup(ctx, req.Fingerprint())
		if err != nil || !ok {
			t.Fatalf("Lookup = %v, %v", ok, err)
		}
		assertEqual(t, second, got)
	})

	t.Run("FingerprintsAreIndependent", func(t *testing.T) {
		c := factory(t)
		ctx := context.Background()
		porto, faro := Request("Porto"), Request("Faro")

		if err := c.Store(ctx, porto, Quotes("porto")); err != nil {
			t.Fatalf("Store: %v", err)
		}
		if _, ok, _ := c.Lookup(ctx, faro.Fingerprint()); ok {
			t.Fatal("Lookup of a different fingerprint hit")
		}
	})

	t.Run("ConcurrentDistinctFingerprints", func(t *testing.T) {
		c := factory(t)
		ctx := context.Background()

		const n = 20
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				req := Request(fmt.Sprintf("dest-%d", i))
				if err := c.Store(ctx, req, Quotes(fmt.Sprintf("c%d", i))); err != nil {
					errs[i] = err
					return
				}
				_, ok, err := c.Lookup(ctx, req.Fingerprint())
				if err != nil {
					errs[i] = err
				} else if !ok {
					errs[i] = fmt.Errorf("miss for dest-%d", i)
				}
			}(i)
		}
		wg.Wait()
		for i, err := range errs {
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
			}
		}
	})
}

func assertEqual(t *testing.T, want, got []quote.Quote) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d quotes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("quote[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
