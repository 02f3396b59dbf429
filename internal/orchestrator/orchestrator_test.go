package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shipquote/internal/cache"
	"github.com/dreamware/shipquote/internal/dispatch"
	"github.com/dreamware/shipquote/internal/events"
	"github.com/dreamware/shipquote/internal/orchestrator"
	"github.com/dreamware/shipquote/internal/provider"
	"github.com/dreamware/shipquote/internal/quote"
)

var testNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func request(fragile bool) quote.Request {
	return quote.Request{
		Origin:      "Lisbon",
		Destination: "Madrid",
		WeightKg:    20,
		PickupDate:  testNow.AddDate(0, 0, 2),
		Fragile:     fragile,
	}
}

// fixed answers with the given price and transit range and counts its calls.
type fixed struct {
	calls   atomic.Int32
	price   float64
	minDays int
	maxDays int
}

func (f *fixed) Quote(context.Context, float64, string) (quote.Quote, error) {
	f.calls.Add(1)
	return quote.Quote{Price: f.price, Currency: "EUR", MinDays: f.minDays, MaxDays: f.maxDays, TransportMode: "road"}, nil
}

func failing(context.Context, float64, string) (quote.Quote, error) {
	return quote.Quote{}, errors.New("carrier exploded")
}

// hanging ignores its context and returns only once release is closed.
func hanging(t *testing.T) provider.Func {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	return func(context.Context, float64, string) (quote.Quote, error) {
		<-release
		return quote.Quote{Price: 1, Currency: "EUR", MinDays: 1, MaxDays: 1}, nil
	}
}

func reg(id, name string, p provider.Provider) provider.Registration {
	return provider.Registration{ID: id, Name: name, Provider: p}
}

// fakeCache wraps a Memory cache with injectable failures.
type fakeCache struct {
	*cache.Memory
	lookupErr error
	storeErr  error
	stores    atomic.Int32
}

func newFakeCache() *fakeCache {
	return &fakeCache{Memory: cache.NewMemory(time.Hour, clock)}
}

func (f *fakeCache) Lookup(ctx context.Context, fp string) ([]quote.Quote, bool, error) {
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	return f.Memory.Lookup(ctx, fp)
}

func (f *fakeCache) Store(ctx context.Context, req quote.Request, quotes []quote.Quote) error {
	f.stores.Add(1)
	if f.storeErr != nil {
		return f.storeErr
	}
	return f.Memory.Store(ctx, req, quotes)
}

// recorder collects published events.
type recorder struct {
	events []events.Event
	mu     sync.Mutex
}

func (r *recorder) Publish(_ context.Context, _ string, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func TestRequestQuotesPartialFailure(t *testing.T) {
	tests := []struct {
		name    string
		healthy []bool
	}{
		{name: "all succeed", healthy: []bool{true, true, true}},
		{name: "middle fails", healthy: []bool{true, false, true}},
		{name: "first fails", healthy: []bool{false, true, true}},
		{name: "one of five", healthy: []bool{false, false, true, false, false}},
		{name: "all fail", healthy: []bool{false, false, false}},
		{name: "no providers", healthy: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				regs      []provider.Registration
				wantIDs   []string
				wantFails []int
			)
			for i, ok := range tt.healthy {
				id := fmt.Sprintf("p%d", i+1)
				var p provider.Provider = provider.Func(failing)
				if ok {
					p = &fixed{price: float64(100 + i), minDays: 2, maxDays: 4}
					wantIDs = append(wantIDs, id)
				} else {
					wantFails = append(wantFails, i+1)
				}
				regs = append(regs, reg(id, "Carrier "+id, p))
			}

			o := orchestrator.New(regs, nil, orchestrator.Options{Now: clock, Timeout: time.Second})
			res, err := o.RequestQuotes(context.Background(), request(false))
			require.NoError(t, err)

			var gotIDs []string
			for _, q := range res.Quotes {
				gotIDs = append(gotIDs, q.ProviderID)
			}
			var gotFails []int
			for _, m := range res.Messages {
				gotFails = append(gotFails, m.Position)
			}

			assert.Equal(t, wantIDs, gotIDs, "successes keep provider order")
			assert.Equal(t, wantFails, gotFails)
			assert.NotNil(t, res.Quotes)
			assert.NotNil(t, res.Messages)
			assert.Equal(t, len(wantIDs) == 0, res.Unavailable())
			assert.False(t, res.Cached)
		})
	}
}

func TestRequestQuotesTimeoutScenario(t *testing.T) {
	a := &fixed{price: 85, minDays: 3, maxDays: 4}
	b := &fixed{price: 90, minDays: 2, maxDays: 3}
	regs := []provider.Registration{
		reg("a", "Carrier A", a),
		reg("b", "Carrier B", b),
		reg("c", "Carrier C", hanging(t)),
	}
	o := orchestrator.New(regs, nil, orchestrator.Options{Now: clock, Timeout: 50 * time.Millisecond})

	start := time.Now()
	res, err := o.RequestQuotes(context.Background(), request(false))
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond, "aggregation must stop at the deadline")

	require.Len(t, res.Quotes, 2)
	assert.Equal(t, "a", res.Quotes[0].ProviderID)
	assert.Equal(t, "b", res.Quotes[1].ProviderID)
	assert.True(t, res.Quotes[0].IsCheapest)
	assert.False(t, res.Quotes[0].IsFastest)
	assert.False(t, res.Quotes[1].IsCheapest)
	assert.True(t, res.Quotes[1].IsFastest)

	require.Len(t, res.Messages, 1)
	assert.Equal(t, quote.ProviderMessage{
		Provider: "Carrier C",
		Message:  "Provider 3 is not available",
		Position: 3,
	}, res.Messages[0])
}

func TestRequestQuotesFragileSurcharge(t *testing.T) {
	regs := []provider.Registration{
		reg("a", "Carrier A", &fixed{price: 85, minDays: 3, maxDays: 4}),
		reg("b", "Carrier B", &fixed{price: 90, minDays: 2, maxDays: 3}),
	}

	plain, err := orchestrator.New(regs, nil, orchestrator.Options{Now: clock}).RequestQuotes(context.Background(), request(false))
	require.NoError(t, err)
	fragile, err := orchestrator.New(regs, nil, orchestrator.Options{Now: clock}).RequestQuotes(context.Background(), request(true))
	require.NoError(t, err)

	require.Len(t, plain.Quotes, 2)
	require.Len(t, fragile.Quotes, 2)
	for i := range plain.Quotes {
		assert.InDelta(t, plain.Quotes[i].Price*1.15, fragile.Quotes[i].Price, 1e-9)
	}
	assert.Equal(t, 85.0, plain.Quotes[0].Price)
}

func TestRequestQuotesStampsIdentityAndRevalidates(t *testing.T) {
	impostor := provider.Func(func(context.Context, float64, string) (quote.Quote, error) {
		return quote.Quote{ProviderID: "someone-else", ProviderName: "Other", Price: 50, MinDays: 1, MaxDays: 3, EstimatedDays: 99}, nil
	})
	free := provider.Func(func(context.Context, float64, string) (quote.Quote, error) {
		return quote.Quote{Price: 0, MinDays: 1, MaxDays: 2}, nil
	})
	panicky := provider.Func(func(context.Context, float64, string) (quote.Quote, error) {
		panic("nil map")
	})

	regs := []provider.Registration{
		reg("real", "Real Carrier", impostor),
		reg("free", "Free Carrier", free),
		reg("panic", "Panic Carrier", panicky),
	}
	res, err := orchestrator.New(regs, nil, orchestrator.Options{Now: clock}).RequestQuotes(context.Background(), request(false))
	require.NoError(t, err)

	require.Len(t, res.Quotes, 1)
	assert.Equal(t, "real", res.Quotes[0].ProviderID)
	assert.Equal(t, "Real Carrier", res.Quotes[0].ProviderName)
	assert.Equal(t, 2, res.Quotes[0].EstimatedDays)

	require.Len(t, res.Messages, 2)
	assert.Equal(t, 2, res.Messages[0].Position)
	assert.Equal(t, 3, res.Messages[1].Position)
}

func TestRequestQuotesValidation(t *testing.T) {
	p := &fixed{price: 10, minDays: 1, maxDays: 2}
	o := orchestrator.New([]provider.Registration{reg("a", "A", p)}, nil, orchestrator.Options{Now: clock})

	req := request(false)
	req.WeightKg = 1500
	_, err := o.RequestQuotes(context.Background(), req)

	require.Error(t, err)
	assert.True(t, errors.Is(err, quote.ErrInvalidRequest))
	var verr *quote.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "weightKg", verr.Field)
	assert.Zero(t, p.calls.Load(), "no dispatch for an invalid request")
}

func TestRequestQuotesCacheAside(t *testing.T) {
	t.Run("hit short-circuits the fan-out", func(t *testing.T) {
		p := &fixed{price: 10, minDays: 1, maxDays: 2}
		c := newFakeCache()
		req := request(false)
		stale := []quote.Quote{
			{ProviderID: "x", Price: 30, MinDays: 1, MaxDays: 1, EstimatedDays: 1, IsCheapest: true},
			{ProviderID: "y", Price: 20, MinDays: 4, MaxDays: 4, EstimatedDays: 4, IsFastest: true},
		}
		require.NoError(t, c.Memory.Store(context.Background(), req, stale))

		o := orchestrator.New([]provider.Registration{reg("a", "A", p)}, c, orchestrator.Options{Now: clock})
		res, err := o.RequestQuotes(context.Background(), req)
		require.NoError(t, err)

		assert.True(t, res.Cached)
		assert.Empty(t, res.Messages)
		assert.NotNil(t, res.Messages)
		assert.Zero(t, p.calls.Load())
		require.Len(t, res.Quotes, 2)
		assert.False(t, res.Quotes[0].IsCheapest, "badges are recomputed on read")
		assert.True(t, res.Quotes[0].IsFastest)
		assert.True(t, res.Quotes[1].IsCheapest)
	})

	t.Run("miss stores the computed set", func(t *testing.T) {
		p := &fixed{price: 10, minDays: 1, maxDays: 2}
		c := newFakeCache()
		o := orchestrator.New([]provider.Registration{reg("a", "A", p)}, c, orchestrator.Options{Now: clock})

		first, err := o.RequestQuotes(context.Background(), request(false))
		require.NoError(t, err)
		second, err := o.RequestQuotes(context.Background(), request(false))
		require.NoError(t, err)

		assert.False(t, first.Cached)
		assert.True(t, second.Cached)
		assert.Equal(t, first.Quotes, second.Quotes)
		assert.Equal(t, int32(1), p.calls.Load())
		assert.Equal(t, int32(1), c.stores.Load())
	})

	t.Run("empty set is never stored", func(t *testing.T) {
		c := newFakeCache()
		o := orchestrator.New([]provider.Registration{reg("a", "A", provider.Func(failing))}, c, orchestrator.Options{Now: clock})

		res, err := o.RequestQuotes(context.Background(), request(false))
		require.NoError(t, err)
		assert.True(t, res.Unavailable())
		assert.Zero(t, c.stores.Load())
		assert.Zero(t, c.Len())
	})

	t.Run("lookup failure falls through to providers", func(t *testing.T) {
		p := &fixed{price: 10, minDays: 1, maxDays: 2}
		c := newFakeCache()
		c.lookupErr = errors.New("connection refused")
		o := orchestrator.New([]provider.Registration{reg("a", "A", p)}, c, orchestrator.Options{Now: clock})

		res, err := o.RequestQuotes(context.Background(), request(false))
		require.NoError(t, err)
		assert.Len(t, res.Quotes, 1)
		assert.Equal(t, int32(1), p.calls.Load())
		assert.Equal(t, int32(1), c.stores.Load())
	})

	t.Run("store failure keeps the response", func(t *testing.T) {
		c := newFakeCache()
		c.storeErr = errors.New("disk full")
		o := orchestrator.New([]provider.Registration{reg("a", "A", &fixed{price: 10, minDays: 1, maxDays: 2})}, c, orchestrator.Options{Now: clock})

		res, err := o.RequestQuotes(context.Background(), request(false))
		require.NoError(t, err)
		require.Len(t, res.Quotes, 1)
		assert.True(t, res.Quotes[0].IsCheapest)
	})

	t.Run("fragile and plain requests are cached apart", func(t *testing.T) {
		p := &fixed{price: 100, minDays: 1, maxDays: 2}
		c := newFakeCache()
		o := orchestrator.New([]provider.Registration{reg("a", "A", p)}, c, orchestrator.Options{Now: clock})

		plain, err := o.RequestQuotes(context.Background(), request(false))
		require.NoError(t, err)
		fragile, err := o.RequestQuotes(context.Background(), request(true))
		require.NoError(t, err)

		assert.False(t, fragile.Cached)
		assert.InDelta(t, 115.0, fragile.Quotes[0].Price, 1e-9)
		assert.Equal(t, 100.0, plain.Quotes[0].Price)
		assert.Equal(t, 2, c.Len())
	})
}

func TestRequestQuotesCollapsesConcurrentMisses(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	gated := provider.Func(func(context.Context, float64, string) (quote.Quote, error) {
		calls.Add(1)
		<-release
		return quote.Quote{Price: 42, Currency: "EUR", MinDays: 1, MaxDays: 2}, nil
	})
	o := orchestrator.New([]provider.Registration{reg("a", "A", gated)}, newFakeCache(), orchestrator.Options{Now: clock})

	const callers = 8
	results := make([]quote.Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.RequestQuotes(context.Background(), request(false))
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results {
		require.Len(t, res.Quotes, 1)
		assert.Equal(t, 42.0, res.Quotes[0].Price)
	}

	// Callers must not share backing arrays.
	results[0].Quotes[0].Price = 1
	assert.Equal(t, 42.0, results[1].Quotes[0].Price)
}

func TestRequestQuotesCallerCancellation(t *testing.T) {
	o := orchestrator.New([]provider.Registration{reg("c", "C", hanging(t))}, nil, orchestrator.Options{Now: clock, Timeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := o.RequestQuotes(ctx, request(false))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// stalledCache never answers, whatever its context says, until the test ends.
type stalledCache struct {
	release chan struct{}
	lookups atomic.Int32
	stores  atomic.Int32
}

func newStalledCache(t *testing.T) *stalledCache {
	c := &stalledCache{release: make(chan struct{})}
	t.Cleanup(func() { close(c.release) })
	return c
}

func (c *stalledCache) Lookup(context.Context, string) ([]quote.Quote, bool, error) {
	c.lookups.Add(1)
	<-c.release
	return nil, false, nil
}

func (c *stalledCache) Store(context.Context, quote.Request, []quote.Quote) error {
	c.stores.Add(1)
	<-c.release
	return nil
}

// stalledPublisher blocks like a broker that is never reachable.
type stalledPublisher struct {
	release chan struct{}
	calls   atomic.Int32
}

func (p *stalledPublisher) Publish(context.Context, string, events.Event) error {
	p.calls.Add(1)
	<-p.release
	return nil
}

func (p *stalledPublisher) Close() error { return nil }

func TestRequestQuotesBoundsStalledDependencies(t *testing.T) {
	regs := []provider.Registration{
		reg("a", "Carrier A", &fixed{price: 85, minDays: 3, maxDays: 4}),
		reg("b", "Carrier B", provider.Func(failing)),
	}
	c := newStalledCache(t)
	pub := &stalledPublisher{release: make(chan struct{})}
	t.Cleanup(func() { close(pub.release) })

	o := orchestrator.New(regs, c, orchestrator.Options{
		Now:          clock,
		Timeout:      100 * time.Millisecond,
		CacheTimeout: 50 * time.Millisecond,
		Publisher:    pub,
	})

	start := time.Now()
	res, err := o.RequestQuotes(context.Background(), request(false))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, time.Second, "stalled cache or broker held the request")
	assert.False(t, res.Cached, "a lookup past its deadline is a miss")
	require.Len(t, res.Quotes, 1)
	assert.Equal(t, "a", res.Quotes[0].ProviderID)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, int32(1), c.lookups.Load())
	assert.Equal(t, int32(1), c.stores.Load())
	assert.Equal(t, int32(1), pub.calls.Load())
}

func TestRequestQuotesStalledLookupStillFansOut(t *testing.T) {
	a := &fixed{price: 85, minDays: 3, maxDays: 4}
	o := orchestrator.New([]provider.Registration{reg("a", "Carrier A", a)}, newStalledCache(t), orchestrator.Options{
		Now:          clock,
		Timeout:      100 * time.Millisecond,
		CacheTimeout: 20 * time.Millisecond,
	})

	for i := 0; i < 2; i++ {
		res, err := o.RequestQuotes(context.Background(), request(false))
		require.NoError(t, err)
		require.Len(t, res.Quotes, 1)
	}
	assert.Equal(t, int32(2), a.calls.Load())
}

func TestRequestQuotesPublishesEvent(t *testing.T) {
	rec := &recorder{}
	regs := []provider.Registration{
		reg("a", "Carrier A", &fixed{price: 85, minDays: 3, maxDays: 4}),
		reg("b", "Carrier B", &fixed{price: 90, minDays: 2, maxDays: 3}),
		reg("c", "Carrier C", provider.Func(failing)),
	}
	o := orchestrator.New(regs, newFakeCache(), orchestrator.Options{Now: clock, Publisher: rec})

	_, err := o.RequestQuotes(context.Background(), request(false))
	require.NoError(t, err)
	_, err = o.RequestQuotes(context.Background(), request(false))
	require.NoError(t, err)

	evs := rec.all()
	require.Len(t, evs, 1, "cache hits publish nothing")
	assert.Equal(t, events.TypeQuotesComputed, evs[0].Type)
	assert.Equal(t, testNow, evs[0].OccurredAt)

	data, ok := evs[0].Data.(events.QuotesComputed)
	require.True(t, ok)
	assert.Equal(t, 2, data.QuoteCount)
	assert.Equal(t, 1, data.MessageCount)
	assert.Equal(t, "a", data.CheapestID)
	assert.Equal(t, "b", data.FastestID)
	assert.Equal(t, request(false).Fingerprint(), data.Fingerprint)
}

func TestPartition(t *testing.T) {
	regs := []provider.Registration{
		reg("a", "A", provider.Func(failing)),
		reg("b", "B", provider.Func(failing)),
	}
	outcomes := []dispatch.Outcome[quote.Quote]{
		{Err: dispatch.ErrTimeout},
		{Value: quote.Quote{Price: 12, MinDays: 1, MaxDays: 1}},
	}

	res := orchestrator.Partition(regs, outcomes)
	require.Len(t, res.Quotes, 1)
	assert.Equal(t, "b", res.Quotes[0].ProviderID)
	assert.Equal(t, 1, res.Quotes[0].EstimatedDays)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "A", res.Messages[0].Provider)
	assert.Equal(t, "Provider 1 is not available", res.Messages[0].Message)
}

func TestProvidersReturnsCopy(t *testing.T) {
	regs := []provider.Registration{reg("a", "A", provider.Func(failing))}
	o := orchestrator.New(regs, nil, orchestrator.Options{})

	got := o.Providers()
	got[0].Name = "changed"
	assert.Equal(t, "A", o.Providers()[0].Name)
}
