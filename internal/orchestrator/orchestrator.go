package orchestrator

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/singleflight"

	"github.com/dreamware/shipquote/internal/cache"
	"github.com/dreamware/shipquote/internal/dispatch"
	"github.com/dreamware/shipquote/internal/events"
	"github.com/dreamware/shipquote/internal/provider"
	"github.com/dreamware/shipquote/internal/quote"
)

const (
	// DefaultTimeout bounds each provider call when Options.Timeout is zero.
	DefaultTimeout = 5 * time.Second
	// DefaultCacheTimeout bounds each cache lookup, cache store and event
	// publish when Options.CacheTimeout is zero.
	DefaultCacheTimeout = time.Second
)

// Options configures an Orchestrator. The zero value is usable.
type Options struct {
	Publisher events.Publisher // nil publishes nothing
	Now       func() time.Time // nil means time.Now
	Timeout   time.Duration    // per-provider deadline, DefaultTimeout if zero

	// CacheTimeout is the deadline of every cache and publisher call,
	// DefaultCacheTimeout if zero. A lookup that misses it is a miss.
	CacheTimeout time.Duration
}

// Orchestrator aggregates quotes from a fixed provider list.
type Orchestrator struct {
	cache     cache.Cache
	publisher events.Publisher
	now       func() time.Time
	group     singleflight.Group
	regs      []provider.Registration
	timeout   time.Duration
	ioTimeout time.Duration
}

// New returns an orchestrator over regs. A nil cache disables caching.
// The registration slice is copied and never modified.
func New(regs []provider.Registration, c cache.Cache, opts Options) *Orchestrator {
	o := &Orchestrator{
		regs:      slices.Clone(regs),
		cache:     c,
		publisher: opts.Publisher,
		now:       opts.Now,
		timeout:   opts.Timeout,
		ioTimeout: opts.CacheTimeout,
	}
	if o.publisher == nil {
		o.publisher = events.Nop{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	if o.ioTimeout <= 0 {
		o.ioTimeout = DefaultCacheTimeout
	}
	return o
}

// Providers returns the configured registrations in order.
func (o *Orchestrator) Providers() []provider.Registration {
	return slices.Clone(o.regs)
}

// RequestQuotes validates req and returns quotes from the cache or from a
// fresh fan-out. An empty Quotes slice means no provider could answer; it is
// not an error.
//
// The returned error is a *quote.ValidationError for a bad request, or the
// context error when ctx ends before the result is ready.
func (o *Orchestrator) RequestQuotes(ctx context.Context, req quote.Request) (quote.Result, error) {
	if err := req.Validate(o.now()); err != nil {
		return quote.Result{}, err
	}
	fp := req.Fingerprint()

	if cached, ok := o.lookup(ctx, fp); ok {
		return quote.Result{
			Quotes:     quote.AssignBadges(cached),
			Messages:   []quote.ProviderMessage{},
			Cached:     true,
			ComputedAt: o.now(),
		}, nil
	}

	// Concurrent misses for the same fingerprint share one fan-out. The
	// flight outlives any single caller so it runs on a detached context.
	ch := o.group.DoChan(fp, func() (any, error) {
		return o.compute(context.WithoutCancel(ctx), req, fp), nil
	})

	select {
	case res := <-ch:
		return cloneResult(res.Val.(quote.Result)), nil
	case <-ctx.Done():
		return quote.Result{}, ctx.Err()
	}
}

func (o *Orchestrator) lookup(ctx context.Context, fp string) ([]quote.Quote, bool) {
	if o.cache == nil {
		return nil, false
	}
	out := dispatch.Call(ctx, o.ioTimeout, func(ctx context.Context) (cachedSet, error) {
		quotes, ok, err := o.cache.Lookup(ctx, fp)
		return cachedSet{quotes: quotes, ok: ok}, err
	})
	if out.Err != nil {
		log.Errorf("cache lookup %s failed, fetching from providers: %v", fp, out.Err)
		return nil, false
	}
	if !out.Value.ok || len(out.Value.quotes) == 0 {
		return nil, false
	}
	return out.Value.quotes, true
}

type cachedSet struct {
	quotes []quote.Quote
	ok     bool
}

func (o *Orchestrator) compute(ctx context.Context, req quote.Request, fp string) quote.Result {
	outcomes := dispatch.FanOut(ctx, len(o.regs), o.timeout, func(ctx context.Context, i int) (quote.Quote, error) {
		return o.regs[i].Provider.Quote(ctx, req.WeightKg, req.Destination)
	})

	res := Partition(o.regs, outcomes)
	if req.Fragile {
		quote.ApplyFragileSurcharge(res.Quotes)
	}
	res.Quotes = quote.AssignBadges(res.Quotes)
	res.ComputedAt = o.now()

	if len(res.Quotes) > 0 && o.cache != nil {
		stored := slices.Clone(res.Quotes)
		out := dispatch.Call(ctx, o.ioTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, o.cache.Store(ctx, req, stored)
		})
		if out.Err != nil {
			log.Errorf("cache store %s failed: %v", fp, out.Err)
		}
	}
	o.publish(ctx, req, fp, res)

	return res
}

func (o *Orchestrator) publish(ctx context.Context, req quote.Request, fp string, res quote.Result) {
	data := events.QuotesComputed{
		Fingerprint:  fp,
		Origin:       req.Origin,
		Destination:  req.Destination,
		WeightKg:     req.WeightKg,
		QuoteCount:   len(res.Quotes),
		MessageCount: len(res.Messages),
	}
	for _, q := range res.Quotes {
		if q.IsCheapest && data.CheapestID == "" {
			data.CheapestID = q.ProviderID
		}
		if q.IsFastest && data.FastestID == "" {
			data.FastestID = q.ProviderID
		}
	}
	ev := events.New(events.TypeQuotesComputed, res.ComputedAt, data)
	out := dispatch.Call(ctx, o.ioTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.publisher.Publish(ctx, fp, ev)
	})
	if out.Err != nil {
		log.Warnf("publish %s: %v", events.TypeQuotesComputed, out.Err)
	}
}

// Partition splits fan-out outcomes into quotes and messages. outcomes[i]
// must belong to regs[i]. Quotes are stamped with the registration identity
// and re-validated; an invalid quote counts as a failure.
func Partition(regs []provider.Registration, outcomes []dispatch.Outcome[quote.Quote]) quote.Result {
	res := quote.Result{
		Quotes:   make([]quote.Quote, 0, len(outcomes)),
		Messages: []quote.ProviderMessage{},
	}
	for i, out := range outcomes {
		reg := regs[i]
		err := out.Err
		if err == nil {
			var q quote.Quote
			q, err = quote.NewQuote(reg.ID, reg.Name, out.Value.Price, out.Value.Currency,
				out.Value.MinDays, out.Value.MaxDays, out.Value.TransportMode)
			if err == nil {
				res.Quotes = append(res.Quotes, q)
				continue
			}
		}
		log.Warnf("provider %s (%s) failed after %s: %v", reg.Name, reg.ID, out.Elapsed.Round(time.Millisecond), err)
		res.Messages = append(res.Messages, quote.UnavailableMessage(reg.Name, i+1))
	}
	return res
}

func cloneResult(r quote.Result) quote.Result {
	r.Quotes = slices.Clone(r.Quotes)
	r.Messages = slices.Clone(r.Messages)
	return r
}

