package provider

import (
	"context"
	"errors"

	"github.com/dreamware/shipquote/internal/quote"
)

// ProbeDestination and ProbeWeightKg form the synthetic request used to
// probe carriers that do not implement Prober.
const (
	ProbeDestination = "HEALTHCHECK"
	ProbeWeightKg    = 1.0
)

// ErrUnavailable is returned by adapters when a carrier refuses service.
var ErrUnavailable = errors.New("carrier unavailable")

// Provider computes a price quote for one carrier.
type Provider interface {
	Quote(ctx context.Context, weightKg float64, destination string) (quote.Quote, error)
}

// Prober is implemented by providers with a dedicated liveness check.
type Prober interface {
	Probe(ctx context.Context) error
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, weightKg float64, destination string) (quote.Quote, error)

// Quote calls f.
func (f Func) Quote(ctx context.Context, weightKg float64, destination string) (quote.Quote, error) {
	return f(ctx, weightKg, destination)
}

// Probe checks that p answers. It prefers p's own Prober and otherwise asks
// for a minimal synthetic quote whose result is discarded.
func Probe(ctx context.Context, p Provider) error {
	if prober, ok := p.(Prober); ok {
		return prober.Probe(ctx)
	}
	_, err := p.Quote(ctx, ProbeWeightKg, ProbeDestination)
	return err
}
