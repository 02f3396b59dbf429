package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dreamware/shipquote/internal/quote"
)

// MultiplierFunc returns the price multiplier for a destination. It stands in
// for route distance or zone lookups that live outside the quote engine.
type MultiplierFunc func(ctx context.Context, destination string) (float64, error)

// ZoneMultiplier returns a MultiplierFunc backed by a static zone table.
// Destinations are matched case-insensitively; unknown ones get fallback.
func ZoneMultiplier(zones map[string]float64, fallback float64) MultiplierFunc {
	table := make(map[string]float64, len(zones))
	for dest, m := range zones {
		table[strings.ToLower(strings.TrimSpace(dest))] = m
	}
	return func(_ context.Context, destination string) (float64, error) {
		if m, ok := table[strings.ToLower(strings.TrimSpace(destination))]; ok {
			return m, nil
		}
		return fallback, nil
	}
}

// Tariff prices a shipment as (BaseFee + PerKg × weight) × multiplier,
// rounded to cents.
type Tariff struct {
	BaseFee    decimal.Decimal
	PerKg      decimal.Decimal
	Multiplier MultiplierFunc // nil means 1
	Currency   string
	Mode       string
	MinDays    int
	MaxDays    int
}

// Quote implements Provider.
func (t *Tariff) Quote(ctx context.Context, weightKg float64, destination string) (quote.Quote, error) {
	if err := ctx.Err(); err != nil {
		return quote.Quote{}, err
	}

	price := t.BaseFee.Add(t.PerKg.Mul(decimal.NewFromFloat(weightKg)))
	if t.Multiplier != nil {
		m, err := t.Multiplier(ctx, destination)
		if err != nil {
			return quote.Quote{}, fmt.Errorf("price multiplier for %q: %w", destination, err)
		}
		price = price.Mul(decimal.NewFromFloat(m))
	}

	amount, _ := price.Round(2).Float64()
	return quote.NewQuote("", "", amount, t.Currency, t.MinDays, t.MaxDays, t.Mode)
}
