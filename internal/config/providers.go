package config

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dreamware/shipquote/internal/provider"
)

// BuildRegistry turns the provider list into a registry in configuration
// order.
func (c Config) BuildRegistry() (*provider.Registry, error) {
	reg := provider.NewRegistry()
	for _, p := range c.Providers {
		if err := reg.Register(provider.Registration{ID: p.ID, Name: p.Name, Provider: p.build()}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (p ProviderConfig) build() provider.Provider {
	if p.Kind == KindHTTP {
		var client *http.Client
		if p.Timeout > 0 {
			client = &http.Client{Timeout: p.Timeout}
		}
		return provider.NewHTTPCarrier(p.URL, client)
	}

	fallback := p.DefaultMultiplier
	if fallback == 0 {
		fallback = 1
	}
	currency := p.Currency
	if currency == "" {
		currency = "EUR"
	}
	t := &provider.Tariff{
		BaseFee:  decimal.NewFromFloat(p.BaseFee),
		PerKg:    decimal.NewFromFloat(p.PerKg),
		Currency: currency,
		Mode:     p.Mode,
		MinDays:  p.MinDays,
		MaxDays:  p.MaxDays,
	}
	if len(p.Zones) > 0 || fallback != 1 {
		t.Multiplier = provider.ZoneMultiplier(p.Zones, fallback)
	}
	return t
}
