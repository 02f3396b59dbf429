package quote

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// FragileSurcharge is the multiplier applied once to every quote of a
// fragile request.
const FragileSurcharge = 1.15

// ErrInvalidQuote is returned by NewQuote for a price or transit range that
// cannot describe a real offer.
var ErrInvalidQuote = errors.New("invalid quote")

// Quote is one carrier's answer to a Request.
type Quote struct {
	ProviderID    string  `json:"providerId"`
	ProviderName  string  `json:"providerName"`
	Currency      string  `json:"currency"`
	TransportMode string  `json:"transportMode"`
	Price         float64 `json:"price"`
	MinDays       int     `json:"minDays"`
	MaxDays       int     `json:"maxDays"`
	EstimatedDays int     `json:"estimatedDays"`
	IsCheapest    bool    `json:"isCheapest"`
	IsFastest     bool    `json:"isFastest"`
}

// NewQuote builds a Quote and derives EstimatedDays from the transit range.
func NewQuote(providerID, providerName string, price float64, currency string, minDays, maxDays int, mode string) (Quote, error) {
	if !(price > 0) {
		return Quote{}, fmt.Errorf("%w: price %v must be positive", ErrInvalidQuote, price)
	}
	if minDays < 0 || minDays > maxDays {
		return Quote{}, fmt.Errorf("%w: transit range %d-%d", ErrInvalidQuote, minDays, maxDays)
	}
	return Quote{
		ProviderID:    providerID,
		ProviderName:  providerName,
		Price:         price,
		Currency:      currency,
		MinDays:       minDays,
		MaxDays:       maxDays,
		TransportMode: mode,
		EstimatedDays: roundDays(minDays, maxDays),
	}, nil
}

// roundDays rounds the midpoint of the transit range half away from zero.
func roundDays(minDays, maxDays int) int {
	return int(math.Round(float64(minDays+maxDays) / 2))
}

// ProviderMessage tells the caller that one carrier could not answer.
type ProviderMessage struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
	Position int    `json:"position"` // 1-based index in the configured provider list
}

// UnavailableMessage builds the message for the provider at 1-based position.
func UnavailableMessage(name string, position int) ProviderMessage {
	label := name
	if label == "" {
		label = fmt.Sprintf("Provider %d", position)
	}
	return ProviderMessage{
		Provider: label,
		Position: position,
		Message:  fmt.Sprintf("Provider %d is not available", position),
	}
}

// Result is what a quote request produces. An empty Quotes slice means no
// carrier could answer; Messages explains which ones failed.
type Result struct {
	ComputedAt time.Time         `json:"computedAt"`
	Quotes     []Quote           `json:"quotes"`
	Messages   []ProviderMessage `json:"messages"`
	Cached     bool              `json:"cached"`
}

// Unavailable reports whether no carrier produced a quote.
func (r Result) Unavailable() bool {
	return len(r.Quotes) == 0
}

// ApplyFragileSurcharge multiplies every price by FragileSurcharge in place.
func ApplyFragileSurcharge(quotes []Quote) {
	for i := range quotes {
		quotes[i].Price *= FragileSurcharge
	}
}
