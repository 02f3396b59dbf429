// Package events publishes domain events about quote computation and
// provider health. Publishing is best-effort: callers log failures and
// carry on.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeQuotesComputed = "quotes.computed"
	TypeStatusChanged  = "status.changed"
)

// Event is the envelope written to the broker.
type Event struct {
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
	ID         string    `json:"id"`
	Type       string    `json:"type"`
}

// New returns an event of the given type with a fresh id.
func New(typ string, at time.Time, data any) Event {
	return Event{ID: uuid.NewString(), Type: typ, OccurredAt: at, Data: data}
}

// QuotesComputed is emitted after a fan-out produced a result.
type QuotesComputed struct {
	Fingerprint  string  `json:"fingerprint"`
	Origin       string  `json:"origin"`
	Destination  string  `json:"destination"`
	CheapestID   string  `json:"cheapestId,omitempty"`
	FastestID    string  `json:"fastestId,omitempty"`
	WeightKg     float64 `json:"weightKg"`
	QuoteCount   int     `json:"quoteCount"`
	MessageCount int     `json:"messageCount"`
}

// StatusChanged is emitted when the system health verdict changes.
type StatusChanged struct {
	From        string `json:"from"`
	To          string `json:"to"`
	ActiveCount int    `json:"activeCount"`
	TotalCount  int    `json:"totalCount"`
}

// Publisher writes events keyed for partitioning.
type Publisher interface {
	Publish(ctx context.Context, key string, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
func (Nop) Close() error                                 { return nil }
