package quote

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MinWeightKg is the lightest parcel accepted for quoting.
	MinWeightKg = 0.1
	// MaxWeightKg is the heaviest parcel accepted for quoting.
	MaxWeightKg = 1000.0
	// MaxPickupDays is how far ahead of today a pickup may be scheduled.
	MaxPickupDays = 30

	// DateLayout is the wire and fingerprint format of a pickup date.
	DateLayout = "2006-01-02"
)

// ErrInvalidRequest is matched by every *ValidationError.
var ErrInvalidRequest = errors.New("invalid quote request")

// ValidationError reports the first request field that failed validation.
type ValidationError struct {
	Field  string // JSON name of the field, e.g. "weightKg"
	Value  any    // the rejected value as supplied
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidRequest.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Request is a validated quote request. Build it with NewRequest; the zero
// value is not valid.
type Request struct {
	PickupDate  time.Time `json:"pickupDate"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	WeightKg    float64   `json:"weightKg"`
	Fragile     bool      `json:"fragile"`
}

// NewRequest trims origin and destination and validates every field against
// now. It returns a *ValidationError for the first field out of range.
//
// Example:
//
//	req, err := quote.NewRequest("Lisbon", "Porto", 12.5, pickup, false, time.Now())
//	if errors.Is(err, quote.ErrInvalidRequest) {
//	    // 400 to the caller
//	}
func NewRequest(origin, destination string, weightKg float64, pickupDate time.Time, fragile bool, now time.Time) (Request, error) {
	req := Request{
		Origin:      strings.TrimSpace(origin),
		Destination: strings.TrimSpace(destination),
		WeightKg:    weightKg,
		PickupDate:  pickupDate,
		Fragile:     fragile,
	}
	if err := req.Validate(now); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks the request against now without modifying it.
// Fields are checked in the order origin, destination, weight, pickup date.
func (r Request) Validate(now time.Time) error {
	if strings.TrimSpace(r.Origin) == "" {
		return &ValidationError{Field: "origin", Value: r.Origin, Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.Destination) == "" {
		return &ValidationError{Field: "destination", Value: r.Destination, Reason: "must not be empty"}
	}
	// Written so that NaN fails too.
	if !(r.WeightKg >= MinWeightKg && r.WeightKg <= MaxWeightKg) {
		return &ValidationError{
			Field:  "weightKg",
			Value:  r.WeightKg,
			Reason: fmt.Sprintf("must be between %g and %g kg", MinWeightKg, MaxWeightKg),
		}
	}
	if r.PickupDate.IsZero() {
		return &ValidationError{Field: "pickupDate", Value: "", Reason: "is required"}
	}

	today := civilDay(now)
	pickup := r.PickupDay()
	if pickup.Before(today) {
		return &ValidationError{Field: "pickupDate", Value: r.PickupDate.Format(DateLayout), Reason: "must not be in the past"}
	}
	if pickup.After(today.AddDate(0, 0, MaxPickupDays)) {
		return &ValidationError{
			Field:  "pickupDate",
			Value:  r.PickupDate.Format(DateLayout),
			Reason: fmt.Sprintf("must be within %d days", MaxPickupDays),
		}
	}
	return nil
}

// PickupDay returns the calendar date of PickupDate, as written in its own
// location, at midnight UTC. Validate, Fingerprint and persistent stores all
// use this value.
func (r Request) PickupDay() time.Time {
	return civilDay(r.PickupDate)
}

// Fingerprint returns the cache key of the request. Requests that differ only
// in surrounding whitespace or letter case of origin and destination share a
// fingerprint; any other difference yields a different one.
func (r Request) Fingerprint() string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(r.Origin)),
		strings.ToLower(strings.TrimSpace(r.Destination)),
		strconv.FormatFloat(r.WeightKg, 'f', -1, 64),
		r.PickupDay().Format(DateLayout),
		strconv.FormatBool(r.Fragile),
	}
	h := sha256.New()
	for _, p := range parts {
		// Length-prefixed: no field value can spill into the next one.
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return "quote:" + hex.EncodeToString(h.Sum(nil))
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
