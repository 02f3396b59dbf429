// Package quote holds the value types that flow through a shipping-quote
// request: the validated Request, the per-carrier Quote, the ProviderMessage
// emitted for every carrier that could not answer, and the Result that folds
// both together.
//
// # Request lifecycle
//
//	NewRequest ──► Request (immutable, validated)
//	                 │
//	                 ├── Fingerprint() ──► cache key
//	                 │
//	                 ▼
//	          fan-out to carriers ──► []Quote + []ProviderMessage
//	                 │
//	                 ├── ApplyFragileSurcharge (fragile requests only)
//	                 └── AssignBadges (cheapest / fastest)
//
// # Validation
//
// A Request is never clamped into range. NewRequest and Request.Validate
// return a *ValidationError that names the offending field and the rejected
// value; every such error matches ErrInvalidRequest with errors.Is.
//
// Limits:
//   - origin, destination: non-empty after trimming
//   - weight: 0.1 kg to 1000 kg inclusive
//   - pickup date: today to today+30 days inclusive, by calendar day
//
// # Badges
//
// Badges are derived over a whole result set. AssignBadges resets both flags
// before marking, so running it twice yields the same flags, and every quote
// tied on the minimum price (or minimum estimated days) is marked.
package quote
