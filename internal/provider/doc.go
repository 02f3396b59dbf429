// Package provider defines the carrier capability the quote engine fans out
// to, the explicit registration that names each carrier, and the two adapters
// shipped with the service.
//
// # Capability
//
// A Provider answers "what would it cost to ship weightKg to destination".
// Calls may be slow, may fail and may never return; callers are expected to
// bound them (see package dispatch). A Provider that also implements Prober
// offers a cheaper liveness check than a synthetic quote.
//
// # Identity
//
// Carriers never infer their own display name. Every Provider is registered
// with an ID and a Name, and the quote engine stamps that identity onto the
// quotes and messages it produces.
//
// # Adapters
//
// Tariff: in-process pricing formula
//   - Base fee plus per-kilogram rate, computed with decimal arithmetic
//   - Optional destination multiplier supplied by a route/zone collaborator
//   - Fixed transit range and transport mode
//
// HTTPCarrier: remote carrier over JSON/HTTP
//   - POST {base}/quote with {"weightKg", "destination"}
//   - GET {base}/health for probes
package provider
