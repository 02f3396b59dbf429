// Package health reports whether the configured carrier providers can be
// reached.
//
// A check sends one synthetic probe to every provider at the same time,
// each bounded by its own timeout, and reduces the outcomes to a
// SystemStatus:
//
//	all providers online   -> ONLINE
//	no provider online     -> OFFLINE (also when none are configured)
//	anything in between    -> DEGRADED
//
// Every call to [Monitor.Check] runs a fresh fan-out; nothing is cached
// between checks. [Monitor.Start] runs checks on a ticker for callers that
// want a periodic signal, logging and publishing verdict transitions.
//
// Probe Selection:
//
// Providers implementing [provider.Prober] are asked through their Probe
// method (for remote carriers a GET on /health). All others receive a
// minimal quote call for 1 kg to the HEALTHCHECK destination.
//
// Response Times:
//
// Elapsed probe time is floored to MinResponseTime (50ms by default) so an
// in-process provider does not report an implausible near-zero latency.
package health
