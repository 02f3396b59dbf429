// Package orchestrator turns one quote request into a merged result from
// every configured provider.
//
// A request is validated, looked up in the cache and, on a miss, fanned out
// to all providers at once through [dispatch.FanOut]. Each provider call is
// bounded by its own timeout; a failure or timeout becomes a
// [quote.ProviderMessage] instead of an error. Successful quotes keep the
// configured provider order, get the fragile surcharge when requested and
// are badged before the non-empty set is written back to the cache.
//
//	request ──► validate ──► cache.Lookup ──hit──► badges ──► Result{Cached}
//	                              │
//	                             miss
//	                              ▼
//	               singleflight(fingerprint)
//	                              │
//	         ┌────────────┬───────┴─────┬────────────┐
//	         ▼            ▼             ▼            ▼
//	    provider 1   provider 2   ...  provider N   (each under timeout)
//	         └────────────┴───────┬─────┴────────────┘
//	                              ▼
//	        partition ──► surcharge ──► badges ──► cache.Store ──► publish
//
// Only validation errors and caller cancellation are returned as errors.
// Every cache and broker call runs under Options.CacheTimeout; a failure or
// a missed deadline is logged and otherwise ignored, and a lookup that does
// not answer in time is treated as a miss.
package orchestrator
