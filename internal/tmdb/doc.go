// Package tmdb is the rate-limited client for the external metadata
// catalog. All requests flow through one shared throttle gate, and failures
// are classified into auth, throttled, and transport kinds so callers can
// react differently to each.
package tmdb
