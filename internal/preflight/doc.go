// Package preflight runs environment checks before an ingest: directory
// access, metadata API reachability, and notification topic configuration.
package preflight
