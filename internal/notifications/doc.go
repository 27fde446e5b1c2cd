// Package notifications publishes ingest progress and failure alerts to an
// ntfy topic. Without a configured topic every notification is a no-op.
package notifications
