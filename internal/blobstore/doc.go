// Package blobstore persists local video file payloads in SQLite, keyed by
// the file identity (name plus last-modified timestamp). Object URLs handed
// out for playback are process-local tokens: they die with the process and
// are re-minted on every read.
package blobstore
