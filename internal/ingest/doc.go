// Package ingest orchestrates the pipeline run: it fans local video files
// out to the identification resolver, reconciles the matches against the
// owner's collection, stores playable blobs, and lands the surviving records
// in the library as one batch.
package ingest
