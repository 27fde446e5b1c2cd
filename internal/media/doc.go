// Package media defines the library's canonical data model: raw input
// files, identified movie and episode records, and the in-memory
// collection the ingestion pipeline reconciles against.
package media
