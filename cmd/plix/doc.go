// Command plix is the CLI for the personal media library: it ingests local
// video files, identifies them against the metadata catalog, and manages the
// resulting collection.
package main
