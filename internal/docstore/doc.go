// Package docstore is a SQLite-backed document database organized as
// owner/collection/document paths. The library gateway layers validation,
// caching, and soft-delete semantics on top of it.
package docstore
