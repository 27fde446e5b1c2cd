package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound reports that no document exists at the requested path.
var ErrNotFound = errors.New("document not found")

// Document is one stored record at owner/collection/doc_id.
type Document struct {
	Owner      string
	Collection string
	DocID      string
	Payload    []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Deleted    bool
}

// Store manages document persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the document database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open document db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SetClock overrides the timestamp source. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Put writes one document, preserving created_at when the path already
// exists. A write to a soft-deleted document revives it.
func (s *Store) Put(ctx context.Context, owner, collection, docID string, payload []byte) error {
	return s.PutBatch(ctx, owner, collection, map[string][]byte{docID: payload})
}

// PutBatch writes every document in one transaction. Either all writes land
// or none do.
func (s *Store) PutBatch(ctx context.Context, owner, collection string, payloads map[string][]byte) error {
	if len(payloads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	timestamp := s.now().UTC().Format(time.RFC3339Nano)
	for docID, payload := range payloads {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO documents (owner, collection, doc_id, payload, created_at, updated_at, deleted)
             VALUES (?, ?, ?, ?, ?, ?, 0)
             ON CONFLICT(owner, collection, doc_id) DO UPDATE SET
                 payload = excluded.payload,
                 updated_at = excluded.updated_at,
                 deleted = 0`,
			owner,
			collection,
			docID,
			string(payload),
			timestamp,
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("write document %s/%s/%s: %w", owner, collection, docID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Get fetches a single document, deleted or not.
func (s *Store) Get(ctx context.Context, owner, collection, docID string) (Document, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT payload, created_at, updated_at, deleted
         FROM documents WHERE owner = ? AND collection = ? AND doc_id = ?`,
		owner, collection, docID,
	)

	var (
		payload    string
		createdRaw string
		updatedRaw string
		deleted    int
	)
	if err := row.Scan(&payload, &createdRaw, &updatedRaw, &deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get document: %w", err)
	}

	doc := Document{
		Owner:      owner,
		Collection: collection,
		DocID:      docID,
		Payload:    []byte(payload),
		Deleted:    deleted != 0,
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdRaw)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedRaw)
	return doc, nil
}

// List returns every document in a collection, including soft-deleted ones,
// ordered by document ID. Filtering deleted entries is the caller's job.
func (s *Store) List(ctx context.Context, owner, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT doc_id, payload, created_at, updated_at, deleted
         FROM documents WHERE owner = ? AND collection = ? ORDER BY doc_id`,
		owner, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			docID      string
			payload    string
			createdRaw string
			updatedRaw string
			deleted    int
		)
		if err := rows.Scan(&docID, &payload, &createdRaw, &updatedRaw, &deleted); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc := Document{
			Owner:      owner,
			Collection: collection,
			DocID:      docID,
			Payload:    []byte(payload),
			Deleted:    deleted != 0,
		}
		doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdRaw)
		doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedRaw)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// MarkDeleted soft-deletes a document. The row stays in place with its
// payload intact so the delete can be audited or undone.
func (s *Store) MarkDeleted(ctx context.Context, owner, collection, docID string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE documents SET deleted = 1, updated_at = ? WHERE owner = ? AND collection = ? AND doc_id = ?`,
		s.now().UTC().Format(time.RFC3339Nano),
		owner, collection, docID,
	)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
