package blobstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pountzas/plix/internal/media"
)

var (
	// ErrUnavailable reports that the backing storage could not serve the
	// request. Callers treat it as a soft failure and continue without a
	// playable blob.
	ErrUnavailable = errors.New("blob storage unavailable")

	// ErrNotFound reports that no blob exists for the requested identity.
	ErrNotFound = errors.New("blob not found")
)

//go:embed schema.sql
var schemaSQL string

const urlScheme = "plix://blob/"

// Entry describes one stored blob. ObjectURL is only set on reads and is
// valid for the lifetime of the process that minted it.
type Entry struct {
	BlobID       string
	Identity     string
	FileName     string
	LastModified time.Time
	Size         int64
	ObjectURL    string
}

// Store is a SQLite-backed blob store with a process-local URL registry.
type Store struct {
	db   *sql.DB
	path string

	urlMu sync.Mutex
	urls  map[string]string
}

// Open connects to the blob database at path, creating it and applying the
// schema when missing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: apply pragma %q: %v", ErrUnavailable, pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", ErrUnavailable, err)
	}

	return &Store{db: db, path: path, urls: make(map[string]string)}, nil
}

// Close closes the database connection and invalidates all minted URLs.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.urlMu.Lock()
	s.urls = make(map[string]string)
	s.urlMu.Unlock()
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Put stores the payload for a file, keyed by its identity. Re-storing the
// same identity replaces the payload but keeps the original blob ID, so the
// operation is idempotent from the caller's point of view.
func (s *Store) Put(ctx context.Context, file media.RawFile, data []byte) (Entry, error) {
	identity := file.Identity()

	blobID, err := s.lookupBlobID(ctx, identity)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Entry{}, err
	}
	if blobID == "" {
		blobID = uuid.NewString()
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO blobs (identity, blob_id, file_name, last_modified, size, data, stored_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(identity) DO UPDATE SET
             file_name = excluded.file_name,
             last_modified = excluded.last_modified,
             size = excluded.size,
             data = excluded.data,
             stored_at = excluded.stored_at`,
		identity,
		blobID,
		file.Name,
		file.LastModified.UnixMilli(),
		int64(len(data)),
		data,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: store blob %s: %v", ErrUnavailable, file.Name, err)
	}

	return Entry{
		BlobID:       blobID,
		Identity:     identity,
		FileName:     file.Name,
		LastModified: file.LastModified,
		Size:         int64(len(data)),
	}, nil
}

// Get returns the entry for an identity with a freshly minted object URL.
// Every call mints a new URL; previously issued URLs stay resolvable until
// the store is closed.
func (s *Store) Get(ctx context.Context, identity string) (Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT blob_id, file_name, last_modified, size FROM blobs WHERE identity = ?`,
		identity,
	)
	entry, err := scanEntry(row, identity)
	if err != nil {
		return Entry{}, err
	}
	entry.ObjectURL = s.mintURL(identity)
	return entry, nil
}

// GetAll returns every stored entry, each with a fresh object URL, ordered
// by file name.
func (s *Store) GetAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT identity, blob_id, file_name, last_modified, size FROM blobs ORDER BY file_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list blobs: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			identity   string
			blobID     string
			fileName   string
			modifiedMs int64
			size       int64
		)
		if err := rows.Scan(&identity, &blobID, &fileName, &modifiedMs, &size); err != nil {
			return nil, fmt.Errorf("%w: scan blob row: %v", ErrUnavailable, err)
		}
		entries = append(entries, Entry{
			BlobID:       blobID,
			Identity:     identity,
			FileName:     fileName,
			LastModified: time.UnixMilli(modifiedMs),
			Size:         size,
			ObjectURL:    s.mintURL(identity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate blobs: %v", ErrUnavailable, err)
	}
	return entries, nil
}

// Delete removes the blob for an identity. Deleting an absent identity is
// not an error.
func (s *Store) Delete(ctx context.Context, identity string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE identity = ?`, identity); err != nil {
		return fmt.Errorf("%w: delete blob: %v", ErrUnavailable, err)
	}
	return nil
}

// Clear removes every blob and drops all minted URLs.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs`); err != nil {
		return fmt.Errorf("%w: clear blobs: %v", ErrUnavailable, err)
	}
	s.urlMu.Lock()
	s.urls = make(map[string]string)
	s.urlMu.Unlock()
	return nil
}

// Stats returns the number of stored blobs and their combined payload size.
func (s *Store) Stats(ctx context.Context) (count int64, totalBytes int64, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(size), 0) FROM blobs`)
	if err := row.Scan(&count, &totalBytes); err != nil {
		return 0, 0, fmt.Errorf("%w: blob stats: %v", ErrUnavailable, err)
	}
	return count, totalBytes, nil
}

// ResolveURL returns the payload behind an object URL minted by this store
// instance. URLs from a previous process resolve to ErrNotFound.
func (s *Store) ResolveURL(ctx context.Context, objectURL string) ([]byte, error) {
	if !strings.HasPrefix(objectURL, urlScheme) {
		return nil, fmt.Errorf("%w: unrecognized url %q", ErrNotFound, objectURL)
	}

	s.urlMu.Lock()
	identity, ok := s.urls[objectURL]
	s.urlMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: stale url %q", ErrNotFound, objectURL)
	}

	var data []byte
	row := s.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE identity = ?`, identity)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: identity %s", ErrNotFound, identity)
		}
		return nil, fmt.Errorf("%w: read blob payload: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (s *Store) mintURL(identity string) string {
	url := urlScheme + uuid.NewString()
	s.urlMu.Lock()
	s.urls[url] = identity
	s.urlMu.Unlock()
	return url
}

func (s *Store) lookupBlobID(ctx context.Context, identity string) (string, error) {
	var blobID string
	row := s.db.QueryRowContext(ctx, `SELECT blob_id FROM blobs WHERE identity = ?`, identity)
	if err := row.Scan(&blobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: lookup blob id: %v", ErrUnavailable, err)
	}
	return blobID, nil
}

func scanEntry(row *sql.Row, identity string) (Entry, error) {
	var (
		blobID     string
		fileName   string
		modifiedMs int64
		size       int64
	)
	if err := row.Scan(&blobID, &fileName, &modifiedMs, &size); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: identity %s", ErrNotFound, identity)
		}
		return Entry{}, fmt.Errorf("%w: read blob entry: %v", ErrUnavailable, err)
	}
	return Entry{
		BlobID:       blobID,
		Identity:     identity,
		FileName:     fileName,
		LastModified: time.UnixMilli(modifiedMs),
		Size:         size,
	}, nil
}
