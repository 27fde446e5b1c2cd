package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pountzas/plix/internal/docstore"
	"github.com/pountzas/plix/internal/media"
)

var (
	// ErrValidation reports that no record in a batch passed the write
	// gate, or that a required argument was missing.
	ErrValidation = errors.New("record validation failed")

	// ErrPersistence reports that the document store rejected a write.
	ErrPersistence = errors.New("persistence failed")
)

const (
	collectionMovies  = "movies"
	collectionTVShows = "tvshows"

	defaultCacheTTL = 5 * time.Minute
)

type cacheEntry struct {
	records   []media.Record
	fetchedAt time.Time
}

// Gateway mediates all library reads and writes for one document store.
type Gateway struct {
	store  *docstore.Store
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCacheTTL overrides the read-cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClock overrides the timestamp source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New builds a Gateway over the given document store.
func New(store *docstore.Store, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		store:  store,
		logger: logger.With(slog.String("component", "library")),
		ttl:    defaultCacheTTL,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoadMovies returns the owner's active movies. Reads never fail: any
// storage error is logged and an empty slice returned, so a missing or
// broken library renders as empty rather than crashing the caller.
func (g *Gateway) LoadMovies(ctx context.Context, ownerID string) []media.Record {
	return g.load(ctx, ownerID, collectionMovies)
}

// LoadTVShows returns the owner's active episodes with the same
// degrade-to-empty semantics as LoadMovies.
func (g *Gateway) LoadTVShows(ctx context.Context, ownerID string) []media.Record {
	return g.load(ctx, ownerID, collectionTVShows)
}

// LoadCollection assembles the full in-memory read model for an owner.
func (g *Gateway) LoadCollection(ctx context.Context, ownerID string) *media.Collection {
	return &media.Collection{
		Movies:   g.LoadMovies(ctx, ownerID),
		Episodes: g.LoadTVShows(ctx, ownerID),
	}
}

// SaveMovies persists a batch of movie records atomically. Records that
// fail validation are logged and dropped; the valid remainder is still
// written. ErrValidation only surfaces when nothing in the batch passes.
func (g *Gateway) SaveMovies(ctx context.Context, ownerID string, records []media.Record) error {
	return g.save(ctx, ownerID, collectionMovies, media.KindMovie, records)
}

// SaveTVShows persists a batch of episode records with the same
// skip-invalid semantics as SaveMovies.
func (g *Gateway) SaveTVShows(ctx context.Context, ownerID string, records []media.Record) error {
	return g.save(ctx, ownerID, collectionTVShows, media.KindEpisode, records)
}

// Remove soft-deletes every record with the given catalog ID in both
// collections. The documents stay in storage flagged deleted.
func (g *Gateway) Remove(ctx context.Context, ownerID string, catalogID int64) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	}

	removed := 0
	for _, collection := range []string{collectionMovies, collectionTVShows} {
		docs, err := g.store.List(ctx, ownerID, collection)
		if err != nil {
			return fmt.Errorf("%w: list %s: %v", ErrPersistence, collection, err)
		}
		for _, doc := range docs {
			if doc.Deleted || !docMatchesCatalogID(doc.DocID, catalogID) {
				continue
			}
			if err := g.store.MarkDeleted(ctx, ownerID, collection, doc.DocID); err != nil {
				return fmt.Errorf("%w: delete %s/%s: %v", ErrPersistence, collection, doc.DocID, err)
			}
			removed++
		}
		g.invalidate(ownerID, collection)
	}

	g.logger.Info("records removed",
		slog.String("owner", ownerID),
		slog.Int64("catalog_id", catalogID),
		slog.Int("count", removed))
	return nil
}

// Exists reports whether an active record with the candidate's uniqueness
// key is already persisted.
func (g *Gateway) Exists(ctx context.Context, ownerID string, candidate media.Record) bool {
	collection := collectionMovies
	if candidate.Kind == media.KindEpisode {
		collection = collectionTVShows
	}
	for _, rec := range g.load(ctx, ownerID, collection) {
		if rec.Key() == candidate.Key() {
			return true
		}
	}
	return false
}

// InvalidateAll drops the whole read cache. The next load hits storage.
func (g *Gateway) InvalidateAll() {
	g.cacheMu.Lock()
	g.cache = make(map[string]cacheEntry)
	g.cacheMu.Unlock()
}

func (g *Gateway) load(ctx context.Context, ownerID, collection string) []media.Record {
	if strings.TrimSpace(ownerID) == "" {
		return []media.Record{}
	}

	key := cacheKey(ownerID, collection)
	g.cacheMu.Lock()
	entry, ok := g.cache[key]
	g.cacheMu.Unlock()
	if ok && g.now().Sub(entry.fetchedAt) <= g.ttl {
		return append([]media.Record(nil), entry.records...)
	}

	docs, err := g.store.List(ctx, ownerID, collection)
	if err != nil {
		g.logger.Warn("library read failed, returning empty collection",
			slog.String("owner", ownerID),
			slog.String("collection", collection),
			slog.Any("error", err))
		return []media.Record{}
	}

	records := make([]media.Record, 0, len(docs))
	for _, doc := range docs {
		if doc.Deleted {
			continue
		}
		var persisted media.PersistedRecord
		if err := json.Unmarshal(doc.Payload, &persisted); err != nil {
			g.logger.Warn("skipping malformed document",
				slog.String("collection", collection),
				slog.String("doc_id", doc.DocID),
				slog.Any("error", err))
			continue
		}
		records = append(records, persisted.Record)
	}

	g.cacheMu.Lock()
	g.cache[key] = cacheEntry{records: records, fetchedAt: g.now()}
	g.cacheMu.Unlock()

	return append([]media.Record(nil), records...)
}

func (g *Gateway) save(ctx context.Context, ownerID, collection string, kind media.Kind, records []media.Record) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if len(records) == 0 {
		return nil
	}
	valid := make([]media.Record, 0, len(records))
	var firstInvalid error
	for _, rec := range records {
		if err := validate(rec, kind); err != nil {
			if firstInvalid == nil {
				firstInvalid = err
			}
			g.logger.Warn("dropping invalid record from batch",
				slog.String("collection", collection),
				slog.String("file", rec.FileName),
				slog.Any("error", err))
			continue
		}
		valid = append(valid, rec)
	}
	if len(valid) == 0 {
		return firstInvalid
	}
	records = valid

	existing := make(map[string]media.PersistedRecord)
	if docs, err := g.store.List(ctx, ownerID, collection); err == nil {
		for _, doc := range docs {
			var persisted media.PersistedRecord
			if json.Unmarshal(doc.Payload, &persisted) == nil {
				existing[doc.DocID] = persisted
			}
		}
	}

	now := g.now().UTC()
	payloads := make(map[string][]byte, len(records))
	for _, rec := range records {
		id := docID(rec)
		persisted := media.PersistedRecord{
			Record:         rec,
			OwnerID:        ownerID,
			AddedAt:        now,
			LastModifiedAt: now,
		}
		if prev, ok := existing[id]; ok {
			if !prev.AddedAt.IsZero() {
				persisted.AddedAt = prev.AddedAt
			}
			if persisted.BlobID == "" {
				persisted.BlobID = prev.BlobID
			}
		}
		payload, err := json.Marshal(persisted)
		if err != nil {
			return fmt.Errorf("%w: marshal %s: %v", ErrPersistence, id, err)
		}
		payloads[id] = payload
	}

	if err := g.store.PutBatch(ctx, ownerID, collection, payloads); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	g.invalidate(ownerID, collection)
	g.logger.Info("batch saved",
		slog.String("owner", ownerID),
		slog.String("collection", collection),
		slog.Int("count", len(records)))
	return nil
}

func (g *Gateway) invalidate(ownerID, collection string) {
	g.cacheMu.Lock()
	delete(g.cache, cacheKey(ownerID, collection))
	g.cacheMu.Unlock()
}

func validate(rec media.Record, kind media.Kind) error {
	switch {
	case rec.Kind != kind:
		return fmt.Errorf("%w: record %q has kind %q, expected %q", ErrValidation, rec.FileName, rec.Kind, kind)
	case rec.CatalogID <= 0:
		return fmt.Errorf("%w: record %q is missing a catalog id", ErrValidation, rec.FileName)
	case strings.TrimSpace(rec.Title) == "":
		return fmt.Errorf("%w: record %q is missing a title", ErrValidation, rec.FileName)
	case strings.TrimSpace(rec.FileName) == "":
		return fmt.Errorf("%w: record is missing a file name", ErrValidation)
	}
	if kind == media.KindEpisode && (rec.Season <= 0 || rec.Episode <= 0) {
		return fmt.Errorf("%w: episode %q needs season and episode numbers", ErrValidation, rec.FileName)
	}
	return nil
}

func docID(rec media.Record) string {
	if rec.Kind == media.KindEpisode {
		return fmt.Sprintf("%d-s%02de%02d", rec.CatalogID, rec.Season, rec.Episode)
	}
	return strconv.FormatInt(rec.CatalogID, 10)
}

func docMatchesCatalogID(docID string, catalogID int64) bool {
	id := strconv.FormatInt(catalogID, 10)
	return docID == id || strings.HasPrefix(docID, id+"-")
}

func cacheKey(ownerID, collection string) string {
	return ownerID + "|" + collection
}
