package library

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pountzas/plix/internal/docstore"
	"github.com/pountzas/plix/internal/logging"
	"github.com/pountzas/plix/internal/media"
)

const testOwner = "user-1"

func openTestDocstore(t *testing.T) *docstore.Store {
	t.Helper()
	store, err := docstore.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open docstore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleMovie(catalogID int64, title string) media.Record {
	return media.Record{
		Kind:      media.KindMovie,
		CatalogID: catalogID,
		Title:     title,
		Overview:  "overview",
		FileName:  title + ".mkv",
		ObjectURL: "plix://blob/should-never-persist",
	}
}

func sampleEpisode(catalogID int64, season, episode int) media.Record {
	return media.Record{
		Kind:      media.KindEpisode,
		CatalogID: catalogID,
		Title:     "Show",
		FileName:  "show.mkv",
		Season:    season,
		Episode:   episode,
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := openTestDocstore(t)
	gateway := New(store, logging.NewNop())
	ctx := context.Background()

	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{
		sampleMovie(603, "The Matrix"),
		sampleMovie(27205, "Inception"),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	movies := gateway.LoadMovies(ctx, testOwner)
	if len(movies) != 2 {
		t.Fatalf("expected 2 movies, got %d", len(movies))
	}
	for _, rec := range movies {
		if rec.ObjectURL != "" {
			t.Fatalf("object URL survived persistence: %q", rec.ObjectURL)
		}
	}
}

func TestPersistedPayloadOmitsObjectURL(t *testing.T) {
	store := openTestDocstore(t)
	gateway := New(store, logging.NewNop())
	ctx := context.Background()

	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{sampleMovie(603, "The Matrix")}); err != nil {
		t.Fatalf("save: %v", err)
	}

	doc, err := store.Get(ctx, testOwner, "movies", "603")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	raw := string(doc.Payload)
	if strings.Contains(raw, "objectUrl") || strings.Contains(raw, "plix://") {
		t.Fatalf("payload leaks the object URL: %s", raw)
	}
	var persisted media.PersistedRecord
	if err := json.Unmarshal(doc.Payload, &persisted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if persisted.OwnerID != testOwner || persisted.AddedAt.IsZero() {
		t.Fatalf("bookkeeping fields missing: %+v", persisted)
	}
}

func TestInvalidRecordIsSkippedNotFatal(t *testing.T) {
	store := openTestDocstore(t)
	gateway := New(store, logging.NewNop())
	ctx := context.Background()

	bad := sampleMovie(0, "No Catalog ID")
	err := gateway.SaveMovies(ctx, testOwner, []media.Record{sampleMovie(603, "The Matrix"), bad})
	if err != nil {
		t.Fatalf("mixed batch must still persist the valid records: %v", err)
	}

	got := gateway.LoadMovies(ctx, testOwner)
	if len(got) != 1 || got[0].CatalogID != 603 {
		t.Fatalf("valid sibling not persisted: %+v", got)
	}
}

func TestEntirelyInvalidBatchFailsValidation(t *testing.T) {
	store := openTestDocstore(t)
	gateway := New(store, logging.NewNop())
	ctx := context.Background()

	err := gateway.SaveMovies(ctx, testOwner, []media.Record{
		sampleMovie(0, "No Catalog ID"),
		{Kind: media.KindMovie, CatalogID: 1, FileName: "untitled.mkv"},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if got := gateway.LoadMovies(ctx, testOwner); len(got) != 0 {
		t.Fatalf("all-invalid batch must persist nothing, got %d records", len(got))
	}
}

func TestValidationCases(t *testing.T) {
	tests := []struct {
		name   string
		record media.Record
		save   func(*Gateway, context.Context, media.Record) error
	}{
		{"missing title", media.Record{Kind: media.KindMovie, CatalogID: 1, FileName: "a.mkv"},
			func(g *Gateway, ctx context.Context, r media.Record) error {
				return g.SaveMovies(ctx, testOwner, []media.Record{r})
			}},
		{"missing file name", media.Record{Kind: media.KindMovie, CatalogID: 1, Title: "A"},
			func(g *Gateway, ctx context.Context, r media.Record) error {
				return g.SaveMovies(ctx, testOwner, []media.Record{r})
			}},
		{"wrong kind for collection", sampleEpisode(1396, 1, 5),
			func(g *Gateway, ctx context.Context, r media.Record) error {
				return g.SaveMovies(ctx, testOwner, []media.Record{r})
			}},
		{"episode without numbers", media.Record{Kind: media.KindEpisode, CatalogID: 1396, Title: "Show", FileName: "s.mkv"},
			func(g *Gateway, ctx context.Context, r media.Record) error {
				return g.SaveTVShows(ctx, testOwner, []media.Record{r})
			}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gateway := New(openTestDocstore(t), logging.NewNop())
			if err := tc.save(gateway, context.Background(), tc.record); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestLoadNeverFails(t *testing.T) {
	store := openTestDocstore(t)
	gateway := New(store, logging.NewNop())
	_ = store.Close()

	movies := gateway.LoadMovies(context.Background(), testOwner)
	if movies == nil || len(movies) != 0 {
		t.Fatalf("broken storage must yield an empty slice, got %v", movies)
	}
	shows := gateway.LoadTVShows(context.Background(), testOwner)
	if shows == nil || len(shows) != 0 {
		t.Fatalf("broken storage must yield an empty slice, got %v", shows)
	}
}

func TestReadCacheLifetime(t *testing.T) {
	store := openTestDocstore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gateway := New(store, logging.NewNop(), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{sampleMovie(603, "The Matrix")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := gateway.LoadMovies(ctx, testOwner); len(got) != 1 {
		t.Fatalf("initial load: %d", len(got))
	}

	// Write behind the gateway's back so a cache hit is observable.
	payload, _ := json.Marshal(media.PersistedRecord{Record: sampleMovie(27205, "Inception"), OwnerID: testOwner})
	if err := store.Put(ctx, testOwner, "movies", "27205", payload); err != nil {
		t.Fatalf("direct put: %v", err)
	}

	now = now.Add(5 * time.Minute)
	if got := gateway.LoadMovies(ctx, testOwner); len(got) != 1 {
		t.Fatalf("read at exactly the TTL must be served from cache, got %d", len(got))
	}

	now = now.Add(time.Millisecond)
	if got := gateway.LoadMovies(ctx, testOwner); len(got) != 2 {
		t.Fatalf("read past TTL must hit storage, got %d", len(got))
	}
}

func TestSaveInvalidatesCache(t *testing.T) {
	store := openTestDocstore(t)
	gateway := New(store, logging.NewNop())
	ctx := context.Background()

	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{sampleMovie(603, "The Matrix")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := gateway.LoadMovies(ctx, testOwner); len(got) != 1 {
		t.Fatalf("initial load: %d", len(got))
	}

	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{sampleMovie(27205, "Inception")}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if got := gateway.LoadMovies(ctx, testOwner); len(got) != 2 {
		t.Fatalf("save must invalidate the cache, got %d", len(got))
	}
}

func TestRemoveSoftDeletes(t *testing.T) {
	store := openTestDocstore(t)
	gateway := New(store, logging.NewNop())
	ctx := context.Background()

	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{sampleMovie(603, "The Matrix")}); err != nil {
		t.Fatalf("save movies: %v", err)
	}
	if err := gateway.SaveTVShows(ctx, testOwner, []media.Record{sampleEpisode(1396, 1, 5), sampleEpisode(1396, 1, 6)}); err != nil {
		t.Fatalf("save shows: %v", err)
	}

	if err := gateway.Remove(ctx, testOwner, 1396); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if got := gateway.LoadTVShows(ctx, testOwner); len(got) != 0 {
		t.Fatalf("removed series still loads: %d", len(got))
	}
	if got := gateway.LoadMovies(ctx, testOwner); len(got) != 1 {
		t.Fatalf("unrelated movie lost: %d", len(got))
	}

	// The rows survive as soft deletes.
	doc, err := store.Get(ctx, testOwner, "tvshows", "1396-s01e05")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if !doc.Deleted {
		t.Fatal("remove must soft-delete, not drop")
	}
}

func TestExists(t *testing.T) {
	store := openTestDocstore(t)
	gateway := New(store, logging.NewNop())
	ctx := context.Background()

	if err := gateway.SaveTVShows(ctx, testOwner, []media.Record{sampleEpisode(1396, 1, 5)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	if !gateway.Exists(ctx, testOwner, sampleEpisode(1396, 1, 5)) {
		t.Fatal("persisted episode not found")
	}
	if gateway.Exists(ctx, testOwner, sampleEpisode(1396, 1, 6)) {
		t.Fatal("absent episode reported present")
	}
}

func TestAddedAtSurvivesRewrite(t *testing.T) {
	store := openTestDocstore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	gateway := New(store, logging.NewNop(), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{sampleMovie(603, "The Matrix")}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	now = base.Add(48 * time.Hour)
	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{sampleMovie(603, "The Matrix")}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	doc, err := store.Get(ctx, testOwner, "movies", "603")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	var persisted media.PersistedRecord
	if err := json.Unmarshal(doc.Payload, &persisted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !persisted.AddedAt.Equal(base) {
		t.Fatalf("AddedAt changed on rewrite: %v", persisted.AddedAt)
	}
	if !persisted.LastModifiedAt.Equal(base.Add(48 * time.Hour)) {
		t.Fatalf("LastModifiedAt not advanced: %v", persisted.LastModifiedAt)
	}
}

func TestBlobIDPersistsAndSurvivesRewrite(t *testing.T) {
	store := openTestDocstore(t)
	gateway := New(store, logging.NewNop())
	ctx := context.Background()

	withBlob := sampleMovie(603, "The Matrix")
	withBlob.BlobID = "blob-abc"
	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{withBlob}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// A rewrite without a blob reference keeps the stored one.
	if err := gateway.SaveMovies(ctx, testOwner, []media.Record{sampleMovie(603, "The Matrix")}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	doc, err := store.Get(ctx, testOwner, "movies", "603")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	var persisted media.PersistedRecord
	if err := json.Unmarshal(doc.Payload, &persisted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if persisted.BlobID != "blob-abc" {
		t.Fatalf("blob id lost on rewrite: %q", persisted.BlobID)
	}
}

func TestEmptyOwnerIsLocalOnly(t *testing.T) {
	gateway := New(openTestDocstore(t), logging.NewNop())
	ctx := context.Background()

	if err := gateway.SaveMovies(ctx, "", []media.Record{sampleMovie(603, "The Matrix")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty owner, got %v", err)
	}
	if got := gateway.LoadMovies(ctx, ""); len(got) != 0 {
		t.Fatalf("empty owner must load nothing, got %d", len(got))
	}
}
