package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"github.com/pountzas/plix/internal/blobstore"
	"github.com/pountzas/plix/internal/docstore"
	"github.com/pountzas/plix/internal/library"
	"github.com/pountzas/plix/internal/logging"
	"github.com/pountzas/plix/internal/media"
	"github.com/pountzas/plix/internal/resolve"
	"github.com/pountzas/plix/internal/tmdb"
)

type fakeSearcher struct {
	movies map[string]*tmdb.Response
	tv     map[string]*tmdb.Response
	errFor map[string]error
}

func (f *fakeSearcher) SearchMovie(_ context.Context, query string) (*tmdb.Response, error) {
	if err, ok := f.errFor[query]; ok {
		return nil, err
	}
	if resp, ok := f.movies[query]; ok {
		return resp, nil
	}
	return &tmdb.Response{}, nil
}

func (f *fakeSearcher) SearchTV(_ context.Context, query string) (*tmdb.Response, error) {
	if err, ok := f.errFor[query]; ok {
		return nil, err
	}
	if resp, ok := f.tv[query]; ok {
		return resp, nil
	}
	return &tmdb.Response{}, nil
}

type testEnv struct {
	coordinator *Coordinator
	blobs       *blobstore.Store
	docs        *docstore.Store
	gateway     *library.Gateway
	root        string
	dataDir     string
}

func newTestEnv(t *testing.T, searcher tmdb.Searcher, ownerID string) *testEnv {
	t.Helper()
	dataDir := t.TempDir()

	blobs, err := blobstore.Open(filepath.Join(dataDir, "blobs.db"))
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	t.Cleanup(func() { _ = blobs.Close() })

	docs, err := docstore.Open(filepath.Join(dataDir, "library.db"))
	if err != nil {
		t.Fatalf("open docstore: %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })

	gateway := library.New(docs, logging.NewNop())
	coordinator, err := New(Options{
		Resolver: resolve.New(searcher, logging.NewNop()),
		Blobs:    blobs,
		Gateway:  gateway,
		Logger:   logging.NewNop(),
		OwnerID:  ownerID,
		LockDir:  dataDir,
	})
	if err != nil {
		t.Fatalf("build coordinator: %v", err)
	}

	return &testEnv{
		coordinator: coordinator,
		blobs:       blobs,
		docs:        docs,
		gateway:     gateway,
		root:        t.TempDir(),
		dataDir:     dataDir,
	}
}

func (e *testEnv) addFile(t *testing.T, name, content string) media.RawFile {
	t.Helper()
	path := filepath.Join(e.root, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", name, err)
	}
	return media.RawFile{
		Name:         name,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		RootPath:     e.root,
	}
}

func matrixSearcher() *fakeSearcher {
	return &fakeSearcher{
		movies: map[string]*tmdb.Response{
			"The Matrix": {Results: []tmdb.Result{{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-31"}}},
			"Inception":  {Results: []tmdb.Result{{ID: 27205, Title: "Inception", ReleaseDate: "2010-07-15"}}},
		},
		tv: map[string]*tmdb.Response{
			"Breaking Bad": {Results: []tmdb.Result{{ID: 1396, Name: "Breaking Bad", FirstAirDate: "2008-01-20"}}},
		},
		errFor: map[string]error{},
	}
}

func TestRunIngestsMixedBatch(t *testing.T) {
	env := newTestEnv(t, matrixSearcher(), "user-1")
	files := []media.RawFile{
		env.addFile(t, "The.Matrix.1999.1080p.mkv", "matrix bytes"),
		env.addFile(t, "Breaking.Bad.S01E05.720p.mkv", "bb bytes"),
		env.addFile(t, "home_movie_clip.webm", "unknown bytes"),
	}

	summary, err := env.coordinator.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Added != 2 || summary.Unidentified != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.BatchID == "" {
		t.Fatal("batch id missing")
	}

	movies := env.gateway.LoadMovies(context.Background(), "user-1")
	if len(movies) != 1 || movies[0].CatalogID != 603 {
		t.Fatalf("movie not persisted: %+v", movies)
	}
	shows := env.gateway.LoadTVShows(context.Background(), "user-1")
	if len(shows) != 1 || shows[0].Season != 1 || shows[0].Episode != 5 {
		t.Fatalf("episode not persisted: %+v", shows)
	}

	// Identified files got playable blobs.
	for _, outcome := range summary.Outcomes {
		if outcome.Status != StatusAdded {
			continue
		}
		if outcome.Record.ObjectURL == "" {
			t.Fatalf("added record %s missing object URL", outcome.File.Name)
		}
		data, err := env.blobs.ResolveURL(context.Background(), outcome.Record.ObjectURL)
		if err != nil || len(data) == 0 {
			t.Fatalf("blob for %s unreadable: %v", outcome.File.Name, err)
		}
	}
}

func TestRunPersistsBlobLinkage(t *testing.T) {
	env := newTestEnv(t, matrixSearcher(), "user-1")
	ctx := context.Background()
	file := env.addFile(t, "The.Matrix.1999.mkv", "matrix bytes")

	summary, err := env.coordinator.Run(ctx, []media.RawFile{file})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Added != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	entry, err := env.blobs.Get(ctx, file.Identity())
	if err != nil {
		t.Fatalf("blob entry: %v", err)
	}
	doc, err := env.docs.Get(ctx, "user-1", "movies", "603")
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	var persisted media.PersistedRecord
	if err := json.Unmarshal(doc.Payload, &persisted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if persisted.BlobID == "" || persisted.BlobID != entry.BlobID {
		t.Fatalf("persisted blob id %q does not match stored blob %q", persisted.BlobID, entry.BlobID)
	}
}

func TestRunOneAuthFailureDoesNotAbortSiblings(t *testing.T) {
	searcher := matrixSearcher()
	searcher.errFor["The Matrix"] = tmdb.ErrAuth

	env := newTestEnv(t, searcher, "user-1")
	files := []media.RawFile{
		env.addFile(t, "The.Matrix.1999.mkv", "matrix"),
		env.addFile(t, "Inception.2010.mkv", "inception"),
	}

	summary, err := env.coordinator.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !summary.AuthFailed {
		t.Fatal("auth failure not surfaced")
	}
	if summary.Failed != 1 || summary.Added != 1 {
		t.Fatalf("sibling aborted: %+v", summary)
	}

	var failed *Outcome
	for i := range summary.Outcomes {
		if summary.Outcomes[i].Status == StatusFailed {
			failed = &summary.Outcomes[i]
		}
	}
	if failed == nil || !errors.Is(failed.Err, tmdb.ErrAuth) {
		t.Fatalf("failed outcome missing auth error: %+v", failed)
	}

	movies := env.gateway.LoadMovies(context.Background(), "user-1")
	if len(movies) != 1 || movies[0].CatalogID != 27205 {
		t.Fatalf("surviving sibling not persisted: %+v", movies)
	}
}

func TestRunDeduplicatesWithinBatch(t *testing.T) {
	env := newTestEnv(t, matrixSearcher(), "user-1")
	files := []media.RawFile{
		env.addFile(t, "The.Matrix.1999.720p.mkv", "copy one"),
		env.addFile(t, "The.Matrix.1999.REMUX.mkv", "copy two"),
	}

	summary, err := env.coordinator.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Added != 1 {
		t.Fatalf("expected a single add, got %+v", summary)
	}
	if summary.Skipped+summary.Updated != 1 {
		t.Fatalf("second copy must reconcile against the first: %+v", summary)
	}

	movies := env.gateway.LoadMovies(context.Background(), "user-1")
	if len(movies) != 1 {
		t.Fatalf("duplicate persisted: %+v", movies)
	}
}

func TestRunUpgradesExistingEntry(t *testing.T) {
	env := newTestEnv(t, matrixSearcher(), "user-1")
	ctx := context.Background()

	existing := media.Record{
		Kind:      media.KindMovie,
		CatalogID: 603,
		Title:     "The Matrix",
		FileName:  "The.Matrix.700MB.mkv",
	}
	if err := env.gateway.SaveMovies(ctx, "user-1", []media.Record{existing}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	summary, err := env.coordinator.Run(ctx, []media.RawFile{
		env.addFile(t, "The.Matrix.1999.1080p.BluRay.mkv", "better copy"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Updated != 1 || summary.Added != 0 {
		t.Fatalf("expected an upgrade: %+v", summary)
	}

	movies := env.gateway.LoadMovies(ctx, "user-1")
	if len(movies) != 1 || movies[0].FileName != "The.Matrix.1999.1080p.BluRay.mkv" {
		t.Fatalf("upgrade not persisted: %+v", movies)
	}
}

func TestRunLocalOnlyWithoutOwner(t *testing.T) {
	env := newTestEnv(t, matrixSearcher(), "")
	ctx := context.Background()

	summary, err := env.coordinator.Run(ctx, []media.RawFile{
		env.addFile(t, "The.Matrix.1999.mkv", "matrix"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Added != 1 {
		t.Fatalf("local-only run must still identify: %+v", summary)
	}

	// Blob landed, but nothing reached the library.
	count, _, err := env.blobs.Stats(ctx)
	if err != nil || count != 1 {
		t.Fatalf("blob missing: count=%d err=%v", count, err)
	}
	docs, err := env.docs.List(ctx, "", "movies")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("local-only run persisted documents: %+v", docs)
	}
}

func TestRunRefusesConcurrentIngest(t *testing.T) {
	env := newTestEnv(t, matrixSearcher(), "user-1")

	other := flock.New(filepath.Join(env.dataDir, "ingest.lock"))
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-lock: locked=%v err=%v", locked, err)
	}
	defer other.Unlock()

	_, err = env.coordinator.Run(context.Background(), []media.RawFile{
		env.addFile(t, "The.Matrix.1999.mkv", "matrix"),
	})
	if !errors.Is(err, ErrIngestLocked) {
		t.Fatalf("expected ErrIngestLocked, got %v", err)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	env := newTestEnv(t, matrixSearcher(), "user-1")
	summary, err := env.coordinator.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Added+summary.Updated+summary.Skipped+summary.Failed+summary.Unidentified != 0 {
		t.Fatalf("empty batch produced outcomes: %+v", summary)
	}
}

func TestRunContinuesWhenBlobStoreIsDown(t *testing.T) {
	env := newTestEnv(t, matrixSearcher(), "user-1")
	_ = env.blobs.Close()

	summary, err := env.coordinator.Run(context.Background(), []media.RawFile{
		env.addFile(t, "The.Matrix.1999.mkv", "matrix"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Added != 1 {
		t.Fatalf("blob outage must not block identification: %+v", summary)
	}
	if summary.Outcomes[0].Record.ObjectURL != "" {
		t.Fatal("record must have no object URL when blob storage is down")
	}

	movies := env.gateway.LoadMovies(context.Background(), "user-1")
	if len(movies) != 1 {
		t.Fatalf("record not persisted despite blob outage: %+v", movies)
	}
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel, content string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	mustWrite("The.Matrix.1999.mkv", "a")
	mustWrite("shows/Breaking.Bad.S01E05.mkv", "b")
	mustWrite("notes.txt", "not a video")
	mustWrite(".hidden/secret.mkv", "hidden")

	files, err := ScanDirectory(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 videos, got %d: %+v", len(files), files)
	}
	for _, file := range files {
		if file.RootPath == "" || file.LastModified.IsZero() || file.Size == 0 {
			t.Fatalf("incomplete raw file: %+v", file)
		}
	}
	if files[1].RelativePath != "shows" {
		t.Fatalf("relative path not captured: %+v", files[1])
	}
}

func TestScanDirectoryMissingRoot(t *testing.T) {
	if _, err := ScanDirectory(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}
