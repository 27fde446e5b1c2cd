package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/pountzas/plix/internal/blobstore"
	"github.com/pountzas/plix/internal/library"
	"github.com/pountzas/plix/internal/media"
	"github.com/pountzas/plix/internal/notifications"
	"github.com/pountzas/plix/internal/reconcile"
	"github.com/pountzas/plix/internal/resolve"
	"github.com/pountzas/plix/internal/tmdb"
)

// ErrIngestLocked reports that another ingest run holds the data directory.
var ErrIngestLocked = errors.New("another ingest is already running")

// Status is the per-file outcome of one ingest run.
type Status string

const (
	StatusAdded        Status = "added"
	StatusUpdated      Status = "updated"
	StatusSkipped      Status = "skipped"
	StatusUnidentified Status = "unidentified"
	StatusFailed       Status = "failed"
)

// Outcome records what happened to one file.
type Outcome struct {
	File   media.RawFile
	Record *media.Record
	Status Status
	Reason string
	Err    error
}

// Summary aggregates one ingest run.
type Summary struct {
	BatchID      string
	Added        int
	Updated      int
	Skipped      int
	Unidentified int
	Failed       int
	AuthFailed   bool
	Duration     time.Duration
	Outcomes     []Outcome
}

// Coordinator wires the pipeline components together for a run.
type Coordinator struct {
	resolver *resolve.Resolver
	blobs    *blobstore.Store
	gateway  *library.Gateway
	notifier notifications.Service
	logger   *slog.Logger

	ownerID string
	lockDir string
	now     func() time.Time
}

// Options configures a Coordinator.
type Options struct {
	Resolver *resolve.Resolver
	Blobs    *blobstore.Store
	Gateway  *library.Gateway
	Notifier notifications.Service
	Logger   *slog.Logger

	// OwnerID namespaces persisted records. Empty means local-only: blobs
	// are stored but nothing is written to the library.
	OwnerID string

	// LockDir holds the ingest lock file, normally the data directory.
	LockDir string
}

// New builds a Coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if opts.LockDir == "" {
		return nil, errors.New("lock directory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Coordinator{
		resolver: opts.Resolver,
		blobs:    opts.Blobs,
		gateway:  opts.Gateway,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "ingest")),
		ownerID:  opts.OwnerID,
		lockDir:  opts.LockDir,
		now:      time.Now,
	}, nil
}

// Run processes the files concurrently and lands the results as one batch.
// One file failing does not abort the others; the summary carries per-file
// outcomes alongside the totals.
func (c *Coordinator) Run(ctx context.Context, files []media.RawFile) (*Summary, error) {
	lock := flock.New(filepath.Join(c.lockDir, "ingest.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !locked {
		return nil, ErrIngestLocked
	}
	defer func() {
		_ = lock.Unlock()
	}()

	started := c.now()
	summary := &Summary{BatchID: uuid.NewString()}
	if len(files) == 0 {
		return summary, nil
	}

	c.logger.Info("ingest started",
		slog.String("batch", summary.BatchID),
		slog.Int("files", len(files)),
		slog.String("owner", c.ownerID))
	_ = c.notifier.NotifyIngestStarted(ctx, len(files))

	collection := &media.Collection{}
	if c.gateway != nil && c.ownerID != "" {
		collection = c.gateway.LoadCollection(ctx, c.ownerID)
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		outcomes  = make([]Outcome, len(files))
		toPersist []media.Record
	)

	for i, file := range files {
		wg.Add(1)
		go func(idx int, file media.RawFile) {
			defer wg.Done()

			record, err := c.resolver.Resolve(ctx, file)
			if err != nil {
				outcomes[idx] = Outcome{File: file, Status: StatusFailed, Err: err}
				mu.Lock()
				if errors.Is(err, tmdb.ErrAuth) && !summary.AuthFailed {
					summary.AuthFailed = true
					_ = c.notifier.NotifyAuthFailure(ctx)
				}
				mu.Unlock()
				c.logger.Warn("identification failed",
					slog.String("file", file.Name),
					slog.Any("error", err))
				return
			}
			if record == nil {
				outcomes[idx] = Outcome{File: file, Status: StatusUnidentified}
				_ = c.notifier.NotifyUnidentifiedMedia(ctx, file.Name)
				return
			}

			// Reconciliation mutates the shared collection, so decision and
			// apply happen under one lock to keep in-batch duplicates out.
			mu.Lock()
			decision := reconcile.CheckDuplicate(*record, collection)
			switch decision.Action {
			case reconcile.ActionSkip:
				outcomes[idx] = Outcome{File: file, Record: record, Status: StatusSkipped, Reason: decision.Reason}
				mu.Unlock()
				return
			case reconcile.ActionUpdate:
				outcomes[idx] = Outcome{File: file, Record: record, Status: StatusUpdated, Reason: decision.Reason}
			default:
				outcomes[idx] = Outcome{File: file, Record: record, Status: StatusAdded, Reason: decision.Reason}
			}
			collection.Upsert(*record)
			mu.Unlock()

			// The blob lands first so the persisted record carries its ID.
			c.storeBlob(ctx, file, record)

			mu.Lock()
			toPersist = append(toPersist, *record)
			mu.Unlock()

			_ = c.notifier.NotifyFileIdentified(ctx, record.Title, string(record.Kind))
		}(i, file)
	}
	wg.Wait()

	summary.Outcomes = outcomes
	for _, outcome := range outcomes {
		switch outcome.Status {
		case StatusAdded:
			summary.Added++
		case StatusUpdated:
			summary.Updated++
		case StatusSkipped:
			summary.Skipped++
		case StatusUnidentified:
			summary.Unidentified++
		case StatusFailed:
			summary.Failed++
		}
	}

	var persistErr error
	if c.gateway != nil && c.ownerID != "" && len(toPersist) > 0 {
		persistErr = c.persist(ctx, toPersist)
		if persistErr != nil {
			c.logger.Error("batch persistence failed",
				slog.String("batch", summary.BatchID),
				slog.Any("error", persistErr))
			_ = c.notifier.NotifyError(ctx, persistErr, "persistence")
		}
	}

	summary.Duration = c.now().Sub(started)
	c.logger.Info("ingest finished",
		slog.String("batch", summary.BatchID),
		slog.Int("added", summary.Added),
		slog.Int("updated", summary.Updated),
		slog.Int("skipped", summary.Skipped),
		slog.Int("unidentified", summary.Unidentified),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", summary.Duration))
	_ = c.notifier.NotifyIngestCompleted(ctx, summary.Added, summary.Updated, summary.Skipped, summary.Failed, summary.Duration)

	return summary, persistErr
}

// storeBlob persists the file payload for local playback. Blob storage being
// unavailable degrades the record, not the run.
func (c *Coordinator) storeBlob(ctx context.Context, file media.RawFile, record *media.Record) {
	data, err := os.ReadFile(filePath(file))
	if err != nil {
		c.logger.Warn("cannot read file for blob storage",
			slog.String("file", file.Name),
			slog.Any("error", err))
		return
	}
	stored, err := c.blobs.Put(ctx, file, data)
	if err != nil {
		c.logger.Warn("blob storage unavailable, continuing without playable copy",
			slog.String("file", file.Name),
			slog.Any("error", err))
		return
	}
	record.BlobID = stored.BlobID
	entry, err := c.blobs.Get(ctx, file.Identity())
	if err != nil {
		c.logger.Warn("blob stored but unreadable",
			slog.String("file", file.Name),
			slog.Any("error", err))
		return
	}
	record.ObjectURL = entry.ObjectURL
}

func (c *Coordinator) persist(ctx context.Context, records []media.Record) error {
	var movies, episodes []media.Record
	for _, rec := range records {
		if rec.Kind == media.KindEpisode {
			episodes = append(episodes, rec)
		} else {
			movies = append(movies, rec)
		}
	}
	if len(movies) > 0 {
		if err := c.gateway.SaveMovies(ctx, c.ownerID, movies); err != nil {
			return err
		}
	}
	if len(episodes) > 0 {
		if err := c.gateway.SaveTVShows(ctx, c.ownerID, episodes); err != nil {
			return err
		}
	}
	return nil
}
