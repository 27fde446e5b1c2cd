package media

import (
	"fmt"
	"strconv"
	"time"
)

// RawFile describes a video file handed to the pipeline by the host
// environment. It is read-only input; the pipeline never mutates it.
type RawFile struct {
	Name         string
	Size         int64
	LastModified time.Time
	RelativePath string
	RootPath     string
}

// Identity derives the stable key used by the local blob store. The key is
// the file name joined with the last-modified timestamp in milliseconds, so
// the same file yields the same identity across sessions.
func (r RawFile) Identity() string {
	return r.Name + strconv.FormatInt(r.LastModified.UnixMilli(), 10)
}

// Kind distinguishes the two record variants.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindEpisode Kind = "episode"
)

// Record is the canonical unit of the library, produced by the
// identification resolver from a metadata-service match.
//
// ObjectURL is process-local and is deliberately excluded from JSON so it
// can never leak into a persisted document. BlobID is the durable link to
// the stored payload and does persist.
type Record struct {
	Kind         Kind    `json:"kind"`
	CatalogID    int64   `json:"catalogId"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"posterPath,omitempty"`
	BackdropPath string  `json:"backdropPath,omitempty"`
	ReleaseInfo  string  `json:"releaseInfo,omitempty"`
	Rating       float64 `json:"rating,omitempty"`
	GenreIDs     []int   `json:"genreIds,omitempty"`
	OriginalLang string  `json:"originalLanguage,omitempty"`
	Popularity   float64 `json:"popularity,omitempty"`

	FileName   string `json:"fileName"`
	ObjectURL  string `json:"-"`
	BlobID     string `json:"blobId,omitempty"`
	FolderPath string `json:"folderPath,omitempty"`
	RootPath   string `json:"rootPath,omitempty"`

	Season  int `json:"seasonNumber,omitempty"`
	Episode int `json:"episodeNumber,omitempty"`
}

// Key returns the uniqueness key for the record: the catalog ID for movies,
// and (catalog ID, season, episode) for episodes.
func (r Record) Key() string {
	if r.Kind == KindEpisode {
		return fmt.Sprintf("%d/s%02de%02d", r.CatalogID, r.Season, r.Episode)
	}
	return strconv.FormatInt(r.CatalogID, 10)
}

// PersistedRecord is the remote document shape: a Record plus ownership and
// bookkeeping fields managed by the persistence gateway.
type PersistedRecord struct {
	Record
	OwnerID        string    `json:"ownerId"`
	AddedAt        time.Time `json:"addedAt"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
	Deleted        bool      `json:"deleted,omitempty"`
}

// Collection is the in-memory read model for one owner: ordered movies and
// episodes. The active subset never holds two entries with the same Key.
type Collection struct {
	Movies   []Record
	Episodes []Record
}

// FindMovie returns the movie with the given catalog ID, or nil.
func (c *Collection) FindMovie(catalogID int64) *Record {
	for i := range c.Movies {
		if c.Movies[i].CatalogID == catalogID {
			return &c.Movies[i]
		}
	}
	return nil
}

// FindEpisode returns the episode matching the full uniqueness key, or nil.
func (c *Collection) FindEpisode(catalogID int64, season, episode int) *Record {
	for i := range c.Episodes {
		e := &c.Episodes[i]
		if e.CatalogID == catalogID && e.Season == season && e.Episode == episode {
			return e
		}
	}
	return nil
}

// HasSeries reports whether any episode of the series is present.
func (c *Collection) HasSeries(catalogID int64) bool {
	for i := range c.Episodes {
		if c.Episodes[i].CatalogID == catalogID {
			return true
		}
	}
	return false
}

// Upsert inserts the record or replaces the entry sharing its Key, keeping
// the uniqueness invariant.
func (c *Collection) Upsert(rec Record) {
	list := &c.Movies
	if rec.Kind == KindEpisode {
		list = &c.Episodes
	}
	for i := range *list {
		if (*list)[i].Key() == rec.Key() {
			(*list)[i] = rec
			return
		}
	}
	*list = append(*list, rec)
}

// Remove drops every record with the given catalog ID from both sequences.
func (c *Collection) Remove(catalogID int64) {
	c.Movies = filterOut(c.Movies, catalogID)
	c.Episodes = filterOut(c.Episodes, catalogID)
}

func filterOut(records []Record, catalogID int64) []Record {
	kept := records[:0]
	for _, rec := range records {
		if rec.CatalogID != catalogID {
			kept = append(kept, rec)
		}
	}
	return kept
}
