package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pountzas/plix/internal/media"
	"github.com/pountzas/plix/internal/parse"
	"github.com/pountzas/plix/internal/tmdb"
)

// Resolver identifies raw files against the metadata catalog.
type Resolver struct {
	searcher tmdb.Searcher
	logger   *slog.Logger
}

// New builds a Resolver over the given searcher.
func New(searcher tmdb.Searcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		searcher: searcher,
		logger:   logger.With(slog.String("component", "resolve")),
	}
}

// Resolve routes a file to episode or movie identification based on its
// name. A nil record with a nil error means the file could not be
// identified; errors are reserved for catalog failures.
func (r *Resolver) Resolve(ctx context.Context, file media.RawFile) (*media.Record, error) {
	if _, ok := parse.ParseEpisode(file.Name); ok {
		return r.ResolveEpisode(ctx, file)
	}
	if _, ok := parse.ParseMovie(file.Name); ok {
		return r.ResolveMovie(ctx, file)
	}
	r.logger.Info("filename yields no searchable title", slog.String("file", file.Name))
	return nil, nil
}

// ResolveMovie identifies a file as a movie. The first search result wins.
func (r *Resolver) ResolveMovie(ctx context.Context, file media.RawFile) (*media.Record, error) {
	parsed, ok := parse.ParseMovie(file.Name)
	if !ok {
		r.logger.Info("filename yields no searchable title", slog.String("file", file.Name))
		return nil, nil
	}

	resp, err := r.searcher.SearchMovie(ctx, parsed.Title)
	if err != nil {
		return nil, fmt.Errorf("search movie %q: %w", parsed.Title, err)
	}
	if len(resp.Results) == 0 {
		r.logger.Info("no catalog match",
			slog.String("file", file.Name),
			slog.String("query", parsed.Title))
		return nil, nil
	}

	record := recordFromResult(resp.Results[0], file)
	record.Kind = media.KindMovie
	record.ReleaseInfo = resp.Results[0].ReleaseDate

	r.logger.Info("movie identified",
		slog.String("file", file.Name),
		slog.String("title", record.Title),
		slog.Int64("catalog_id", record.CatalogID))
	return &record, nil
}

// ResolveEpisode identifies a file as a TV episode using its series title
// and the SxxEyy marker from the filename.
func (r *Resolver) ResolveEpisode(ctx context.Context, file media.RawFile) (*media.Record, error) {
	parsed, ok := parse.ParseEpisode(file.Name)
	if !ok || parsed.Title == "" {
		r.logger.Info("filename carries no searchable series title", slog.String("file", file.Name))
		return nil, nil
	}

	resp, err := r.searcher.SearchTV(ctx, parsed.Title)
	if err != nil {
		return nil, fmt.Errorf("search tv %q: %w", parsed.Title, err)
	}
	if len(resp.Results) == 0 {
		r.logger.Info("no catalog match",
			slog.String("file", file.Name),
			slog.String("query", parsed.Title))
		return nil, nil
	}

	record := recordFromResult(resp.Results[0], file)
	record.Kind = media.KindEpisode
	record.ReleaseInfo = resp.Results[0].FirstAirDate
	record.Season = parsed.Season
	record.Episode = parsed.Episode

	r.logger.Info("episode identified",
		slog.String("file", file.Name),
		slog.String("series", record.Title),
		slog.Int64("catalog_id", record.CatalogID),
		slog.Int("season", record.Season),
		slog.Int("episode", record.Episode))
	return &record, nil
}

func recordFromResult(result tmdb.Result, file media.RawFile) media.Record {
	return media.Record{
		CatalogID:    result.ID,
		Title:        result.DisplayTitle(),
		Overview:     result.Overview,
		PosterPath:   result.PosterPath,
		BackdropPath: result.BackdropPath,
		Rating:       result.VoteAverage,
		GenreIDs:     result.GenreIDs,
		OriginalLang: result.OriginalLanguage,
		Popularity:   result.Popularity,
		FileName:     file.Name,
		FolderPath:   file.RelativePath,
		RootPath:     file.RootPath,
	}
}
