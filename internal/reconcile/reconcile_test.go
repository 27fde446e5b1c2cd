package reconcile

import (
	"testing"

	"github.com/pountzas/plix/internal/media"
)

func movie(catalogID int64, fileName string) media.Record {
	return media.Record{Kind: media.KindMovie, CatalogID: catalogID, Title: "Movie", FileName: fileName}
}

func episode(catalogID int64, season, ep int, fileName string) media.Record {
	return media.Record{Kind: media.KindEpisode, CatalogID: catalogID, Title: "Show", FileName: fileName, Season: season, Episode: ep}
}

func TestMovieAddWhenAbsent(t *testing.T) {
	collection := &media.Collection{}
	decision := CheckDuplicate(movie(603, "The.Matrix.1999.1080p.mkv"), collection)
	if decision.Action != ActionAdd || decision.IsDuplicate {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestMovieSkipOnSimilarSize(t *testing.T) {
	collection := &media.Collection{Movies: []media.Record{movie(603, "The.Matrix.1000MB.mkv")}}
	decision := CheckDuplicate(movie(603, "The.Matrix.1050MB.mkv"), collection)
	if decision.Action != ActionSkip {
		t.Fatalf("expected skip, got %+v", decision)
	}
	if !decision.IsDuplicate || decision.Existing == nil {
		t.Fatalf("duplicate metadata missing: %+v", decision)
	}
}

func TestMovieUpdateOnLargeSizeDifference(t *testing.T) {
	// Existing filename implies 700MB, the new one 2000MB via the 1080p
	// heuristic: well above the threshold.
	collection := &media.Collection{Movies: []media.Record{movie(603, "The.Matrix.700MB.mkv")}}
	decision := CheckDuplicate(movie(603, "The.Matrix.1999.1080p.BluRay.mkv"), collection)
	if decision.Action != ActionUpdate {
		t.Fatalf("expected update, got %+v", decision)
	}
}

func TestBoundaryExactlyTenPercentIsSkip(t *testing.T) {
	collection := &media.Collection{Movies: []media.Record{movie(1, "Movie.1000MB.mkv")}}

	atBoundary := CheckDuplicate(movie(1, "Movie.1100MB.mkv"), collection)
	if atBoundary.Action != ActionSkip {
		t.Fatalf("difference of exactly 10%% must skip, got %+v", atBoundary)
	}

	aboveBoundary := CheckDuplicate(movie(1, "Movie.1101MB.mkv"), collection)
	if aboveBoundary.Action != ActionUpdate {
		t.Fatalf("difference above 10%% must update, got %+v", aboveBoundary)
	}
}

func TestUpdateTriggersOnSmallerFileToo(t *testing.T) {
	collection := &media.Collection{Movies: []media.Record{movie(1, "Movie.2000MB.mkv")}}
	decision := CheckDuplicate(movie(1, "Movie.700MB.mkv"), collection)
	if decision.Action != ActionUpdate {
		t.Fatalf("direction must not matter, got %+v", decision)
	}
}

func TestEpisodeExactMatchUsesSizeLogic(t *testing.T) {
	collection := &media.Collection{Episodes: []media.Record{episode(1396, 1, 5, "BB.S01E05.700MB.mkv")}}

	skip := CheckDuplicate(episode(1396, 1, 5, "BB.S01E05.720MB.mkv"), collection)
	if skip.Action != ActionSkip {
		t.Fatalf("expected skip, got %+v", skip)
	}

	update := CheckDuplicate(episode(1396, 1, 5, "BB.S01E05.1080p.mkv"), collection)
	if update.Action != ActionUpdate {
		t.Fatalf("expected update, got %+v", update)
	}
}

func TestEpisodeMissingFromExistingSeriesIsAdd(t *testing.T) {
	collection := &media.Collection{Episodes: []media.Record{episode(1396, 1, 5, "BB.S01E05.mkv")}}
	decision := CheckDuplicate(episode(1396, 1, 6, "BB.S01E06.mkv"), collection)
	if decision.Action != ActionAdd || decision.IsDuplicate {
		t.Fatalf("expected add for missing episode, got %+v", decision)
	}
	if decision.Reason == "new series" {
		t.Fatalf("reason should note the existing series, got %q", decision.Reason)
	}
}

func TestEpisodeNewSeriesIsAdd(t *testing.T) {
	collection := &media.Collection{Episodes: []media.Record{episode(1396, 1, 5, "BB.S01E05.mkv")}}
	decision := CheckDuplicate(episode(60059, 1, 1, "BCS.S01E01.mkv"), collection)
	if decision.Action != ActionAdd || decision.Reason != "new series" {
		t.Fatalf("expected new-series add, got %+v", decision)
	}
}

func TestCheckDuplicateIsIdempotent(t *testing.T) {
	collection := &media.Collection{Movies: []media.Record{movie(1, "Movie.1000MB.mkv")}}
	candidate := movie(1, "Movie.1500MB.mkv")

	first := CheckDuplicate(candidate, collection)
	second := CheckDuplicate(candidate, collection)
	if first.Action != second.Action || first.Reason != second.Reason || first.IsDuplicate != second.IsDuplicate {
		t.Fatalf("decisions differ: %+v vs %+v", first, second)
	}
}
