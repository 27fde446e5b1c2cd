package reconcile

import (
	"fmt"
	"math"

	"github.com/pountzas/plix/internal/media"
	"github.com/pountzas/plix/internal/parse"
)

// Action is the decision taken for a candidate record.
type Action string

const (
	ActionAdd    Action = "add"
	ActionSkip   Action = "skip"
	ActionUpdate Action = "update"
)

// upgradeThreshold is the relative size difference above which an existing
// entry is superseded. Strictly greater-than: exactly 10% is a skip.
const upgradeThreshold = 0.10

// Decision describes how a candidate relates to the existing collection.
type Decision struct {
	IsDuplicate bool
	Action      Action
	Reason      string
	Existing    *media.Record
}

// CheckDuplicate compares a newly identified record against the existing
// collection and decides add, skip, or update. Pure function: no I/O, and
// repeated calls with the same inputs yield the same decision.
func CheckDuplicate(candidate media.Record, existing *media.Collection) Decision {
	if existing == nil {
		return Decision{Action: ActionAdd, Reason: "empty collection"}
	}
	if candidate.Kind == media.KindEpisode {
		return checkEpisode(candidate, existing)
	}
	return checkMovie(candidate, existing)
}

func checkMovie(candidate media.Record, existing *media.Collection) Decision {
	match := existing.FindMovie(candidate.CatalogID)
	if match == nil {
		return Decision{Action: ActionAdd, Reason: "new movie"}
	}
	return sizeDecision(candidate, match)
}

func checkEpisode(candidate media.Record, existing *media.Collection) Decision {
	match := existing.FindEpisode(candidate.CatalogID, candidate.Season, candidate.Episode)
	if match != nil {
		return sizeDecision(candidate, match)
	}
	if existing.HasSeries(candidate.CatalogID) {
		return Decision{
			Action: ActionAdd,
			Reason: fmt.Sprintf("missing episode S%02dE%02d of existing series", candidate.Season, candidate.Episode),
		}
	}
	return Decision{Action: ActionAdd, Reason: "new series"}
}

// sizeDecision applies the filename-based quality heuristic. The sizes are
// estimates sniffed from filename tokens, not real byte counts; the action
// triggers on any difference above the threshold regardless of direction.
func sizeDecision(candidate media.Record, match *media.Record) Decision {
	existingSize := parse.SizeHintMB(match.FileName)
	candidateSize := parse.SizeHintMB(candidate.FileName)

	var diff float64
	switch {
	case existingSize > 0:
		diff = math.Abs(candidateSize-existingSize) / existingSize
	case candidateSize > 0:
		diff = 1
	}

	if diff > upgradeThreshold {
		return Decision{
			IsDuplicate: true,
			Action:      ActionUpdate,
			Reason: fmt.Sprintf("size difference %.0f%% (existing ~%.0fMB, new ~%.0fMB), replacing with better quality",
				diff*100, existingSize, candidateSize),
			Existing: match,
		}
	}
	return Decision{
		IsDuplicate: true,
		Action:      ActionSkip,
		Reason:      "already exists with similar quality",
		Existing:    match,
	}
}
