package polite

import (
	"fmt"
	"math"
)

// ScoredURL is a value record offered to a DomainQueue by an upstream
// scorer: a normalized URL plus an opaque metadata bag, ordered by score
// descending (URL ascending as tiebreak).
type ScoredURL struct {
	NormalizedURL string
	Score         float64
	Metadata      map[string]string
}

// NewScoredURL constructs a ScoredURL, validating that normalizedURL is
// non-empty and score is finite (spec's "score is finite" invariant).
func NewScoredURL(normalizedURL string, score float64, metadata map[string]string) (ScoredURL, error) {
	if normalizedURL == "" {
		return ScoredURL{}, fmt.Errorf("polite: normalized URL must not be empty")
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return ScoredURL{}, fmt.Errorf("polite: score must be finite, got %v", score)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	return ScoredURL{NormalizedURL: normalizedURL, Score: score, Metadata: metadata}, nil
}

// less reports whether a sorts strictly before b in the canonical order:
// score descending, URL ascending as tiebreak.
func less(a, b ScoredURL) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.NormalizedURL < b.NormalizedURL
}
