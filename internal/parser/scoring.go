package parser

import (
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
)

// ScoreLinks turns the raw links a Parser discovers into polite.ScoredURL
// values ready for Manager.Offer. Score decays with parentDepth so
// shallower discoveries outrank deeper ones within the same domain queue —
// upstream scoring is an input to the scheduler, never reimplemented by it.
// Malformed links (rejected by NewScoredURL) are dropped rather than
// failing the whole batch.
func ScoreLinks(links []string, parentDepth int) []polite.ScoredURL {
	score := 1.0 / float64(parentDepth+2)

	scored := make([]polite.ScoredURL, 0, len(links))
	for _, link := range links {
		u, err := polite.NewScoredURL(link, score, nil)
		if err != nil {
			continue
		}
		scored = append(scored, u)
	}
	return scored
}
