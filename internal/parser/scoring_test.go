package parser

import "testing"

func TestScoreLinksDropsMalformedAndDecaysByDepth(t *testing.T) {
	links := []string{"https://example.com/a", "", "https://example.com/b"}

	shallow := ScoreLinks(links, 0)
	if len(shallow) != 2 {
		t.Fatalf("expected 2 scored links (empty string dropped), got %d", len(shallow))
	}

	deep := ScoreLinks(links, 5)
	if len(deep) != 2 {
		t.Fatalf("expected 2 scored links, got %d", len(deep))
	}

	if !(shallow[0].Score > deep[0].Score) {
		t.Fatalf("expected shallower discoveries to score higher: shallow=%v deep=%v", shallow[0].Score, deep[0].Score)
	}
}
