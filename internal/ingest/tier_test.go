package ingest_test

import (
	"testing"

	"github.com/moorline/moorline/internal/ingest"
)

func TestExtractTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		wantTier ingest.Tier
		wantText string
	}{
		{
			name:     "uppercase directive",
			text:     "TIER: FREE Kioni has good holding.",
			wantTier: ingest.TierFree,
			wantText: "Kioni has good holding.",
		},
		{
			name:     "lowercase directive",
			text:     "tier: exclusive QUESTION: Vathi mooring?",
			wantTier: ingest.TierExclusive,
			wantText: "QUESTION: Vathi mooring?",
		},
		{
			name:     "leading whitespace",
			text:     "  Tier: Pro  HARBOUR: Frikes",
			wantTier: ingest.TierPro,
			wantText: "HARBOUR: Frikes",
		},
		{
			name:     "no directive defaults to pro",
			text:     "QUESTION: Where to anchor in Vathi?",
			wantTier: ingest.TierPro,
			wantText: "QUESTION: Where to anchor in Vathi?",
		},
		{
			name:     "unknown tier value left intact",
			text:     "TIER: gold Kioni notes",
			wantTier: ingest.TierPro,
			wantText: "TIER: gold Kioni notes",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tier, text := ingest.ExtractTier(tc.text)
			if tier != tc.wantTier {
				t.Errorf("tier: expected %q, got %q", tc.wantTier, tier)
			}
			if text != tc.wantText {
				t.Errorf("text: expected %q, got %q", tc.wantText, text)
			}
		})
	}
}
