package reconcile

import (
	"math"
	"testing"
)

func TestFormatRelevance(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{0.8234, "82.3%"},
		{1.0, "100.0%"},
		{0.0, "0.0%"},
		{0.5, "50.0%"},
		{0.06, "6.0%"},
		{1.25, "125.0%"},
		{0.8125, "81.3%"},
		{0.0625, "6.3%"},
		{0.5625, "56.3%"},
		{0.0005, "0.1%"},
		{-0.0625, "-6.3%"},
		{0.8124, "81.2%"},
		{0.00049, "0.0%"},
	}

	for _, tt := range tests {
		if got := FormatRelevance(tt.score); got != tt.expected {
			t.Errorf("FormatRelevance(%v) = %q, want %q", tt.score, got, tt.expected)
		}
	}
}

func TestRelevanceLabelBoundaries(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{1.5, "Excellent"},
		{1.0, "Excellent"},
		{0.8, "Excellent"},
		{0.79999, "Good"},
		{0.6, "Good"},
		{0.59999, "Fair"},
		{0.4, "Fair"},
		{0.39999, "Low"},
		{0, "Low"},
		{-0.5, "Low"},
		{math.NaN(), "Low"},
	}

	for _, tt := range tests {
		if got := RelevanceLabel(tt.score); got != tt.expected {
			t.Errorf("RelevanceLabel(%v) = %q, want %q", tt.score, got, tt.expected)
		}
	}
}

func TestTierMonotonic(t *testing.T) {
	prev := TierFor(2)
	for score := 1.2; score >= -0.2; score -= 0.001 {
		cur := TierFor(score)
		if cur > prev {
			t.Fatalf("tier rose from %v to %v as score dropped to %v", prev, cur, score)
		}
		switch cur {
		case TierExcellent, TierGood, TierFair, TierLow:
		default:
			t.Fatalf("TierFor(%v) returned unknown tier %d", score, cur)
		}
		prev = cur
	}
}

func TestTierColorsDistinct(t *testing.T) {
	seen := map[Color]Tier{}
	for _, tier := range []Tier{TierExcellent, TierGood, TierFair, TierLow} {
		c := tier.Color()
		if other, dup := seen[c]; dup {
			t.Errorf("tiers %v and %v share color %q", other, tier, c)
		}
		seen[c] = tier
	}
	if RelevanceColor(0.9) != ColorGreen || RelevanceColor(0.1) != ColorOrange {
		t.Errorf("unexpected extremal colors: %q, %q", RelevanceColor(0.9), RelevanceColor(0.1))
	}
}

func TestRelevance(t *testing.T) {
	info := Relevance(0.65)
	if info.Percent != "65.0%" || info.Label != "Good" || info.Color != ColorBlue || info.Tier != TierGood {
		t.Errorf("unexpected relevance info: %+v", info)
	}
}

func TestRelevanceNonFinite(t *testing.T) {
	tests := []struct {
		score   float64
		percent string
		tier    Tier
	}{
		{math.Inf(1), "0.0%", TierExcellent},
		{math.Inf(-1), "0.0%", TierLow},
		{math.NaN(), "0.0%", TierLow},
	}

	for _, tt := range tests {
		info := Relevance(tt.score)
		if info.Percent != tt.percent || info.Tier != tt.tier || info.Label != tt.tier.Label() {
			t.Errorf("Relevance(%v) = %+v, want percent %q tier %v", tt.score, info, tt.percent, tt.tier)
		}
	}
}
