package agent

import "testing"

func TestSentimentPolarity(t *testing.T) {
	cases := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"no hits", "the quick brown fox", 0},
		{"all positive", "a great success, excellent progress", 1},
		{"all negative", "crisis and collapse, a clear failure", -1},
		{"mixed", "strong growth despite the crisis", 1.0 / 3.0},
		{"punctuation stripped", "Excellent! (Really excellent.)", 1},
		{"case folded", "GREAT Win", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sentimentPolarity(tc.text)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("sentimentPolarity(%q) = %f, want %f", tc.text, got, tc.want)
			}
		})
	}
}
