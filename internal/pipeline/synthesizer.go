package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"intelbrief/internal/agent"
	"intelbrief/internal/model"
)

// DefaultDedupWindow suppresses a repeat trend alert for the same category.
const DefaultDedupWindow = 6 * time.Hour

// AlertSynthesizer turns trend analyses into alerts, deduplicated by title
// within a trailing window.
type AlertSynthesizer struct {
	store  ContentStore
	window time.Duration
}

// NewAlertSynthesizer builds a synthesizer. A non-positive window uses the
// default.
func NewAlertSynthesizer(store ContentStore, window time.Duration) *AlertSynthesizer {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &AlertSynthesizer{store: store, window: window}
}

// SynthesizeTrendAlert creates one trend alert for a category unless an alert
// with the same title already exists inside the dedup window. Reports whether
// an alert was created.
func (s *AlertSynthesizer) SynthesizeTrendAlert(ctx context.Context, category string, res agent.SynthesisResult) (bool, error) {
	if res.Analysis == "" {
		return false, nil
	}

	title := TrendAlertTitle(category)
	exists, err := s.store.AlertExistsSince(ctx, title, time.Now().Add(-s.window))
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if exists {
		return false, nil
	}

	alert := model.Alert{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   res.Analysis,
		AlertType: model.AlertTypeTrendAnalysis,
		Priority:  model.PriorityMedium,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}
	return true, nil
}

// TrendAlertTitle is the canonical, dedup-keyed title for a category.
func TrendAlertTitle(category string) string {
	return "Trend Analysis: " + titleCase(category)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
