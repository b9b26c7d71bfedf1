// Package agent implements the four analysis agents and their tiered fallback
// ladders. Every agent exposes Process, which always returns a structurally
// valid result: a failed model call degrades to a deterministic heuristic and
// the failure is captured in the analysis log, never surfaced to the caller.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"intelbrief/internal/model"
	"intelbrief/internal/telemetry"
)

// Agent kinds as persisted in analysis records.
const (
	KindContentQuality      = "content_quality"
	KindSummary             = "summary"
	KindTrendSynthesis      = "trend_synthesis"
	KindAlertPrioritization = "alert_prioritization"
)

// AnalysisLog persists one record per agent invocation.
type AnalysisLog interface {
	CreateAnalysis(ctx context.Context, rec model.AnalysisRecord) error
}

// ContentInput is the common shape quality and summary agents analyze.
// Articles and social posts both reduce to it.
type ContentInput struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Author      string     `json:"author,omitempty"`
	Category    string     `json:"category,omitempty"`
	PublishedAt *time.Time `json:"published_date,omitempty"`
}

// TrendInput is one observation handed to the trend synthesis agent.
type TrendInput struct {
	Keyword      string  `json:"keyword"`
	SearchVolume int     `json:"search_volume"`
	TrendScore   float64 `json:"trend_score"`
	Region       string  `json:"region,omitempty"`
	Category     string  `json:"category"`
}

// AlertInput is the shape handed to the alert prioritization agent.
type AlertInput struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	AlertType string    `json:"alert_type"`
	Priority  string    `json:"priority"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// usage carries model spend into the analysis record; zero for heuristic tiers.
type usage struct {
	provider string
	tokens   int
	cost     float64
}

// Recorder writes the per-invocation audit trail shared by all agents.
// It is composed into agents rather than inherited: agents own their ladder,
// the recorder owns persistence and telemetry.
type Recorder struct {
	log    AnalysisLog
	tele   *telemetry.Telemetry
	logger *log.Logger
}

// NewRecorder creates a Recorder. tele may be nil; logger defaults to a
// prefixed stdlib logger.
func NewRecorder(analysisLog AnalysisLog, tele *telemetry.Telemetry, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	}
	return &Recorder{log: analysisLog, tele: tele, logger: logger}
}

// record persists one AnalysisRecord and emits telemetry. Logging failures are
// reported but never propagate into the agent result.
func (r *Recorder) record(ctx context.Context, kind string, subject model.SubjectRef, input, output interface{}, start time.Time, u usage, success bool, errMsg string, method string) {
	duration := time.Since(start)

	if r.tele != nil {
		r.tele.RecordAgentEvent(telemetry.AgentEvent{
			AgentKind:  kind,
			Method:     method,
			Duration:   duration,
			Success:    success,
			TokensUsed: u.tokens,
			Cost:       u.cost,
			Provider:   u.provider,
		})
	}

	if r.log == nil {
		return
	}
	rec := model.AnalysisRecord{
		ID:              uuid.NewString(),
		AgentKind:       kind,
		InputDigest:     digest(input),
		OutputDigest:    digest(output),
		DurationSeconds: duration.Seconds(),
		TokensUsed:      u.tokens,
		CostEstimate:    u.cost,
		Success:         success,
		ErrorMessage:    errMsg,
		Subject:         subject,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.log.CreateAnalysis(ctx, rec); err != nil {
		r.logger.Printf("warn: persist analysis record (%s): %v", kind, err)
	}
}

func digest(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// clamp bounds a score to [0, 1].
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// splitSentences mirrors the naive ". " split the heuristics are defined over.
func splitSentences(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, ". ")
}

// extractJSON strips common markdown fencing so model output parses as JSON.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
	}
	return strings.TrimSpace(text)
}
