package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"intelbrief/internal/llm"
	"intelbrief/internal/model"
)

// PriorityResult is the outcome of one alert prioritization pass.
type PriorityResult struct {
	PriorityScore float64  `json:"priority_score"`
	PriorityLevel string   `json:"priority_level"`
	Method        string   `json:"method"`
	Factors       []string `json:"factors,omitempty"`
	Reasoning     string   `json:"reasoning,omitempty"`
}

// AlertAgent scores alerts for urgency and assigns a priority level.
type AlertAgent struct {
	enabled bool
	client  llm.Client
	rec     *Recorder
}

// NewAlertAgent constructs the agent.
func NewAlertAgent(enabled bool, client llm.Client, rec *Recorder) *AlertAgent {
	return &AlertAgent{enabled: enabled, client: client, rec: rec}
}

const alertSystemPrompt = `You triage alerts for an intelligence briefing system. Score the alert's
urgency on a 0.0-1.0 scale and assign a level. Respond ONLY with JSON:
{"priority_score": <float 0-1>, "priority_level": "low|medium|high|critical", "reasoning": "<one sentence>"}`

var urgencyKeywords = []string{"breaking", "urgent", "critical", "emergency", "alert"}

var alertTypeBonus = map[string]float64{
	"breaking_news": 0.8,
	"trend_spike":   0.6,
	"system_error":  0.4,
}

// Process prioritizes one alert. Never returns an error; failures land on the
// keyword tiers.
func (a *AlertAgent) Process(ctx context.Context, in AlertInput, subject model.SubjectRef) (res PriorityResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = basicPriority(in)
			a.rec.record(ctx, KindAlertPrioritization, subject, in, res, start, usage{}, false, fmt.Sprintf("panic: %v", p), res.Method)
		}
	}()

	if !a.enabled {
		res = basicPriority(in)
		a.rec.record(ctx, KindAlertPrioritization, subject, in, res, start, usage{}, true, "", res.Method)
		return res
	}
	if a.client == nil || !a.client.Available() {
		res = enhancedPriority(in)
		a.rec.record(ctx, KindAlertPrioritization, subject, in, res, start, usage{}, true, "", res.Method)
		return res
	}

	out, err := a.client.Complete(ctx, alertSystemPrompt, alertUserPrompt(in), 512, 0.2)
	if err != nil {
		if errors.Is(err, llm.ErrAuthMissing) {
			res = enhancedPriority(in)
			a.rec.record(ctx, KindAlertPrioritization, subject, in, res, start, usage{}, true, "", res.Method)
			return res
		}
		res = basicPriority(in)
		a.rec.record(ctx, KindAlertPrioritization, subject, in, res, start, usage{}, false, err.Error(), res.Method)
		return res
	}

	u := usage{provider: a.client.Name(), tokens: out.Tokens(), cost: out.Cost}
	parsed, perr := parsePriorityResponse(out.Text)
	if perr != nil {
		res = enhancedPriority(in)
		a.rec.record(ctx, KindAlertPrioritization, subject, in, res, start, u, true, "", res.Method)
		return res
	}
	res = parsed
	a.rec.record(ctx, KindAlertPrioritization, subject, in, res, start, u, true, "", res.Method)
	return res
}

func alertUserPrompt(in AlertInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", in.Title)
	fmt.Fprintf(&b, "Message: %s\n", in.Message)
	fmt.Fprintf(&b, "Type: %s\n", in.AlertType)
	if in.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", in.Category)
	}
	fmt.Fprintf(&b, "Created: %s\n", in.CreatedAt.Format(time.RFC3339))
	return b.String()
}

var validPriorityLevels = map[string]struct{}{
	model.PriorityLow:      {},
	model.PriorityMedium:   {},
	model.PriorityHigh:     {},
	model.PriorityCritical: {},
}

func parsePriorityResponse(text string) (PriorityResult, error) {
	var parsed struct {
		PriorityScore *float64 `json:"priority_score"`
		PriorityLevel string   `json:"priority_level"`
		Reasoning     string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return PriorityResult{}, fmt.Errorf("parse priority response: %w", err)
	}
	if parsed.PriorityScore == nil || math.IsNaN(*parsed.PriorityScore) || *parsed.PriorityScore < 0 || *parsed.PriorityScore > 1 {
		return PriorityResult{}, fmt.Errorf("priority score out of range")
	}
	level := strings.ToLower(strings.TrimSpace(parsed.PriorityLevel))
	if _, ok := validPriorityLevels[level]; !ok {
		return PriorityResult{}, fmt.Errorf("unknown priority level %q", parsed.PriorityLevel)
	}
	return PriorityResult{
		PriorityScore: *parsed.PriorityScore,
		PriorityLevel: level,
		Method:        "prioritization_ai",
		Reasoning:     parsed.Reasoning,
	}, nil
}

// basicPriority scans the message alone for urgency keywords.
func basicPriority(in AlertInput) PriorityResult {
	score := 0.5
	message := strings.ToLower(in.Message)
	var factors []string
	for _, kw := range urgencyKeywords {
		if strings.Contains(message, kw) {
			score += 0.2
			factors = append(factors, "keyword_"+kw)
		}
	}
	score = clamp(score)
	return PriorityResult{
		PriorityScore: score,
		PriorityLevel: levelFor(score),
		Method:        "fallback_keyword",
		Factors:       factors,
	}
}

// enhancedPriority weighs keywords in title and message, the alert type, and
// recency.
func enhancedPriority(in AlertInput) PriorityResult {
	score := 0.3
	var factors []string

	text := strings.ToLower(in.Title + " " + in.Message)
	for _, kw := range append(urgencyKeywords, "warning") {
		if strings.Contains(text, kw) {
			score += 0.2
			factors = append(factors, "keyword_"+kw)
		}
	}

	if bonus, ok := alertTypeBonus[in.AlertType]; ok {
		score += bonus
		factors = append(factors, "type_"+in.AlertType)
	}

	if !in.CreatedAt.IsZero() && time.Since(in.CreatedAt) < time.Hour {
		score += 0.1
		factors = append(factors, "time_sensitive")
	}

	score = clamp(score)
	return PriorityResult{
		PriorityScore: score,
		PriorityLevel: levelFor(score),
		Method:        "enhanced_prioritization",
		Factors:       factors,
	}
}

func levelFor(score float64) string {
	switch {
	case score > 0.7:
		return model.PriorityHigh
	case score > 0.4:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}
