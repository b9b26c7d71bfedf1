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

// QualityResult is the outcome of one content quality scoring pass.
type QualityResult struct {
	QualityScore float64        `json:"quality_score"`
	Method       string         `json:"method"`
	Factors      []string       `json:"factors"`
	Sentiment    float64        `json:"sentiment,omitempty"`
	Metrics      QualityMetrics `json:"metrics"`
}

// QualityMetrics are descriptive measurements attached to enhanced and
// model-backed results.
type QualityMetrics struct {
	TitleLength       int `json:"title_length"`
	ContentLength     int `json:"content_length"`
	EstimatedReadTime int `json:"estimated_read_time"`
}

// QualityAgent scores content quality on a 0..1 scale.
type QualityAgent struct {
	enabled bool
	client  llm.Client
	rec     *Recorder
}

// NewQualityAgent constructs the agent. A nil client is treated as unavailable.
func NewQualityAgent(enabled bool, client llm.Client, rec *Recorder) *QualityAgent {
	return &QualityAgent{enabled: enabled, client: client, rec: rec}
}

const qualitySystemPrompt = `You are a content quality analyst. Score the article on a 0.0-1.0 scale
considering depth, clarity, sourcing and completeness. Respond ONLY with JSON:
{"quality_score": <float 0-1>, "factors": ["<short factor>", ...]}`

// Process scores one content item. It never returns an error and never panics:
// every failure path lands on a heuristic tier and is captured in the analysis log.
func (a *QualityAgent) Process(ctx context.Context, in ContentInput, subject model.SubjectRef) (res QualityResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = basicQuality(in)
			a.rec.record(ctx, KindContentQuality, subject, in, res, start, usage{}, false, fmt.Sprintf("panic: %v", p), res.Method)
		}
	}()

	if !a.enabled {
		res = basicQuality(in)
		a.rec.record(ctx, KindContentQuality, subject, in, res, start, usage{}, true, "", res.Method)
		return res
	}
	if a.client == nil || !a.client.Available() {
		res = enhancedQuality(in)
		a.rec.record(ctx, KindContentQuality, subject, in, res, start, usage{}, true, "", res.Method)
		return res
	}

	out, err := a.client.Complete(ctx, qualitySystemPrompt, qualityUserPrompt(in), 512, 0.2)
	if err != nil {
		if errors.Is(err, llm.ErrAuthMissing) {
			res = enhancedQuality(in)
			a.rec.record(ctx, KindContentQuality, subject, in, res, start, usage{}, true, "", res.Method)
			return res
		}
		res = basicQuality(in)
		a.rec.record(ctx, KindContentQuality, subject, in, res, start, usage{}, false, err.Error(), res.Method)
		return res
	}

	u := usage{provider: a.client.Name(), tokens: out.Tokens(), cost: out.Cost}
	parsed, perr := parseQualityResponse(out.Text, in)
	if perr != nil {
		// usable result still produced, so the invocation counts as a success
		res = enhancedQuality(in)
		a.rec.record(ctx, KindContentQuality, subject, in, res, start, u, true, "", res.Method)
		return res
	}
	res = parsed
	a.rec.record(ctx, KindContentQuality, subject, in, res, start, u, true, "", res.Method)
	return res
}

func qualityUserPrompt(in ContentInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", in.Title)
	if in.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", in.Author)
	}
	fmt.Fprintf(&b, "Content:\n%s\n", in.Content)
	return b.String()
}

func parseQualityResponse(text string, in ContentInput) (QualityResult, error) {
	var parsed struct {
		QualityScore *float64 `json:"quality_score"`
		Factors      []string `json:"factors"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return QualityResult{}, fmt.Errorf("parse quality response: %w", err)
	}
	if parsed.QualityScore == nil || math.IsNaN(*parsed.QualityScore) || *parsed.QualityScore < 0 || *parsed.QualityScore > 1 {
		return QualityResult{}, fmt.Errorf("quality score out of range")
	}
	return QualityResult{
		QualityScore: *parsed.QualityScore,
		Method:       "quality_ai",
		Factors:      parsed.Factors,
		Metrics:      qualityMetrics(in),
	}, nil
}

// basicQuality is the bottom tier: neutral base with coarse presence checks.
func basicQuality(in ContentInput) QualityResult {
	score := 0.5
	if len(in.Title) > 50 {
		score += 0.1
	}
	if len(in.Content) > 500 {
		score += 0.2
	}
	if in.Author != "" {
		score += 0.1
	}
	if in.PublishedAt != nil {
		score += 0.1
	}
	return QualityResult{
		QualityScore: clamp(score),
		Method:       "fallback_heuristic",
		Factors:      []string{"title_length", "content_length", "has_author", "has_date"},
		Metrics:      qualityMetrics(in),
	}
}

// enhancedQuality adds readability and sentiment signals on top of the basics.
func enhancedQuality(in ContentInput) QualityResult {
	score := 0.3
	var factors []string

	if l := len(in.Title); l >= 20 && l <= 100 {
		score += 0.15
		factors = append(factors, "good_title_length")
	}
	if len(in.Content) > 500 {
		score += 0.2
		factors = append(factors, "sufficient_content")
	}

	var polarity float64
	if in.Content != "" {
		sentences := splitSentences(in.Content)
		var words int
		for _, s := range sentences {
			words += len(strings.Fields(s))
		}
		avg := float64(words) / float64(len(sentences))
		if avg >= 10 && avg <= 25 {
			score += 0.1
			factors = append(factors, "good_readability")
		}

		polarity = sentimentPolarity(in.Content)
		if math.Abs(polarity) > 0.1 {
			score += 0.05
			factors = append(factors, "clear_sentiment")
		}
	}

	if in.Author != "" {
		score += 0.1
		factors = append(factors, "has_author")
	}
	if in.PublishedAt != nil {
		score += 0.1
		factors = append(factors, "has_date")
	}

	return QualityResult{
		QualityScore: clamp(score),
		Method:       "enhanced_heuristic",
		Factors:      factors,
		Sentiment:    polarity,
		Metrics:      qualityMetrics(in),
	}
}

func qualityMetrics(in ContentInput) QualityMetrics {
	return QualityMetrics{
		TitleLength:       len(in.Title),
		ContentLength:     len(in.Content),
		EstimatedReadTime: len(in.Content) / 200,
	}
}
