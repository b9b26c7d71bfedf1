package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"intelbrief/internal/llm"
	"intelbrief/internal/model"
)

const maxSummaryLength = 300

// SummaryResult is the outcome of one summarization pass.
type SummaryResult struct {
	Summary          string  `json:"summary"`
	Method           string  `json:"method"`
	OriginalLength   int     `json:"original_length"`
	SummaryLength    int     `json:"summary_length"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// SummaryAgent produces short extractive or model-generated summaries.
type SummaryAgent struct {
	enabled bool
	client  llm.Client
	rec     *Recorder
}

// NewSummaryAgent constructs the agent.
func NewSummaryAgent(enabled bool, client llm.Client, rec *Recorder) *SummaryAgent {
	return &SummaryAgent{enabled: enabled, client: client, rec: rec}
}

const summarySystemPrompt = `You summarize news content. Respond with a 2-3 sentence plain text summary.
No preamble, no markdown.`

// Process summarizes one content item. Never returns an error; failures land
// on the extractive tiers.
func (a *SummaryAgent) Process(ctx context.Context, in ContentInput, subject model.SubjectRef) (res SummaryResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = basicSummary(in)
			a.rec.record(ctx, KindSummary, subject, in, res, start, usage{}, false, fmt.Sprintf("panic: %v", p), res.Method)
		}
	}()

	// nothing to compress
	if in.Content == "" {
		res = SummaryResult{Summary: in.Title, Method: "title_only"}
		a.rec.record(ctx, KindSummary, subject, in, res, start, usage{}, true, "", res.Method)
		return res
	}

	if !a.enabled {
		res = basicSummary(in)
		a.rec.record(ctx, KindSummary, subject, in, res, start, usage{}, true, "", res.Method)
		return res
	}
	if a.client == nil || !a.client.Available() {
		res = enhancedSummary(in)
		a.rec.record(ctx, KindSummary, subject, in, res, start, usage{}, true, "", res.Method)
		return res
	}

	out, err := a.client.Complete(ctx, summarySystemPrompt, summaryUserPrompt(in), 512, 0.3)
	if err != nil {
		if errors.Is(err, llm.ErrAuthMissing) {
			res = enhancedSummary(in)
			a.rec.record(ctx, KindSummary, subject, in, res, start, usage{}, true, "", res.Method)
			return res
		}
		res = basicSummary(in)
		a.rec.record(ctx, KindSummary, subject, in, res, start, usage{}, false, err.Error(), res.Method)
		return res
	}

	u := usage{provider: a.client.Name(), tokens: out.Tokens(), cost: out.Cost}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		res = enhancedSummary(in)
		a.rec.record(ctx, KindSummary, subject, in, res, start, u, true, "", res.Method)
		return res
	}

	res = SummaryResult{
		Summary:          text,
		Method:           "summary_ai",
		OriginalLength:   len(in.Content),
		SummaryLength:    len(text),
		CompressionRatio: float64(len(text)) / float64(len(in.Content)),
	}
	a.rec.record(ctx, KindSummary, subject, in, res, start, u, true, "", res.Method)
	return res
}

func summaryUserPrompt(in ContentInput) string {
	return fmt.Sprintf("Title: %s\n\n%s", in.Title, in.Content)
}

// basicSummary takes the first sentence only.
func basicSummary(in ContentInput) SummaryResult {
	sentences := splitSentences(in.Content)
	summary := in.Content
	if len(summary) > 200 {
		summary = summary[:200]
	}
	if len(sentences) > 0 {
		summary = sentences[0]
	}
	return SummaryResult{
		Summary:          summary,
		Method:           "fallback_extractive",
		OriginalLength:   len(in.Content),
		SummaryLength:    len(summary),
		CompressionRatio: ratio(len(summary), len(in.Content)),
	}
}

// enhancedSummary keeps short bodies whole, otherwise joins the first and last
// sentence and caps the result at maxSummaryLength.
func enhancedSummary(in ContentInput) SummaryResult {
	sentences := splitSentences(in.Content)

	var summary string
	if len(sentences) <= 3 {
		summary = in.Content
	} else {
		summary = sentences[0] + ". " + sentences[len(sentences)-1]
	}
	if len(summary) > maxSummaryLength {
		cut := maxSummaryLength - 3
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + "..."
	}

	return SummaryResult{
		Summary:          summary,
		Method:           "enhanced_extractive",
		OriginalLength:   len(in.Content),
		SummaryLength:    len(summary),
		CompressionRatio: ratio(len(summary), len(in.Content)),
	}
}

func ratio(summary, original int) float64 {
	if original == 0 {
		return 0
	}
	return float64(summary) / float64(original)
}
