package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"intelbrief/internal/llm"
	"intelbrief/internal/model"
)

// SynthesisResult is the outcome of one trend synthesis pass over a group of
// observations.
type SynthesisResult struct {
	Analysis    string   `json:"analysis"`
	Method      string   `json:"method"`
	Categories  []string `json:"categories_analyzed"`
	TotalTrends int      `json:"total_trends"`
	Insights    []string `json:"insights"`
}

// TrendAgent synthesizes cross-observation insight for grouped trend data.
type TrendAgent struct {
	enabled bool
	client  llm.Client
	rec     *Recorder
}

// NewTrendAgent constructs the agent.
func NewTrendAgent(enabled bool, client llm.Client, rec *Recorder) *TrendAgent {
	return &TrendAgent{enabled: enabled, client: client, rec: rec}
}

const trendSystemPrompt = `You are a strategic trend analyst. Given a set of trending keywords with
search volumes, write a short strategic analysis of what they signify together.
Plain text, 2-4 sentences.`

// Process synthesizes one batch of observations. A lone observation is handled
// the same as a singleton batch. Never returns an error; model failures revert
// to the enhanced heuristic.
func (a *TrendAgent) Process(ctx context.Context, in []TrendInput, subject model.SubjectRef) (res SynthesisResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = basicSynthesis(in)
			a.rec.record(ctx, KindTrendSynthesis, subject, in, res, start, usage{}, false, fmt.Sprintf("panic: %v", p), res.Method)
		}
	}()

	if !a.enabled {
		res = basicSynthesis(in)
		a.rec.record(ctx, KindTrendSynthesis, subject, in, res, start, usage{}, true, "", res.Method)
		return res
	}
	if a.client == nil || !a.client.Available() {
		res = enhancedSynthesis(in)
		a.rec.record(ctx, KindTrendSynthesis, subject, in, res, start, usage{}, true, "", res.Method)
		return res
	}

	out, err := a.client.Complete(ctx, trendSystemPrompt, trendUserPrompt(in), 512, 0.4)
	if err != nil {
		// trend synthesis always has a usable grouped heuristic; degrade there
		res = enhancedSynthesis(in)
		success := !llm.IsTransient(err)
		errMsg := ""
		if !success {
			errMsg = err.Error()
		}
		a.rec.record(ctx, KindTrendSynthesis, subject, in, res, start, usage{}, success, errMsg, res.Method)
		return res
	}

	u := usage{provider: a.client.Name(), tokens: out.Tokens(), cost: out.Cost}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		res = enhancedSynthesis(in)
		a.rec.record(ctx, KindTrendSynthesis, subject, in, res, start, u, true, "", res.Method)
		return res
	}

	enhanced := enhancedSynthesis(in)
	res = SynthesisResult{
		Analysis:    text,
		Method:      "synthesis_ai",
		Categories:  enhanced.Categories,
		TotalTrends: len(in),
		Insights:    enhanced.Insights,
	}
	a.rec.record(ctx, KindTrendSynthesis, subject, in, res, start, u, true, "", res.Method)
	return res
}

func trendUserPrompt(in []TrendInput) string {
	b, _ := json.Marshal(in)
	return fmt.Sprintf("Trending observations:\n%s", string(b))
}

// basicSynthesis reports only the loudest observation.
func basicSynthesis(in []TrendInput) SynthesisResult {
	if len(in) == 0 {
		return SynthesisResult{Analysis: "No trend data available", Method: "fallback_basic"}
	}
	top := in[0]
	for _, t := range in[1:] {
		if t.SearchVolume > top.SearchVolume {
			top = t
		}
	}
	return SynthesisResult{
		Analysis:    fmt.Sprintf("Trend detected for '%s' with search volume %d", top.Keyword, top.SearchVolume),
		Method:      "fallback_basic",
		Categories:  []string{top.Category},
		TotalTrends: len(in),
	}
}

// enhancedSynthesis groups by category: a "multiple trends" note per crowded
// category and the loudest keyword for every category.
func enhancedSynthesis(in []TrendInput) SynthesisResult {
	groups := make(map[string][]TrendInput)
	for _, t := range in {
		category := t.Category
		if category == "" {
			category = "unknown"
		}
		groups[category] = append(groups[category], t)
	}

	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var insights []string
	for _, category := range categories {
		members := groups[category]
		if len(members) > 1 {
			insights = append(insights, fmt.Sprintf("Multiple trends detected in %s category", category))
		}
		top := members[0]
		for _, t := range members[1:] {
			if t.SearchVolume > top.SearchVolume {
				top = t
			}
		}
		insights = append(insights, fmt.Sprintf("Top trend in %s: %s", category, top.Keyword))
	}

	return SynthesisResult{
		Analysis:    strings.Join(insights, ". "),
		Method:      "enhanced_synthesis",
		Categories:  categories,
		TotalTrends: len(in),
		Insights:    insights,
	}
}
