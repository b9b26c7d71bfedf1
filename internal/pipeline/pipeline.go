// Package pipeline orchestrates the analysis agents over collected content.
//
// One Run walks every content kind in a fixed order, in bounded batches, and
// marks each item processed exactly once. Item failures are isolated: the item
// is stamped with its error and the batch moves on.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"intelbrief/internal/agent"
	"intelbrief/internal/model"
)

// Defaults applied when Options fields are zero.
const (
	DefaultBatchSize   = 50
	DefaultItemDelay   = time.Second
	DefaultTrendWindow = 24 * time.Hour
)

// ContentStore is the persistence surface the orchestrator consumes.
type ContentStore interface {
	UnprocessedArticles(ctx context.Context, limit int) ([]model.Article, error)
	UpdateArticleAnalysis(ctx context.Context, a model.Article) error

	UnprocessedPosts(ctx context.Context, limit int) ([]model.SocialPost, error)
	UpdatePostAnalysis(ctx context.Context, p model.SocialPost) error

	UnprocessedTrends(ctx context.Context, since time.Time, limit int) ([]model.TrendObservation, error)
	UpdateTrendAnalysis(ctx context.Context, tr model.TrendObservation) error

	UnprocessedAlerts(ctx context.Context, limit int) ([]model.Alert, error)
	UpdateAlertPriority(ctx context.Context, al model.Alert) error

	CreateAlert(ctx context.Context, al model.Alert) error
	AlertExistsSince(ctx context.Context, title string, since time.Time) (bool, error)
}

// Options tune one orchestrator instance. A negative ItemDelay disables the
// inter-item pause entirely.
type Options struct {
	BatchSize   int
	ItemDelay   time.Duration
	TrendWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ItemDelay == 0 {
		o.ItemDelay = DefaultItemDelay
	}
	if o.TrendWindow <= 0 {
		o.TrendWindow = DefaultTrendWindow
	}
	return o
}

// Orchestrator drives the four agents over pending content.
type Orchestrator struct {
	store   ContentStore
	quality *agent.QualityAgent
	summary *agent.SummaryAgent
	trends  *agent.TrendAgent
	alerts  *agent.AlertAgent
	synth   *AlertSynthesizer
	opts    Options
	logger  *log.Logger
}

// New builds an orchestrator. synth may be nil to disable trend alerts.
func New(store ContentStore, quality *agent.QualityAgent, summary *agent.SummaryAgent,
	trends *agent.TrendAgent, alerts *agent.AlertAgent, synth *AlertSynthesizer,
	opts Options, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	return &Orchestrator{
		store:   store,
		quality: quality,
		summary: summary,
		trends:  trends,
		alerts:  alerts,
		synth:   synth,
		opts:    opts.withDefaults(),
		logger:  logger,
	}
}

// Run performs one full pass over every content kind. A failing phase is
// logged and the remaining phases still run.
func (o *Orchestrator) Run(ctx context.Context) (model.RunSummary, error) {
	var sum model.RunSummary
	var firstErr error

	o.logger.Printf("starting full pipeline pass")

	n, err := o.ProcessArticles(ctx)
	sum.ArticlesProcessed = n
	firstErr = keepFirst(firstErr, o.phaseErr("articles", err))

	n, err = o.ProcessSocialPosts(ctx)
	sum.PostsProcessed = n
	firstErr = keepFirst(firstErr, o.phaseErr("social posts", err))

	n, err = o.ProcessTrendObservations(ctx)
	sum.TrendAnalysesCreated = n
	firstErr = keepFirst(firstErr, o.phaseErr("trends", err))

	n, err = o.ProcessAlerts(ctx)
	sum.AlertsPrioritized = n
	firstErr = keepFirst(firstErr, o.phaseErr("alerts", err))

	o.logger.Printf("pass complete: articles=%d posts=%d trend_analyses=%d alerts=%d",
		sum.ArticlesProcessed, sum.PostsProcessed, sum.TrendAnalysesCreated, sum.AlertsPrioritized)
	return sum, firstErr
}

func (o *Orchestrator) phaseErr(phase string, err error) error {
	if err == nil {
		return nil
	}
	o.logger.Printf("warn: %s phase: %v", phase, err)
	return fmt.Errorf("%s phase: %w", phase, err)
}

func keepFirst(have, next error) error {
	if have != nil {
		return have
	}
	return next
}

// ProcessArticles scores and summarizes one batch of unprocessed articles.
// Returns the number of items marked processed.
func (o *Orchestrator) ProcessArticles(ctx context.Context) (int, error) {
	items, err := o.store.UnprocessedArticles(ctx, o.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("load articles: %w", err)
	}

	count := 0
	for i := range items {
		if i > 0 {
			if err := o.pause(ctx); err != nil {
				return count, err
			}
		}
		art := items[i]
		o.analyzeArticle(ctx, &art)
		stamp(&art.Processed, &art.ProcessedAt)
		if err := o.store.UpdateArticleAnalysis(ctx, art); err != nil {
			o.logger.Printf("warn: persist article %s: %v", art.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

func (o *Orchestrator) analyzeArticle(ctx context.Context, art *model.Article) {
	defer func() {
		if p := recover(); p != nil {
			art.ProcessingError = fmt.Sprintf("processing panic: %v", p)
		}
	}()

	in := agent.ContentInput{
		Title:       art.Title,
		Content:     art.Content,
		Author:      art.Author,
		Category:    art.Category,
		PublishedAt: art.PublishedAt,
	}
	ref := model.ArticleRef(art.ID)

	q := o.quality.Process(ctx, in, ref)
	art.QualityScore = &q.QualityScore
	if q.Sentiment != 0 {
		s := q.Sentiment
		art.SentimentScore = &s
	}

	res := o.summary.Process(ctx, in, ref)
	art.Summary = res.Summary
}

// ProcessSocialPosts scores one batch of unprocessed posts. Posts are only
// summarized when they carry enough body text to compress.
func (o *Orchestrator) ProcessSocialPosts(ctx context.Context) (int, error) {
	items, err := o.store.UnprocessedPosts(ctx, o.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("load posts: %w", err)
	}

	count := 0
	for i := range items {
		if i > 0 {
			if err := o.pause(ctx); err != nil {
				return count, err
			}
		}
		post := items[i]
		o.analyzePost(ctx, &post)
		stamp(&post.Processed, &post.ProcessedAt)
		if err := o.store.UpdatePostAnalysis(ctx, post); err != nil {
			o.logger.Printf("warn: persist post %s: %v", post.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

const postSummaryThreshold = 100

func (o *Orchestrator) analyzePost(ctx context.Context, post *model.SocialPost) {
	defer func() {
		if p := recover(); p != nil {
			post.ProcessingError = fmt.Sprintf("processing panic: %v", p)
		}
	}()

	in := agent.ContentInput{
		Title:    post.Title,
		Content:  post.Content,
		Author:   post.Author,
		Category: post.Category,
	}
	ref := model.PostRef(post.ID)

	q := o.quality.Process(ctx, in, ref)
	post.QualityScore = &q.QualityScore
	if q.Sentiment != 0 {
		s := q.Sentiment
		post.SentimentScore = &s
	}

	if len(post.Content) > postSummaryThreshold {
		res := o.summary.Process(ctx, in, ref)
		post.Summary = res.Summary
	}
}

// ProcessTrendObservations synthesizes recent trends once per category and
// marks every observation in a synthesized group processed. Returns the number
// of trend alerts created; a category whose alert was suppressed by the dedup
// window contributes nothing to the count.
func (o *Orchestrator) ProcessTrendObservations(ctx context.Context) (int, error) {
	since := time.Now().Add(-o.opts.TrendWindow)
	items, err := o.store.UnprocessedTrends(ctx, since, o.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("load trends: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	groups := make(map[string][]model.TrendObservation)
	for _, tr := range items {
		groups[tr.Category] = append(groups[tr.Category], tr)
	}
	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	count := 0
	for gi, category := range categories {
		if gi > 0 {
			if err := o.pause(ctx); err != nil {
				return count, err
			}
		}
		members := groups[category]

		inputs := make([]agent.TrendInput, len(members))
		for i, tr := range members {
			inputs[i] = agent.TrendInput{
				Keyword:      tr.Keyword,
				SearchVolume: tr.SearchVolume,
				TrendScore:   tr.TrendScore,
				Region:       tr.Region,
				Category:     tr.Category,
			}
		}

		res := o.trends.Process(ctx, inputs, model.TrendRef(members[0].ID))

		for i := range members {
			tr := members[i]
			tr.Analysis = res.Analysis
			stamp(&tr.Processed, &tr.ProcessedAt)
			if err := o.store.UpdateTrendAnalysis(ctx, tr); err != nil {
				o.logger.Printf("warn: persist trend %s: %v", tr.ID, err)
			}
		}

		if o.synth == nil {
			continue
		}
		created, err := o.synth.SynthesizeTrendAlert(ctx, category, res)
		if err != nil {
			o.logger.Printf("warn: trend alert for %s: %v", category, err)
			continue
		}
		if created {
			o.logger.Printf("created trend alert for category %s", category)
			count++
		}
	}
	return count, nil
}

// ProcessAlerts prioritizes one batch of unprocessed, unread alerts. Returns
// the number of alerts marked processed.
func (o *Orchestrator) ProcessAlerts(ctx context.Context) (int, error) {
	items, err := o.store.UnprocessedAlerts(ctx, o.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("load alerts: %w", err)
	}

	count := 0
	for i := range items {
		if i > 0 {
			if err := o.pause(ctx); err != nil {
				return count, err
			}
		}
		al := items[i]
		o.analyzeAlert(ctx, &al)
		al.Processed = true
		if err := o.store.UpdateAlertPriority(ctx, al); err != nil {
			o.logger.Printf("warn: persist alert %s: %v", al.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

var knownPriorities = map[string]struct{}{
	model.PriorityLow:      {},
	model.PriorityMedium:   {},
	model.PriorityHigh:     {},
	model.PriorityCritical: {},
}

func (o *Orchestrator) analyzeAlert(ctx context.Context, al *model.Alert) {
	in := agent.AlertInput{
		Title:     al.Title,
		Message:   al.Message,
		AlertType: al.AlertType,
		Priority:  al.Priority,
		Category:  al.Category,
		CreatedAt: al.CreatedAt,
	}
	res := o.alerts.Process(ctx, in, model.AlertRef(al.ID))

	score := res.PriorityScore
	al.PriorityScore = &score
	// an unrecognized level leaves the collector-assigned priority standing
	if _, ok := knownPriorities[res.PriorityLevel]; ok {
		al.Priority = res.PriorityLevel
	}
	if res.Reasoning != "" {
		al.Summary = res.Reasoning
	}
}

// pause waits the configured inter-item delay, honoring cancellation.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.opts.ItemDelay <= 0 {
		return nil
	}
	t := time.NewTimer(o.opts.ItemDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stamp(processed *bool, at **time.Time) {
	*processed = true
	now := time.Now().UTC()
	*at = &now
}
