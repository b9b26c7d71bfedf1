package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"intelbrief/internal/agent"
	"intelbrief/internal/model"
)

// memStore is an in-memory ContentStore for orchestrator tests.
type memStore struct {
	mu       sync.Mutex
	articles []model.Article
	posts    []model.SocialPost
	trends   []model.TrendObservation
	alerts   []model.Alert

	failArticleID string
}

func (m *memStore) UnprocessedArticles(ctx context.Context, limit int) ([]model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Article
	for _, a := range m.articles {
		if !a.Processed && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) UpdateArticleAnalysis(ctx context.Context, a model.Article) error {
	if a.ID == m.failArticleID {
		return fmt.Errorf("simulated write failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.articles {
		if m.articles[i].ID == a.ID {
			m.articles[i] = a
			return nil
		}
	}
	return fmt.Errorf("article %s not found", a.ID)
}

func (m *memStore) UnprocessedPosts(ctx context.Context, limit int) ([]model.SocialPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SocialPost
	for _, p := range m.posts {
		if !p.Processed && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdatePostAnalysis(ctx context.Context, p model.SocialPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].ID == p.ID {
			m.posts[i] = p
			return nil
		}
	}
	return fmt.Errorf("post %s not found", p.ID)
}

func (m *memStore) UnprocessedTrends(ctx context.Context, since time.Time, limit int) ([]model.TrendObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TrendObservation
	for _, tr := range m.trends {
		if !tr.Processed && tr.CollectedAt.After(since) && len(out) < limit {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTrendAnalysis(ctx context.Context, tr model.TrendObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.trends {
		if m.trends[i].ID == tr.ID {
			m.trends[i] = tr
			return nil
		}
	}
	return fmt.Errorf("trend %s not found", tr.ID)
}

func (m *memStore) UnprocessedAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Alert
	for _, al := range m.alerts {
		if !al.Processed && !al.IsRead && len(out) < limit {
			out = append(out, al)
		}
	}
	return out, nil
}

func (m *memStore) UpdateAlertPriority(ctx context.Context, al model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == al.ID {
			m.alerts[i] = al
			return nil
		}
	}
	return fmt.Errorf("alert %s not found", al.ID)
}

func (m *memStore) CreateAlert(ctx context.Context, al model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, al)
	return nil
}

func (m *memStore) AlertExistsSince(ctx context.Context, title string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, al := range m.alerts {
		if al.Title == title && al.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// newTestOrchestrator wires heuristic-only agents over a memStore. Agents are
// enabled with no client, so everything lands on the enhanced tier.
func newTestOrchestrator(store *memStore, opts Options) *Orchestrator {
	logger := log.New(io.Discard, "", 0)
	rec := agent.NewRecorder(nil, nil, logger)
	if opts.ItemDelay == 0 {
		opts.ItemDelay = -1
	}
	return New(store,
		agent.NewQualityAgent(true, nil, rec),
		agent.NewSummaryAgent(true, nil, rec),
		agent.NewTrendAgent(true, nil, rec),
		agent.NewAlertAgent(true, nil, rec),
		NewAlertSynthesizer(store, 0),
		opts, logger)
}

func testArticle(id string) model.Article {
	published := time.Now().Add(-time.Hour)
	return model.Article{
		ID:          id,
		Title:       "Researchers announce breakthrough in solid state batteries",
		Content:     "A research consortium reported a breakthrough today. Early results show strong improvements in energy density. Commercial production remains several years away.",
		Author:      "Jane Roe",
		Category:    "technology",
		PublishedAt: &published,
		CollectedAt: time.Now(),
	}
}

func TestProcessArticlesBatch(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 3; i++ {
		store.articles = append(store.articles, testArticle(fmt.Sprintf("a%d", i)))
	}
	o := newTestOrchestrator(store, Options{})

	n, err := o.ProcessArticles(context.Background())
	if err != nil {
		t.Fatalf("ProcessArticles: %v", err)
	}
	if n != 3 {
		t.Fatalf("processed = %d, want 3", n)
	}
	for _, a := range store.articles {
		if !a.Processed || a.ProcessedAt == nil {
			t.Fatalf("article %s not stamped: %+v", a.ID, a)
		}
		if a.QualityScore == nil {
			t.Fatalf("article %s missing quality score", a.ID)
		}
		if a.Summary == "" {
			t.Fatalf("article %s missing summary", a.ID)
		}
	}
}

func TestProcessArticlesRespectsBatchSize(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 5; i++ {
		store.articles = append(store.articles, testArticle(fmt.Sprintf("a%d", i)))
	}
	o := newTestOrchestrator(store, Options{BatchSize: 2})

	n, err := o.ProcessArticles(context.Background())
	if err != nil {
		t.Fatalf("ProcessArticles: %v", err)
	}
	if n != 2 {
		t.Fatalf("processed = %d, want batch cap 2", n)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := &memStore{
		articles: []model.Article{testArticle("a1")},
		posts: []model.SocialPost{{
			ID: "p1", Title: "Post", Content: strings.Repeat("word ", 30),
			Category: "technology", PostedAt: time.Now(), CollectedAt: time.Now(),
		}},
		trends: []model.TrendObservation{{
			ID: "t1", Keyword: "ai chips", SearchVolume: 9000, TrendScore: 0.9,
			Category: "technology", CollectedAt: time.Now(),
		}},
		alerts: []model.Alert{{
			ID: "al1", Title: "Feed stalled", Message: "collector warning",
			AlertType: model.AlertTypeSystemError, Priority: model.PriorityLow,
			CreatedAt: time.Now(),
		}},
	}
	o := newTestOrchestrator(store, Options{})

	first, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	// the trend phase synthesizes a new alert, prioritized in the same pass
	if first.ArticlesProcessed != 1 || first.PostsProcessed != 1 ||
		first.TrendAnalysesCreated != 1 || first.AlertsPrioritized != 2 {
		t.Fatalf("first run summary = %+v", first)
	}

	second, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second != (model.RunSummary{}) {
		t.Fatalf("second run should be a no-op, got %+v", second)
	}
}

func TestShortPostsSkipSummary(t *testing.T) {
	store := &memStore{posts: []model.SocialPost{
		{ID: "p1", Title: "Short", Content: "tiny body", PostedAt: time.Now(), CollectedAt: time.Now()},
		{ID: "p2", Title: "Long", Content: strings.Repeat("meaningful text ", 10), PostedAt: time.Now(), CollectedAt: time.Now()},
	}}
	o := newTestOrchestrator(store, Options{})

	if _, err := o.ProcessSocialPosts(context.Background()); err != nil {
		t.Fatalf("ProcessSocialPosts: %v", err)
	}
	if store.posts[0].Summary != "" {
		t.Fatalf("short post should not be summarized, got %q", store.posts[0].Summary)
	}
	if store.posts[1].Summary == "" {
		t.Fatalf("long post should be summarized")
	}
	if store.posts[0].QualityScore == nil || store.posts[1].QualityScore == nil {
		t.Fatalf("every post gets a quality score")
	}
}

func TestTrendGroupingAndAlert(t *testing.T) {
	store := &memStore{trends: []model.TrendObservation{
		{ID: "t1", Keyword: "quantum computing", SearchVolume: 5000, Category: "technology", CollectedAt: time.Now()},
		{ID: "t2", Keyword: "ai chips", SearchVolume: 12000, Category: "technology", CollectedAt: time.Now()},
		{ID: "t3", Keyword: "rate cut", SearchVolume: 8000, Category: "finance", CollectedAt: time.Now()},
	}}
	o := newTestOrchestrator(store, Options{})

	n, err := o.ProcessTrendObservations(context.Background())
	if err != nil {
		t.Fatalf("ProcessTrendObservations: %v", err)
	}
	if n != 2 {
		t.Fatalf("alerts created = %d, want one per category", n)
	}
	for _, tr := range store.trends {
		if !tr.Processed || tr.Analysis == "" {
			t.Fatalf("trend %s not synthesized: %+v", tr.ID, tr)
		}
	}
	// technology members share one group analysis
	if store.trends[0].Analysis != store.trends[1].Analysis {
		t.Fatalf("group members should carry the same analysis")
	}

	var titles []string
	for _, al := range store.alerts {
		titles = append(titles, al.Title)
		if al.AlertType != model.AlertTypeTrendAnalysis || al.Priority != model.PriorityMedium {
			t.Fatalf("synthesized alert fields wrong: %+v", al)
		}
	}
	want := []string{"Trend Analysis: Finance", "Trend Analysis: Technology"}
	if len(titles) != 2 || titles[0] != want[0] || titles[1] != want[1] {
		t.Fatalf("alert titles = %v, want %v", titles, want)
	}
}

func TestTrendPassCountsOnlyNewAlerts(t *testing.T) {
	store := &memStore{
		trends: []model.TrendObservation{
			{ID: "t1", Keyword: "ai chips", SearchVolume: 9000, Category: "technology", CollectedAt: time.Now()},
		},
		alerts: []model.Alert{{
			ID: "al0", Title: "Trend Analysis: Technology", Message: "from an earlier pass",
			AlertType: model.AlertTypeTrendAnalysis, Priority: model.PriorityMedium,
			CreatedAt: time.Now().Add(-time.Hour),
		}},
	}
	o := newTestOrchestrator(store, Options{})

	n, err := o.ProcessTrendObservations(context.Background())
	if err != nil {
		t.Fatalf("ProcessTrendObservations: %v", err)
	}
	if n != 0 {
		t.Fatalf("suppressed alert must not count, got %d", n)
	}
	if !store.trends[0].Processed || store.trends[0].Analysis == "" {
		t.Fatalf("observation should still be synthesized and marked: %+v", store.trends[0])
	}
	if len(store.alerts) != 1 {
		t.Fatalf("alerts = %d, want only the pre-existing one", len(store.alerts))
	}
}

func TestTrendWindowExcludesStale(t *testing.T) {
	store := &memStore{trends: []model.TrendObservation{
		{ID: "t1", Keyword: "old news", SearchVolume: 100, Category: "misc", CollectedAt: time.Now().Add(-48 * time.Hour)},
	}}
	o := newTestOrchestrator(store, Options{})

	n, err := o.ProcessTrendObservations(context.Background())
	if err != nil {
		t.Fatalf("ProcessTrendObservations: %v", err)
	}
	if n != 0 {
		t.Fatalf("stale observation should be skipped, analyses = %d", n)
	}
	if store.trends[0].Processed {
		t.Fatalf("stale observation must stay unprocessed")
	}
}

func TestTrendAlertDedup(t *testing.T) {
	store := &memStore{}
	synth := NewAlertSynthesizer(store, 6*time.Hour)
	res := agent.SynthesisResult{Analysis: "Top trend in technology: ai chips"}

	created, err := synth.SynthesizeTrendAlert(context.Background(), "technology", res)
	if err != nil || !created {
		t.Fatalf("first synthesis: created=%v err=%v", created, err)
	}
	created, err = synth.SynthesizeTrendAlert(context.Background(), "technology", res)
	if err != nil {
		t.Fatalf("second synthesis: %v", err)
	}
	if created {
		t.Fatalf("duplicate alert inside the dedup window")
	}
	if len(store.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(store.alerts))
	}

	// an aged-out alert no longer suppresses
	store.alerts[0].CreatedAt = time.Now().Add(-7 * time.Hour)
	created, err = synth.SynthesizeTrendAlert(context.Background(), "technology", res)
	if err != nil || !created {
		t.Fatalf("post-window synthesis: created=%v err=%v", created, err)
	}
}

func TestEmptyAnalysisCreatesNoAlert(t *testing.T) {
	store := &memStore{}
	synth := NewAlertSynthesizer(store, 0)
	created, err := synth.SynthesizeTrendAlert(context.Background(), "technology", agent.SynthesisResult{})
	if err != nil {
		t.Fatalf("SynthesizeTrendAlert: %v", err)
	}
	if created || len(store.alerts) != 0 {
		t.Fatalf("empty analysis must not create an alert")
	}
}

func TestAlertPrioritizationPass(t *testing.T) {
	store := &memStore{alerts: []model.Alert{
		{ID: "al1", Title: "Breaking: markets halt", Message: "Emergency halt triggered",
			AlertType: model.AlertTypeBreakingNews, Priority: model.PriorityLow, CreatedAt: time.Now()},
		{ID: "al2", Title: "Read already", Message: "urgent", IsRead: true, CreatedAt: time.Now()},
	}}
	o := newTestOrchestrator(store, Options{})

	n, err := o.ProcessAlerts(context.Background())
	if err != nil {
		t.Fatalf("ProcessAlerts: %v", err)
	}
	if n != 1 {
		t.Fatalf("prioritized = %d, want 1 (read alerts skipped)", n)
	}
	got := store.alerts[0]
	if !got.Processed || got.PriorityScore == nil {
		t.Fatalf("alert not prioritized: %+v", got)
	}
	if got.Priority != model.PriorityHigh {
		t.Fatalf("priority = %q, want high", got.Priority)
	}
	if store.alerts[1].Processed {
		t.Fatalf("read alert must not be processed")
	}
}

func TestArticleWriteFailureIsIsolated(t *testing.T) {
	store := &memStore{failArticleID: "a1"}
	for i := 0; i < 3; i++ {
		store.articles = append(store.articles, testArticle(fmt.Sprintf("a%d", i)))
	}
	o := newTestOrchestrator(store, Options{})

	n, err := o.ProcessArticles(context.Background())
	if err != nil {
		t.Fatalf("ProcessArticles: %v", err)
	}
	if n != 2 {
		t.Fatalf("processed = %d, want 2 surviving items", n)
	}
	if !store.articles[0].Processed || !store.articles[2].Processed {
		t.Fatalf("batch stopped at the failing item")
	}
}

func TestPauseHonorsCancellation(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 3; i++ {
		store.articles = append(store.articles, testArticle(fmt.Sprintf("a%d", i)))
	}
	o := newTestOrchestrator(store, Options{ItemDelay: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := o.ProcessArticles(ctx)
	if err == nil {
		t.Fatalf("cancelled context should surface")
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1 before the first pause", n)
	}
}
