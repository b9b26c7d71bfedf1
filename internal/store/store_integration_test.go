package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"intelbrief/internal/model"
	"intelbrief/internal/store"
)

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("intelbrief"),
		tcPostgres.WithUsername("intelbrief"),
		tcPostgres.WithPassword("intelbrief"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://intelbrief:intelbrief@%s:%s/intelbrief?sslmode=disable", host, port.Port())
	if err := applySchema(ctx, dsn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.Close()

	t.Run("articles", func(t *testing.T) {
		published := time.Now().Add(-time.Hour).UTC()
		id, err := st.CreateArticle(ctx, model.Article{
			Title:       "Battery breakthrough announced",
			URL:         "https://example.com/battery",
			Content:     "A consortium reported results today.",
			Author:      "Jane Roe",
			Category:    "technology",
			PublishedAt: &published,
		})
		if err != nil {
			t.Fatalf("create article: %v", err)
		}

		items, err := st.UnprocessedArticles(ctx, 10)
		if err != nil {
			t.Fatalf("unprocessed articles: %v", err)
		}
		if len(items) != 1 || items[0].ID != id {
			t.Fatalf("unprocessed articles = %+v", items)
		}

		a := items[0]
		score := 0.85
		now := time.Now().UTC()
		a.QualityScore = &score
		a.Summary = "A consortium reported results today."
		a.Processed = true
		a.ProcessedAt = &now
		if err := st.UpdateArticleAnalysis(ctx, a); err != nil {
			t.Fatalf("update article: %v", err)
		}

		items, err = st.UnprocessedArticles(ctx, 10)
		if err != nil {
			t.Fatalf("unprocessed articles after update: %v", err)
		}
		if len(items) != 0 {
			t.Fatalf("processed article still pending: %+v", items)
		}
	})

	t.Run("trend window", func(t *testing.T) {
		if _, err := st.CreateTrendObservation(ctx, model.TrendObservation{
			Keyword: "fresh", SearchVolume: 100, Category: "technology",
			CollectedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatalf("create trend: %v", err)
		}
		if _, err := st.CreateTrendObservation(ctx, model.TrendObservation{
			Keyword: "stale", SearchVolume: 50, Category: "technology",
			CollectedAt: time.Now().Add(-48 * time.Hour).UTC(),
		}); err != nil {
			t.Fatalf("create stale trend: %v", err)
		}

		items, err := st.UnprocessedTrends(ctx, time.Now().Add(-24*time.Hour), 10)
		if err != nil {
			t.Fatalf("unprocessed trends: %v", err)
		}
		if len(items) != 1 || items[0].Keyword != "fresh" {
			t.Fatalf("window filter failed: %+v", items)
		}
	})

	t.Run("alert dedup and read flag", func(t *testing.T) {
		al := model.Alert{
			Title:     "Trend Analysis: Technology",
			Message:   "Top trend in technology: ai chips",
			AlertType: model.AlertTypeTrendAnalysis,
			Priority:  model.PriorityMedium,
			Category:  "technology",
		}
		if err := st.CreateAlert(ctx, al); err != nil {
			t.Fatalf("create alert: %v", err)
		}

		exists, err := st.AlertExistsSince(ctx, al.Title, time.Now().Add(-6*time.Hour))
		if err != nil || !exists {
			t.Fatalf("recent alert should exist: exists=%v err=%v", exists, err)
		}
		exists, err = st.AlertExistsSince(ctx, "Trend Analysis: Finance", time.Now().Add(-6*time.Hour))
		if err != nil || exists {
			t.Fatalf("other titles must not match: exists=%v err=%v", exists, err)
		}

		pending, err := st.UnprocessedAlerts(ctx, 10)
		if err != nil || len(pending) != 1 {
			t.Fatalf("unprocessed alerts = %+v err=%v", pending, err)
		}
		if err := st.MarkAlertRead(ctx, pending[0].ID); err != nil {
			t.Fatalf("mark read: %v", err)
		}
		pending, err = st.UnprocessedAlerts(ctx, 10)
		if err != nil || len(pending) != 0 {
			t.Fatalf("read alert still pending: %+v err=%v", pending, err)
		}

		if err := st.MarkAlertRead(ctx, "00000000-0000-0000-0000-000000000000"); err != store.ErrNotFound {
			t.Fatalf("missing alert err = %v, want ErrNotFound", err)
		}
	})

	t.Run("analysis records and stats", func(t *testing.T) {
		rec := model.AnalysisRecord{
			AgentKind:       "content_quality",
			InputDigest:     `{"title":"x"}`,
			OutputDigest:    `{"quality_score":0.85}`,
			DurationSeconds: 0.2,
			TokensUsed:      150,
			CostEstimate:    0.0005,
			Success:         true,
			Subject:         model.ArticleRef("11111111-1111-1111-1111-111111111111"),
		}
		if err := st.CreateAnalysis(ctx, rec); err != nil {
			t.Fatalf("create analysis: %v", err)
		}

		got, err := st.RecentAnalyses(ctx, 10)
		if err != nil {
			t.Fatalf("recent analyses: %v", err)
		}
		if len(got) != 1 || got[0].AgentKind != "content_quality" || got[0].Subject.ArticleID == "" {
			t.Fatalf("recent analyses = %+v", got)
		}

		stats, err := st.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.Articles.Total != 1 || stats.Articles.Processed != 1 || stats.Articles.Pending != 0 {
			t.Fatalf("article stats = %+v", stats.Articles)
		}
		if stats.Trends.Total != 2 || stats.Trends.Processed != 0 {
			t.Fatalf("trend stats = %+v", stats.Trends)
		}
	})
}

func applySchema(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	schemaSQL, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000001_init.up.sql"))
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
