// Package store persists content items, alerts and analysis records in
// Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"intelbrief/internal/model"
)

type Store struct {
	DB *sql.DB
}

// New constructs the Store from DATABASE_URL or the POSTGRES_* variables.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// Ping reports database reachability for the health endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// Close releases the connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// Article operations

func (s *Store) CreateArticle(ctx context.Context, a model.Article) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CollectedAt.IsZero() {
		a.CollectedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO articles (id, title, url, content, author, category, published_at, collected_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (url) DO NOTHING
`, a.ID, a.Title, a.URL, a.Content, nullableString(a.Author), a.Category, a.PublishedAt, a.CollectedAt)
	return a.ID, err
}

func (s *Store) UnprocessedArticles(ctx context.Context, limit int) ([]model.Article, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, title, url, content, author, category, published_at, collected_at
FROM articles
WHERE ai_processed = FALSE
ORDER BY collected_at ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Article
	for rows.Next() {
		var a model.Article
		var author sql.NullString
		if err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.Content, &author, &a.Category, &a.PublishedAt, &a.CollectedAt); err != nil {
			return nil, err
		}
		if author.Valid {
			a.Author = author.String
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateArticleAnalysis(ctx context.Context, a model.Article) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE articles
SET quality_score=$2, ai_summary=$3, sentiment_score=$4,
    ai_processed=$5, ai_processed_at=$6, ai_processing_error=$7
WHERE id=$1
`, a.ID, a.QualityScore, nullableString(a.Summary), a.SentimentScore,
		a.Processed, a.ProcessedAt, nullableString(a.ProcessingError))
	return err
}

// Social post operations

func (s *Store) CreateSocialPost(ctx context.Context, p model.SocialPost) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CollectedAt.IsZero() {
		p.CollectedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO social_posts (id, external_id, title, url, content, author, channel, score, num_comments, category, posted_at, collected_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (external_id) DO NOTHING
`, p.ID, p.ExternalID, p.Title, nullableString(p.URL), nullableString(p.Content),
		nullableString(p.Author), p.Channel, p.Score, p.NumComments, p.Category, p.PostedAt, p.CollectedAt)
	return p.ID, err
}

func (s *Store) UnprocessedPosts(ctx context.Context, limit int) ([]model.SocialPost, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, external_id, title, url, content, author, channel, score, num_comments, category, posted_at, collected_at
FROM social_posts
WHERE ai_processed = FALSE
ORDER BY collected_at ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SocialPost
	for rows.Next() {
		var p model.SocialPost
		var url, content, author sql.NullString
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.Title, &url, &content, &author,
			&p.Channel, &p.Score, &p.NumComments, &p.Category, &p.PostedAt, &p.CollectedAt); err != nil {
			return nil, err
		}
		if url.Valid {
			p.URL = url.String
		}
		if content.Valid {
			p.Content = content.String
		}
		if author.Valid {
			p.Author = author.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePostAnalysis(ctx context.Context, p model.SocialPost) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE social_posts
SET quality_score=$2, ai_summary=$3, sentiment_score=$4,
    ai_processed=$5, ai_processed_at=$6, ai_processing_error=$7
WHERE id=$1
`, p.ID, p.QualityScore, nullableString(p.Summary), p.SentimentScore,
		p.Processed, p.ProcessedAt, nullableString(p.ProcessingError))
	return err
}

// Trend operations

func (s *Store) CreateTrendObservation(ctx context.Context, tr model.TrendObservation) (string, error) {
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	if tr.CollectedAt.IsZero() {
		tr.CollectedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO trend_observations (id, keyword, search_volume, trend_score, region, category, collected_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, tr.ID, tr.Keyword, tr.SearchVolume, tr.TrendScore, tr.Region, tr.Category, tr.CollectedAt)
	return tr.ID, err
}

func (s *Store) UnprocessedTrends(ctx context.Context, since time.Time, limit int) ([]model.TrendObservation, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, keyword, search_volume, trend_score, region, category, collected_at
FROM trend_observations
WHERE ai_processed = FALSE AND collected_at > $1
ORDER BY collected_at ASC
LIMIT $2
`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TrendObservation
	for rows.Next() {
		var tr model.TrendObservation
		if err := rows.Scan(&tr.ID, &tr.Keyword, &tr.SearchVolume, &tr.TrendScore,
			&tr.Region, &tr.Category, &tr.CollectedAt); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTrendAnalysis(ctx context.Context, tr model.TrendObservation) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE trend_observations
SET trend_analysis=$2, ai_processed=$3, ai_processed_at=$4
WHERE id=$1
`, tr.ID, nullableString(tr.Analysis), tr.Processed, tr.ProcessedAt)
	return err
}

// Alert operations

func (s *Store) CreateAlert(ctx context.Context, al model.Alert) error {
	if al.ID == "" {
		al.ID = uuid.NewString()
	}
	if al.CreatedAt.IsZero() {
		al.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO alerts (id, title, message, alert_type, priority, category, is_read, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, al.ID, al.Title, al.Message, al.AlertType, al.Priority, nullableString(al.Category), al.IsRead, al.CreatedAt)
	return err
}

func (s *Store) UnprocessedAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, title, message, alert_type, priority, category, is_read, created_at
FROM alerts
WHERE ai_processed = FALSE AND is_read = FALSE
ORDER BY created_at ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (s *Store) UpdateAlertPriority(ctx context.Context, al model.Alert) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE alerts
SET priority=$2, ai_priority_score=$3, ai_summary=$4, ai_processed=$5
WHERE id=$1
`, al.ID, al.Priority, al.PriorityScore, nullableString(al.Summary), al.Processed)
	return err
}

// AlertExistsSince reports whether an alert with the given title was created
// after the cutoff. Drives trend-alert dedup.
func (s *Store) AlertExistsSince(ctx context.Context, title string, since time.Time) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM alerts WHERE title=$1 AND created_at > $2)
`, title, since).Scan(&exists)
	return exists, err
}

// ListAlerts returns newest-first alerts for the API.
func (s *Store) ListAlerts(ctx context.Context, limit int, unreadOnly bool) ([]model.Alert, error) {
	query := `
SELECT id, title, message, alert_type, priority, category, is_read, created_at
FROM alerts
`
	if unreadOnly {
		query += "WHERE is_read = FALSE\n"
	}
	query += "ORDER BY created_at DESC\nLIMIT $1"

	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// ErrNotFound indicates a lookup matched no row.
var ErrNotFound = errors.New("store: not found")

// MarkAlertRead flips is_read for one alert.
func (s *Store) MarkAlertRead(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE alerts SET is_read = TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlerts(rows *sql.Rows) ([]model.Alert, error) {
	var out []model.Alert
	for rows.Next() {
		var al model.Alert
		var category sql.NullString
		if err := rows.Scan(&al.ID, &al.Title, &al.Message, &al.AlertType,
			&al.Priority, &category, &al.IsRead, &al.CreatedAt); err != nil {
			return nil, err
		}
		if category.Valid {
			al.Category = category.String
		}
		out = append(out, al)
	}
	return out, rows.Err()
}

// Analysis records

// CreateAnalysis appends one immutable analysis record. Records are never
// updated or deleted.
func (s *Store) CreateAnalysis(ctx context.Context, rec model.AnalysisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO agent_analyses (id, agent_kind, input_digest, output_digest, duration_seconds,
    tokens_used, cost_estimate, success, error_message, article_id, post_id, trend_id, alert_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`, rec.ID, rec.AgentKind, rec.InputDigest, rec.OutputDigest, rec.DurationSeconds,
		rec.TokensUsed, rec.CostEstimate, rec.Success, nullableString(rec.ErrorMessage),
		nullableString(rec.Subject.ArticleID), nullableString(rec.Subject.PostID),
		nullableString(rec.Subject.TrendID), nullableString(rec.Subject.AlertID), rec.CreatedAt)
	return err
}

// RecentAnalyses returns newest-first analysis records for the API.
func (s *Store) RecentAnalyses(ctx context.Context, limit int) ([]model.AnalysisRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, agent_kind, input_digest, output_digest, duration_seconds,
       tokens_used, cost_estimate, success, error_message, article_id, post_id, trend_id, alert_id, created_at
FROM agent_analyses
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AnalysisRecord
	for rows.Next() {
		var rec model.AnalysisRecord
		var errMsg, articleID, postID, trendID, alertID sql.NullString
		if err := rows.Scan(&rec.ID, &rec.AgentKind, &rec.InputDigest, &rec.OutputDigest,
			&rec.DurationSeconds, &rec.TokensUsed, &rec.CostEstimate, &rec.Success,
			&errMsg, &articleID, &postID, &trendID, &alertID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			rec.ErrorMessage = errMsg.String
		}
		rec.Subject = model.SubjectRef{
			ArticleID: articleID.String,
			PostID:    postID.String,
			TrendID:   trendID.String,
			AlertID:   alertID.String,
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats aggregates processing progress per content kind.
func (s *Store) Stats(ctx context.Context) (model.ProcessingStats, error) {
	var stats model.ProcessingStats
	tables := []struct {
		table string
		dst   *model.KindStats
	}{
		{"articles", &stats.Articles},
		{"social_posts", &stats.Posts},
		{"trend_observations", &stats.Trends},
		{"alerts", &stats.Alerts},
	}
	for _, t := range tables {
		query := fmt.Sprintf(`
SELECT COUNT(*), COUNT(*) FILTER (WHERE ai_processed)
FROM %s
`, t.table)
		if err := s.DB.QueryRowContext(ctx, query).Scan(&t.dst.Total, &t.dst.Processed); err != nil {
			return model.ProcessingStats{}, fmt.Errorf("stats for %s: %w", t.table, err)
		}
		t.dst.Pending = t.dst.Total - t.dst.Processed
	}
	return stats, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
