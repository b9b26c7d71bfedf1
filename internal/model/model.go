package model

import (
	"time"
)

// ContentKind distinguishes the item variants flowing through the pipeline.
type ContentKind string

const (
	KindArticle          ContentKind = "article"
	KindSocialPost       ContentKind = "social_post"
	KindTrendObservation ContentKind = "trend_observation"
	KindAlert            ContentKind = "alert"
)

// Alert types emitted by collectors and by the pipeline itself.
const (
	AlertTypeBreakingNews  = "breaking_news"
	AlertTypeTrendSpike    = "trend_spike"
	AlertTypeSystemError   = "system_error"
	AlertTypeTrendAnalysis = "trend_analysis"
)

// Alert priority levels.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Article is a collected news article subject to AI analysis.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content"`
	Author      string     `json:"author,omitempty"`
	Category    string     `json:"category"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CollectedAt time.Time  `json:"collected_at"`

	QualityScore    *float64   `json:"quality_score,omitempty"`
	Summary         string     `json:"ai_summary,omitempty"`
	SentimentScore  *float64   `json:"sentiment_score,omitempty"`
	Processed       bool       `json:"ai_processed"`
	ProcessedAt     *time.Time `json:"ai_processed_at,omitempty"`
	ProcessingError string     `json:"ai_processing_error,omitempty"`
}

// SocialPost is a collected social media post subject to AI analysis.
type SocialPost struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Content     string    `json:"content,omitempty"`
	Author      string    `json:"author,omitempty"`
	Channel     string    `json:"channel"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	Category    string    `json:"category"`
	PostedAt    time.Time `json:"posted_at"`
	CollectedAt time.Time `json:"collected_at"`

	QualityScore    *float64   `json:"quality_score,omitempty"`
	Summary         string     `json:"ai_summary,omitempty"`
	SentimentScore  *float64   `json:"sentiment_score,omitempty"`
	Processed       bool       `json:"ai_processed"`
	ProcessedAt     *time.Time `json:"ai_processed_at,omitempty"`
	ProcessingError string     `json:"ai_processing_error,omitempty"`
}

// TrendObservation is a single keyword volume reading from a trends collector.
type TrendObservation struct {
	ID           string    `json:"id"`
	Keyword      string    `json:"keyword"`
	SearchVolume int       `json:"search_volume"`
	TrendScore   float64   `json:"trend_score"`
	Region       string    `json:"region"`
	Category     string    `json:"category"`
	CollectedAt  time.Time `json:"collected_at"`

	Analysis    string     `json:"trend_analysis,omitempty"`
	Processed   bool       `json:"ai_processed"`
	ProcessedAt *time.Time `json:"ai_processed_at,omitempty"`
}

// Alert is a notification artifact, either collected or synthesized by the pipeline.
type Alert struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	AlertType string    `json:"alert_type"`
	Priority  string    `json:"priority"`
	Category  string    `json:"category"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`

	PriorityScore *float64 `json:"ai_priority_score,omitempty"`
	Summary       string   `json:"ai_summary,omitempty"`
	Processed     bool     `json:"ai_processed"`
}

// SubjectRef points an AnalysisRecord at exactly one content item. At most one
// field is non-empty.
type SubjectRef struct {
	ArticleID string `json:"article_id,omitempty"`
	PostID    string `json:"post_id,omitempty"`
	TrendID   string `json:"trend_id,omitempty"`
	AlertID   string `json:"alert_id,omitempty"`
}

// ArticleRef builds a subject reference for an article.
func ArticleRef(id string) SubjectRef { return SubjectRef{ArticleID: id} }

// PostRef builds a subject reference for a social post.
func PostRef(id string) SubjectRef { return SubjectRef{PostID: id} }

// TrendRef builds a subject reference for a trend observation.
func TrendRef(id string) SubjectRef { return SubjectRef{TrendID: id} }

// AlertRef builds a subject reference for an alert.
func AlertRef(id string) SubjectRef { return SubjectRef{AlertID: id} }

// IsZero reports whether the reference points at nothing.
func (r SubjectRef) IsZero() bool {
	return r.ArticleID == "" && r.PostID == "" && r.TrendID == "" && r.AlertID == ""
}

// AnalysisRecord is the immutable audit entry for one agent invocation.
type AnalysisRecord struct {
	ID              string     `json:"id"`
	AgentKind       string     `json:"agent_kind"`
	InputDigest     string     `json:"input_digest"`
	OutputDigest    string     `json:"output_digest"`
	DurationSeconds float64    `json:"duration_seconds"`
	TokensUsed      int        `json:"tokens_used"`
	CostEstimate    float64    `json:"cost_estimate"`
	Success         bool       `json:"success"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	Subject         SubjectRef `json:"subject"`
	CreatedAt       time.Time  `json:"created_at"`
}

// RunSummary is returned to the scheduler after one full pipeline pass.
type RunSummary struct {
	ArticlesProcessed    int `json:"articles_processed"`
	PostsProcessed       int `json:"posts_processed"`
	TrendAnalysesCreated int `json:"trend_analyses_created"`
	AlertsPrioritized    int `json:"alerts_prioritized"`
}

// KindStats summarizes processing progress for one content kind.
type KindStats struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Pending   int `json:"pending"`
}

// ProcessingStats aggregates progress across all content kinds.
type ProcessingStats struct {
	Articles KindStats `json:"articles"`
	Posts    KindStats `json:"social_posts"`
	Trends   KindStats `json:"trends"`
	Alerts   KindStats `json:"alerts"`
}
