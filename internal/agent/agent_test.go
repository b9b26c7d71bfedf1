package agent

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"intelbrief/internal/llm"
	"intelbrief/internal/model"
)

// fakeClient is a scripted llm.Client for agent tests.
type fakeClient struct {
	name      string
	available bool
	text      string
	err       error
	calls     int
}

func (f *fakeClient) Name() string    { return f.name }
func (f *fakeClient) Available() bool { return f.available }

func (f *fakeClient) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (llm.Completion, error) {
	f.calls++
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: f.text, TokensIn: 100, TokensOut: 50, Cost: 0.001}, nil
}

// memLog captures analysis records in memory.
type memLog struct {
	mu      sync.Mutex
	records []model.AnalysisRecord
}

func (m *memLog) CreateAnalysis(ctx context.Context, rec model.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memLog) last(t *testing.T) model.AnalysisRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		t.Fatalf("no analysis records written")
	}
	return m.records[len(m.records)-1]
}

func newTestRecorder() (*Recorder, *memLog) {
	ml := &memLog{}
	logger := log.New(io.Discard, "", 0)
	return NewRecorder(ml, nil, logger), ml
}

func TestRecorderPersistsRecord(t *testing.T) {
	rec, ml := newTestRecorder()
	rec.record(context.Background(), KindSummary, model.ArticleRef("a1"),
		ContentInput{Title: "t"}, SummaryResult{Summary: "s"},
		time.Now(), usage{provider: "deepseek", tokens: 150, cost: 0.001},
		true, "", "summary_ai")

	got := ml.last(t)
	if got.AgentKind != KindSummary {
		t.Fatalf("agent kind = %q, want %q", got.AgentKind, KindSummary)
	}
	if got.Subject.ArticleID != "a1" {
		t.Fatalf("subject article id = %q, want a1", got.Subject.ArticleID)
	}
	if got.TokensUsed != 150 || got.CostEstimate != 0.001 {
		t.Fatalf("usage not carried: tokens=%d cost=%f", got.TokensUsed, got.CostEstimate)
	}
	if got.ID == "" || got.CreatedAt.IsZero() {
		t.Fatalf("record missing id or timestamp: %+v", got)
	}
}

func TestExtractJSONFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                     "{\"a\":1}",
		"```json\n{\"a\":1}\n```":       "{\"a\":1}",
		"```\n{\"a\":1}\n```":           "{\"a\":1}",
		"  ```json\n{\"a\":1}\n```   ":  "{\"a\":1}",
	}
	for in, want := range cases {
		if got := extractJSON(in); got != want {
			t.Errorf("extractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(1.3); got != 1 {
		t.Fatalf("clamp(1.3) = %f, want 1", got)
	}
	if got := clamp(-0.2); got != 0 {
		t.Fatalf("clamp(-0.2) = %f, want 0", got)
	}
	if got := clamp(0.6); got != 0.6 {
		t.Fatalf("clamp(0.6) = %f, want 0.6", got)
	}
}
