package anthropic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteJoinsTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key header = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != apiVersion {
			t.Errorf("anthropic-version header = %q", got)
		}
		_, _ = w.Write([]byte(`{
			"content":[{"type":"text","text":"part one. "},{"type":"text","text":"part two."}],
			"usage":{"input_tokens":500,"output_tokens":100}
		}`))
	}))
	defer srv.Close()

	c := New("test-key", "claude-3-5-haiku-latest", time.Second, WithBaseURL(srv.URL))
	out, err := c.Complete(context.Background(), "sys", "user", 256, 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "part one. part two." {
		t.Fatalf("text = %q", out.Text)
	}
	want := 0.80*500/1_000_000 + 4.00*100/1_000_000
	if diff := out.Cost - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cost = %f, want %f", out.Cost, want)
	}
}

func TestRateForUnknownModel(t *testing.T) {
	if r := rateFor("mystery-model"); r.Cost(1000, 1000) != 0 {
		t.Fatalf("unknown model should have zero rate")
	}
}
