package deepseek

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"intelbrief/internal/llm"
)

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"content":"a fine summary"}}],
			"usage":{"prompt_tokens":1000,"completion_tokens":200}
		}`))
	}))
	defer srv.Close()

	c := New("test-key", "deepseek-chat", time.Second, WithBaseURL(srv.URL))
	out, err := c.Complete(context.Background(), "sys", "user", 256, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "a fine summary" {
		t.Fatalf("text = %q", out.Text)
	}
	if out.Tokens() != 1200 {
		t.Fatalf("tokens = %d, want 1200", out.Tokens())
	}
	// 1000 in at $0.27/M + 200 out at $1.10/M
	want := 0.27/1000 + 1.10/5000
	if diff := out.Cost - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cost = %f, want %f", out.Cost, want)
	}
}

func TestCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New("test-key", "", time.Second, WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), "", "hello", 64, 0)
	var re *llm.RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if re.Status != http.StatusBadGateway {
		t.Fatalf("status = %d", re.Status)
	}
}

func TestCompleteMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New("test-key", "", time.Second, WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), "", "hello", 64, 0); !llm.IsTransient(err) {
		t.Fatalf("empty choices should classify as request failure, got %v", err)
	}
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New("test-key", "", 20*time.Millisecond, WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), "", "hello", 64, 0)
	var te *llm.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestUnknownModelUsesDefaultRate(t *testing.T) {
	if r := rateFor("deepseek-experimental"); r != rates[DefaultModel] {
		t.Fatalf("unknown model rate = %+v, want default model rate", r)
	}
	if r := rateFor("deepseek-reasoner"); r != rates["deepseek-reasoner"] {
		t.Fatalf("known model rate = %+v", r)
	}
}

func TestUnavailableWithoutKey(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	c := New("", "", time.Second)
	if c.Available() {
		t.Fatalf("client without key should be unavailable")
	}
	if _, err := c.Complete(context.Background(), "", "hello", 64, 0); !errors.Is(err, llm.ErrAuthMissing) {
		t.Fatalf("expected ErrAuthMissing, got %v", err)
	}
}
