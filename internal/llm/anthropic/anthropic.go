// Package anthropic implements the llm.Client contract against the Claude
// messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"intelbrief/internal/llm"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
)

// DefaultModel is used when the config does not name one.
const DefaultModel = "claude-3-5-haiku-latest"

// rates are USD per million tokens, per model family.
var rates = map[string]llm.Rate{
	"claude-3-5-haiku":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"claude-3-5-sonnet": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-opus":     {InputPerMillion: 15.00, OutputPerMillion: 75.00},
}

// Client talks to the Anthropic messages endpoint.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// New creates an Anthropic client. An empty apiKey falls back to the
// ANTHROPIC_API_KEY environment variable.
func New(apiKey, model string, timeout time.Duration, opts ...Option) *Client {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	c := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements llm.Client.
func (c *Client) Name() string { return "anthropic" }

// Available implements llm.Client.
func (c *Client) Available() bool { return c.apiKey != "" }

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	// Temperature is a pointer so zero survives serialization.
	Temperature *float64 `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (llm.Completion, error) {
	if c.apiKey == "" {
		return llm.Completion{}, llm.ErrAuthMissing
	}

	body, err := json.Marshal(messagesRequest{
		Model:       c.model,
		System:      system,
		Messages:    []message{{Role: "user", Content: user}},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return llm.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return llm.Completion{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return llm.Completion{}, &llm.TimeoutError{Provider: c.Name(), Cause: err}
		}
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return llm.Completion{}, &llm.TimeoutError{Provider: c.Name(), Cause: err}
		}
		return llm.Completion{}, &llm.RequestError{Provider: c.Name(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llm.Completion{}, &llm.RequestError{Provider: c.Name(), Status: resp.StatusCode}
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return llm.Completion{}, &llm.RequestError{Provider: c.Name(), Cause: fmt.Errorf("decode response: %w", err)}
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return llm.Completion{
		Text:      text.String(),
		TokensIn:  out.Usage.InputTokens,
		TokensOut: out.Usage.OutputTokens,
		Cost:      rateFor(c.model).Cost(out.Usage.InputTokens, out.Usage.OutputTokens),
	}, nil
}

// rateFor matches a concrete model name like "claude-3-5-haiku-latest" to its
// pricing family.
func rateFor(model string) llm.Rate {
	for family, rate := range rates {
		if strings.HasPrefix(model, family) {
			return rate
		}
	}
	return llm.Rate{}
}
