// Package deepseek implements the llm.Client contract against DeepSeek's
// OpenAI-compatible chat completions API.
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"intelbrief/internal/llm"
)

const defaultBaseURL = "https://api.deepseek.com/v1"

// DefaultModel is used when the config does not name one.
const DefaultModel = "deepseek-chat"

// rates are USD per million tokens, per model.
var rates = map[string]llm.Rate{
	"deepseek-chat":     {InputPerMillion: 0.27, OutputPerMillion: 1.10},
	"deepseek-reasoner": {InputPerMillion: 0.55, OutputPerMillion: 2.19},
}

// Client talks to the DeepSeek chat completions endpoint.
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

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// New creates a DeepSeek client. An empty apiKey falls back to the
// DEEPSEEK_API_KEY environment variable; if neither is set the client reports
// itself unavailable.
func New(apiKey, model string, timeout time.Duration, opts ...Option) *Client {
	if apiKey == "" {
		apiKey = os.Getenv("DEEPSEEK_API_KEY")
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
func (c *Client) Name() string { return "deepseek" }

// Available implements llm.Client.
func (c *Client) Available() bool { return c.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (llm.Completion, error) {
	if c.apiKey == "" {
		return llm.Completion{}, llm.ErrAuthMissing
	}

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return llm.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return llm.Completion{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return llm.Completion{}, &llm.TimeoutError{Provider: c.Name(), Cause: err}
		}
		return llm.Completion{}, &llm.RequestError{Provider: c.Name(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llm.Completion{}, &llm.RequestError{Provider: c.Name(), Status: resp.StatusCode}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return llm.Completion{}, &llm.RequestError{Provider: c.Name(), Cause: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return llm.Completion{}, &llm.RequestError{Provider: c.Name(), Cause: errors.New("no choices in response")}
	}

	rate := rateFor(c.model)
	return llm.Completion{
		Text:      out.Choices[0].Message.Content,
		TokensIn:  out.Usage.PromptTokens,
		TokensOut: out.Usage.CompletionTokens,
		Cost:      rate.Cost(out.Usage.PromptTokens, out.Usage.CompletionTokens),
	}, nil
}

// rateFor prices unrecognized model names at the default model's rate so cost
// records never silently drop to zero.
func rateFor(model string) llm.Rate {
	if r, ok := rates[model]; ok {
		return r
	}
	return rates[DefaultModel]
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
