// Package llm defines the model client contract shared by all providers.
//
// A client makes exactly one attempt per call: retries and degradation are the
// caller's concern, not the transport's.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

// Client is the interface every LLM provider implements.
type Client interface {
	// Name identifies the provider in telemetry and analysis records.
	Name() string

	// Available reports whether a credential is configured. When false,
	// Complete must not be called; agents short-circuit to their heuristics
	// instead of waiting on a network timeout.
	Available() bool

	// Complete sends one prompt pair and returns the model output with token
	// usage and estimated cost. A single attempt is made; no internal retry.
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (Completion, error)
}

// Completion is the result of a successful model call.
type Completion struct {
	Text      string
	TokensIn  int
	TokensOut int
	Cost      float64
}

// Tokens returns total token usage for the call.
func (c Completion) Tokens() int { return c.TokensIn + c.TokensOut }

// ErrAuthMissing indicates no API key is configured for the provider.
var ErrAuthMissing = errors.New("llm: api key not configured")

// RequestError indicates a network failure or non-success response.
type RequestError struct {
	Provider string
	Status   int
	Cause    error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm: %s request failed with status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("llm: %s request failed: %v", e.Provider, e.Cause)
}

func (e *RequestError) Unwrap() error { return e.Cause }

// TimeoutError indicates the call exceeded its deadline.
type TimeoutError struct {
	Provider string
	Cause    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("llm: %s request timed out: %v", e.Provider, e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// IsTransient reports whether err is a request failure or timeout, the two
// classes that degrade an agent to its basic heuristic with success=false.
func IsTransient(err error) bool {
	var re *RequestError
	var te *TimeoutError
	return errors.As(err, &re) || errors.As(err, &te)
}

// Rate holds a provider's USD price per million tokens for one model.
type Rate struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Cost computes the USD cost of a call under this rate.
func (r Rate) Cost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)/1_000_000*r.InputPerMillion +
		float64(tokensOut)/1_000_000*r.OutputPerMillion
}
