// Package telemetry tracks agent invocation metrics and LLM spend.
package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AgentEvent describes one completed agent invocation.
type AgentEvent struct {
	AgentKind  string
	Method     string
	Duration   time.Duration
	Success    bool
	TokensUsed int
	Cost       float64
	Provider   string
}

// Telemetry aggregates invocation counts, latencies and cost across agents.
type Telemetry struct {
	logger *log.Logger

	invocations *prometheus.CounterVec
	tokens      *prometheus.CounterVec
	cost        *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	mu      sync.RWMutex
	summary Summary
}

// Summary is a point-in-time snapshot of the cost tracker.
type Summary struct {
	TotalInvocations int64
	Failures         int64
	TotalTokens      int64
	TotalCost        float64
	CostByAgent      map[string]float64
	CostByProvider   map[string]float64
}

// New creates a Telemetry instance and registers its collectors with reg.
// A nil registerer skips registration, which keeps tests independent.
func New(logger *log.Logger, reg prometheus.Registerer) *Telemetry {
	if logger == nil {
		logger = log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags)
	}
	t := &Telemetry{
		logger: logger,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelbrief_agent_invocations_total",
			Help: "Agent invocations by kind, method tag and outcome.",
		}, []string{"agent", "method", "success"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelbrief_llm_tokens_total",
			Help: "LLM tokens consumed by provider.",
		}, []string{"provider"}),
		cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelbrief_llm_cost_usd_total",
			Help: "Estimated LLM spend in USD by provider.",
		}, []string{"provider"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intelbrief_agent_duration_seconds",
			Help:    "Agent invocation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
		summary: Summary{
			CostByAgent:    make(map[string]float64),
			CostByProvider: make(map[string]float64),
		},
	}
	if reg != nil {
		reg.MustRegister(t.invocations, t.tokens, t.cost, t.duration)
	}
	return t
}

// RecordAgentEvent records one agent invocation.
func (t *Telemetry) RecordAgentEvent(ev AgentEvent) {
	success := "true"
	if !ev.Success {
		success = "false"
	}
	t.invocations.WithLabelValues(ev.AgentKind, ev.Method, success).Inc()
	t.duration.WithLabelValues(ev.AgentKind).Observe(ev.Duration.Seconds())
	if ev.Provider != "" {
		t.tokens.WithLabelValues(ev.Provider).Add(float64(ev.TokensUsed))
		t.cost.WithLabelValues(ev.Provider).Add(ev.Cost)
	}

	t.mu.Lock()
	t.summary.TotalInvocations++
	if !ev.Success {
		t.summary.Failures++
	}
	t.summary.TotalTokens += int64(ev.TokensUsed)
	t.summary.TotalCost += ev.Cost
	t.summary.CostByAgent[ev.AgentKind] += ev.Cost
	if ev.Provider != "" {
		t.summary.CostByProvider[ev.Provider] += ev.Cost
	}
	t.mu.Unlock()

	t.logger.Printf("agent=%s method=%s success=%t duration=%v tokens=%d cost=$%.4f",
		ev.AgentKind, ev.Method, ev.Success, ev.Duration, ev.TokensUsed, ev.Cost)
}

// CostSummary returns a copy of the current totals.
func (t *Telemetry) CostSummary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.summary
	out.CostByAgent = make(map[string]float64, len(t.summary.CostByAgent))
	for k, v := range t.summary.CostByAgent {
		out.CostByAgent[k] = v
	}
	out.CostByProvider = make(map[string]float64, len(t.summary.CostByProvider))
	for k, v := range t.summary.CostByProvider {
		out.CostByProvider[k] = v
	}
	return out
}
