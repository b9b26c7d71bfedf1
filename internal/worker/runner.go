// Package worker runs the pipeline on a cron schedule with an optional
// distributed lock so overlapping deployments never double-process.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"intelbrief/internal/pipeline"
)

// Runner triggers pipeline passes on a cron schedule.
type Runner struct {
	orch   *pipeline.Orchestrator
	expr   *cronexpr.Expression
	lock   *RunLock
	logger *log.Logger
}

// NewRunner parses the cron spec and builds the runner. lock may be nil.
func NewRunner(orch *pipeline.Orchestrator, cronSpec string, lock *RunLock, logger *log.Logger) (*Runner, error) {
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", cronSpec, err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
	}
	return &Runner{orch: orch, expr: expr, lock: lock, logger: logger}, nil
}

// Start blocks, firing one pass at each scheduled time, until ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Printf("worker started, next run at %s", r.expr.Next(time.Now()).Format(time.RFC3339))
	for {
		next := r.expr.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("cron schedule has no future runs")
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		r.RunOnce(ctx)
	}
}

// RunOnce performs a single locked pipeline pass.
func (r *Runner) RunOnce(ctx context.Context) {
	acquired, err := r.lock.Acquire(ctx)
	if err != nil {
		r.logger.Printf("warn: acquire run lock: %v", err)
		return
	}
	if !acquired {
		r.logger.Printf("another instance holds the run lock, skipping pass")
		return
	}
	defer r.lock.Release(ctx)

	sum, err := r.orch.Run(ctx)
	if err != nil {
		r.logger.Printf("warn: pipeline pass finished with error: %v", err)
	}
	r.logger.Printf("pass summary: articles=%d posts=%d trend_analyses=%d alerts=%d",
		sum.ArticlesProcessed, sum.PostsProcessed, sum.TrendAnalysesCreated, sum.AlertsPrioritized)
}
