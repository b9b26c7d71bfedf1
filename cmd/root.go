package main

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"intelbrief/config"
	"intelbrief/internal/agent"
	"intelbrief/internal/llm"
	"intelbrief/internal/llm/anthropic"
	"intelbrief/internal/llm/deepseek"
	"intelbrief/internal/pipeline"
	"intelbrief/internal/store"
	"intelbrief/internal/telemetry"
)

func main() {
	root := &cobra.Command{Use: "intelbrief", Short: "AI processing pipeline for collected intelligence content"}
	root.AddCommand(runCMD(), workerCMD(), serveCMD(), migrateCMD())
	_ = root.Execute()
}

// app bundles the shared dependency graph built from config.
type app struct {
	cfg   *config.Config
	store *store.Store
	tele  *telemetry.Telemetry
	orch  *pipeline.Orchestrator
	redis *redis.Client
}

func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var reg prometheus.Registerer
	if cfg.Telemetry.Enabled {
		reg = prometheus.DefaultRegisterer
	}
	tele := telemetry.New(log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags), reg)

	client, err := buildLLMClient(cfg)
	if err != nil {
		return nil, err
	}

	rec := agent.NewRecorder(st, tele, nil)
	enabled := cfg.AI.Enabled
	orch := pipeline.New(st,
		agent.NewQualityAgent(enabled, client, rec),
		agent.NewSummaryAgent(enabled, client, rec),
		agent.NewTrendAgent(enabled, client, rec),
		agent.NewAlertAgent(enabled, client, rec),
		pipeline.NewAlertSynthesizer(st, cfg.Pipeline.AlertDedupWindow),
		pipeline.Options{
			BatchSize:   cfg.Pipeline.BatchSize,
			ItemDelay:   cfg.Pipeline.ItemDelay,
			TrendWindow: cfg.Pipeline.TrendWindow,
		}, nil)

	var rdb *redis.Client
	if cfg.Storage.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
	}

	return &app{cfg: cfg, store: st, tele: tele, orch: orch, redis: rdb}, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.store.Close()
}

func buildLLMClient(cfg *config.Config) (llm.Client, error) {
	timeout := cfg.LLM.Timeout
	switch cfg.LLM.Provider {
	case "deepseek":
		var opts []deepseek.Option
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, deepseek.WithBaseURL(cfg.LLM.BaseURL))
		}
		return deepseek.New(cfg.LLM.DeepSeekAPIKey, cfg.LLM.Model, timeout, opts...), nil
	case "anthropic":
		var opts []anthropic.Option
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.LLM.BaseURL))
		}
		return anthropic.New(cfg.LLM.AnthropicAPIKey, cfg.LLM.Model, timeout, opts...), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
