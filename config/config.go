// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the processing pipeline.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	AI        AIConfig        `mapstructure:"ai"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// AIConfig toggles model-backed analysis. When disabled, every agent runs its
// basic heuristic only.
type AIConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"` // deepseek or anthropic
	Model           string        `mapstructure:"model"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DeepSeekAPIKey  string        `mapstructure:"deepseek_api_key"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
}

// PipelineConfig tunes batch processing.
type PipelineConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	ItemDelay        time.Duration `mapstructure:"item_delay"`
	TrendWindow      time.Duration `mapstructure:"trend_window"`
	AlertDedupWindow time.Duration `mapstructure:"alert_dedup_window"`
}

// StorageConfig contains database and cache settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig describes the primary datastore connection.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the Postgres connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// RedisConfig describes the optional run-lock backend. An empty Addr disables
// the distributed lock.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// SchedulerConfig drives the background worker.
type SchedulerConfig struct {
	Cron    string        `mapstructure:"cron"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from an optional file plus INTELBRIEF_*
// environment variables. A missing config file is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("INTELBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")

	v.SetDefault("ai.enabled", true)

	v.SetDefault("llm.provider", "deepseek")
	// llm.model defaults to the provider's own default model when left empty
	v.SetDefault("llm.timeout", "30s")

	v.SetDefault("pipeline.batch_size", 50)
	v.SetDefault("pipeline.item_delay", "1s")
	v.SetDefault("pipeline.trend_window", "24h")
	v.SetDefault("pipeline.alert_dedup_window", "6h")

	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.sslmode", "disable")

	v.SetDefault("server.address", ":8080")

	// one pass every 30 minutes
	v.SetDefault("scheduler.cron", "*/30 * * * *")
	v.SetDefault("scheduler.lock_ttl", "10m")

	v.SetDefault("telemetry.enabled", true)
}

// overrideFromEnv pulls sensitive values from their conventional variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		cfg.LLM.DeepSeekAPIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.AnthropicAPIKey = key
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Storage.Postgres.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Storage.Redis.Addr = addr
	}
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "deepseek", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be deepseek or anthropic, got %q", cfg.LLM.Provider)
	}
	if cfg.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be > 0")
	}
	return nil
}
