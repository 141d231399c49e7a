package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Evaluator  EvaluatorConfig  `yaml:"evaluator" mapstructure:"evaluator"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SourceConfig configures the Five9 recording log on SQL Server.
type SourceConfig struct {
	DSN                  string   `yaml:"dsn" mapstructure:"dsn"`
	NASBaseURL           string   `yaml:"nas_base_url" mapstructure:"nas_base_url" validate:"required,url"`
	MinDurationSecs      int      `yaml:"min_duration_secs" mapstructure:"min_duration_secs" validate:"gte=0"`
	ExcludedDispositions []string `yaml:"excluded_dispositions" mapstructure:"excluded_dispositions"`
	QueryTimeoutSecs     int      `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs" validate:"gte=0"`
}

// StoreConfig configures the destination database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns" validate:"gte=0"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns" validate:"gte=0"`
}

// EvaluatorConfig configures transcript scoring.
type EvaluatorConfig struct {
	Provider           string  `yaml:"provider" mapstructure:"provider" validate:"oneof=gemini anthropic"`
	Temperature        float64 `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens          int     `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gt=0"`
	MaxTranscriptChars int     `yaml:"max_transcript_chars" mapstructure:"max_transcript_chars" validate:"gt=0"`
	MinTranscriptChars int     `yaml:"min_transcript_chars" mapstructure:"min_transcript_chars" validate:"gte=0"`
	Concurrency        int     `yaml:"concurrency" mapstructure:"concurrency" validate:"gt=0"`
	RequestsPerSecond  float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`
	BreakerThreshold   int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold" validate:"gte=0"`
	BreakerResetSecs   int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs" validate:"gte=0"`
	CriteriaFile       string  `yaml:"criteria_file" mapstructure:"criteria_file"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// SyncConfig configures one pipeline run.
type SyncConfig struct {
	LookbackHours      int     `yaml:"lookback_hours" mapstructure:"lookback_hours" validate:"gt=0"`
	// BatchSize is reserved as a throttle point and is not enforced.
	BatchSize          int     `yaml:"batch_size" mapstructure:"batch_size" validate:"gt=0"`
	FetchTimeoutSecs   int     `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs" validate:"gt=0"`
	FetchRatePerSecond float64 `yaml:"fetch_rate_per_second" mapstructure:"fetch_rate_per_second" validate:"gte=0"`
	Concurrency        int     `yaml:"concurrency" mapstructure:"concurrency" validate:"gt=0"`
	RunTimeoutMins     int     `yaml:"run_timeout_mins" mapstructure:"run_timeout_mins" validate:"gt=0"`
	RescanUnaudited    bool    `yaml:"rescan_unaudited" mapstructure:"rescan_unaudited"`
	RescanLimit        int     `yaml:"rescan_limit" mapstructure:"rescan_limit" validate:"gt=0"`
}

// RetryConfig tunes retries of destination-store and evaluator calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=0"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms" validate:"gte=0"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms" validate:"gte=0"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier" validate:"gte=0"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction" validate:"gte=0,lte=1"`
}

// TemporalConfig configures the schedule that re-invokes the pipeline.
type TemporalConfig struct {
	HostPort          string `yaml:"host_port" mapstructure:"host_port"`
	Namespace         string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue         string `yaml:"task_queue" mapstructure:"task_queue"`
	ScheduleID        string `yaml:"schedule_id" mapstructure:"schedule_id"`
	IntervalMins      int    `yaml:"interval_mins" mapstructure:"interval_mins" validate:"gt=0"`
	Retries           int    `yaml:"retries" mapstructure:"retries" validate:"gte=0"`
	RetryDelayMins    int    `yaml:"retry_delay_mins" mapstructure:"retry_delay_mins" validate:"gte=0"`
	ExecutionTimeMins int    `yaml:"execution_timeout_mins" mapstructure:"execution_timeout_mins" validate:"gt=0"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port" validate:"gt=0,lte=65535"`
	SyncIntervalMinutes int      `yaml:"sync_interval_minutes" mapstructure:"sync_interval_minutes" validate:"gte=0"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures alerting on sync health.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold" validate:"gte=0,lte=1"`
	ReportErrorThreshold int     `yaml:"report_error_threshold" mapstructure:"report_error_threshold" validate:"gte=0"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours" validate:"gt=0"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CLIOPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can bind it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("source.dsn", "")
	v.SetDefault("source.nas_base_url", "https://nas01.tlcops.com")
	v.SetDefault("source.min_duration_secs", 30)
	v.SetDefault("source.excluded_dispositions", []string{"voicemail", "vm", "no answer", "no-answer", "busy", "disconnected"})
	v.SetDefault("source.query_timeout_secs", 60)

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)

	v.SetDefault("evaluator.provider", "gemini")
	v.SetDefault("evaluator.temperature", 0.3)
	v.SetDefault("evaluator.max_tokens", 4000)
	v.SetDefault("evaluator.max_transcript_chars", 12000)
	v.SetDefault("evaluator.min_transcript_chars", 50)
	v.SetDefault("evaluator.concurrency", 4)
	v.SetDefault("evaluator.requests_per_second", 2)
	v.SetDefault("evaluator.breaker_threshold", 5)
	v.SetDefault("evaluator.breaker_reset_secs", 60)
	v.SetDefault("evaluator.criteria_file", "")

	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")

	v.SetDefault("sync.lookback_hours", 24)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.fetch_timeout_secs", 30)
	v.SetDefault("sync.fetch_rate_per_second", 20)
	v.SetDefault("sync.concurrency", 8)
	v.SetDefault("sync.run_timeout_mins", 10)
	v.SetDefault("sync.rescan_unaudited", false)
	v.SetDefault("sync.rescan_limit", 25)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "call-sync")
	v.SetDefault("temporal.schedule_id", "call-sync-every-15m")
	v.SetDefault("temporal.interval_mins", 15)
	v.SetDefault("temporal.retries", 2)
	v.SetDefault("temporal.retry_delay_mins", 2)
	v.SetDefault("temporal.execution_timeout_mins", 10)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.sync_interval_minutes", 0)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.report_error_threshold", 5)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

var validate = validator.New()

// Validate checks field-level constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return eris.Wrap(err, "config: validate")
	}
	return nil
}

// RequireSource checks that the source database is configured.
func (c *Config) RequireSource() error {
	if c.Source.DSN == "" {
		return eris.New("config: source.dsn is required (CLIOPA_SOURCE_DSN)")
	}
	return nil
}

// RequireStore checks that the destination database is configured.
func (c *Config) RequireStore() error {
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required (CLIOPA_STORE_DATABASE_URL)")
	}
	return nil
}

// RequireEvaluator checks that the selected evaluator has credentials.
func (c *Config) RequireEvaluator() error {
	switch c.Evaluator.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required (CLIOPA_ANTHROPIC_KEY)")
		}
	default:
		if c.Gemini.Key == "" {
			return eris.New("config: gemini.key is required (CLIOPA_GEMINI_KEY)")
		}
	}
	return nil
}

// EvaluatorModel returns the model id of the selected provider.
func (c *Config) EvaluatorModel() string {
	if c.Evaluator.Provider == "anthropic" {
		return c.Anthropic.Model
	}
	return c.Gemini.Model
}

// FetchTimeout returns the per-request enrichment timeout.
func (s SyncConfig) FetchTimeout() time.Duration {
	return time.Duration(s.FetchTimeoutSecs) * time.Second
}

// RunTimeout returns the end-to-end timeout for a single run.
func (s SyncConfig) RunTimeout() time.Duration {
	return time.Duration(s.RunTimeoutMins) * time.Minute
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
