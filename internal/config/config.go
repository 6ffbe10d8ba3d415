package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/crossref-sync/internal/resilience"
)

// EnvPrefix prefixes every environment override, e.g. CROSSREF_SYNC_PURE_API_KEY.
const EnvPrefix = "CROSSREF_SYNC"

// Config holds the full application configuration.
type Config struct {
	Pure      PureConfig      `yaml:"pure" mapstructure:"pure"`
	CrossRef  CrossRefConfig  `yaml:"crossref" mapstructure:"crossref"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Input     InputConfig     `yaml:"input" mapstructure:"input"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// PureConfig holds the research output API endpoint and credentials.
type PureConfig struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Locale      string `yaml:"locale" mapstructure:"locale"`
}

// CrossRefConfig configures the CrossRef REST client.
type CrossRefConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Mailto      string  `yaml:"mailto" mapstructure:"mailto"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// RetryConfig configures retries of idempotent requests.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// Policy converts the settings to a resilience.RetryConfig.
func (c RetryConfig) Policy() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: time.Duration(c.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(c.MaxBackoffMs) * time.Millisecond,
		Multiplier:     c.Multiplier,
		JitterFraction: c.JitterFraction,
	}
}

// CircuitConfig configures the per-service circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Breaker builds a circuit breaker labelled name.
func (c CircuitConfig) Breaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: c.FailureThreshold,
		ResetTimeout:     time.Duration(c.ResetTimeoutSecs) * time.Second,
	})
}

// InputConfig names the input columns.
type InputConfig struct {
	DOIColumn string `yaml:"doi_column" mapstructure:"doi_column"`
	IDColumn  string `yaml:"id_column" mapstructure:"id_column"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
}

// OutputConfig configures where logs and reports are written.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// SyncConfig configures batch processing.
type SyncConfig struct {
	Concurrency int  `yaml:"concurrency" mapstructure:"concurrency"`
	DryRun      bool `yaml:"dry_run" mapstructure:"dry_run"`
}

// ReconcileConfig configures the reconciliation rules.
type ReconcileConfig struct {
	ClearStaleEmbargo bool `yaml:"clear_stale_embargo" mapstructure:"clear_stale_embargo"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	loadDotEnv()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("pure.endpoint", "")
	v.SetDefault("pure.api_key", "")
	v.SetDefault("pure.timeout_secs", 10)
	v.SetDefault("pure.locale", "en_US")
	v.SetDefault("crossref.base_url", "https://api.crossref.org")
	v.SetDefault("crossref.mailto", "")
	v.SetDefault("crossref.timeout_secs", 10)
	v.SetDefault("crossref.rate_limit", 10.0)
	v.SetDefault("crossref.rate_burst", 1)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("input.doi_column", "DOI")
	v.SetDefault("input.id_column", "UUID")
	v.SetDefault("input.sheet", "")
	v.SetDefault("output.dir", ".")
	v.SetDefault("sync.concurrency", 1)
	v.SetDefault("sync.dry_run", false)
	v.SetDefault("reconcile.clear_stale_embargo", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "crossref-sync.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
}

// loadDotEnv exports .env and then .env.local into the process environment.
// Variables already set win, and missing files are ignored.
func loadDotEnv() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// Validate checks the settings the given command mode needs. Modes are
// "sync" (repository and CrossRef), "resolve" (CrossRef only) and "ledger"
// (run history).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "sync":
		if c.Pure.Endpoint == "" {
			errs = append(errs, "pure.endpoint is required ("+EnvPrefix+"_PURE_ENDPOINT)")
		}
		if c.Pure.APIKey == "" {
			errs = append(errs, "pure.api_key is required ("+EnvPrefix+"_PURE_API_KEY)")
		}
		if c.Sync.Concurrency < 1 || c.Sync.Concurrency > 32 {
			errs = append(errs, fmt.Sprintf("sync.concurrency must be between 1 and 32, got %d", c.Sync.Concurrency))
		}
		errs = append(errs, c.crossRefErrors()...)
		errs = append(errs, c.storeErrors()...)
	case "resolve":
		errs = append(errs, c.crossRefErrors()...)
	case "ledger":
		errs = append(errs, c.storeErrors()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) crossRefErrors() []string {
	var errs []string
	if c.CrossRef.BaseURL == "" {
		errs = append(errs, "crossref.base_url is required")
	}
	if c.CrossRef.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("crossref.rate_limit must be >= 0, got %g", c.CrossRef.RateLimit))
	}
	return errs
}

func (c *Config) storeErrors() []string {
	switch c.Store.Driver {
	case "none":
		return nil
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for driver " + c.Store.Driver}
		}
		return nil
	default:
		return []string{fmt.Sprintf("store.driver %q is not one of sqlite, postgres, none", c.Store.Driver)}
	}
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
