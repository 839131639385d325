// Package config loads application configuration from config.yaml and the
// EXPENSE_* environment, with viper handling precedence (env > file >
// defaults), and owns global logger setup.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pocketledger/expense-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	DeepSeek DeepSeekConfig `yaml:"deepseek" mapstructure:"deepseek"`
	OpenAI   OpenAIConfig   `yaml:"openai" mapstructure:"openai"`
	Tencent  TencentConfig  `yaml:"tencent" mapstructure:"tencent"`
	Claude   ClaudeConfig   `yaml:"claude" mapstructure:"claude"`
	Gemini   GeminiConfig   `yaml:"gemini" mapstructure:"gemini"`
	Routing  RoutingConfig  `yaml:"routing" mapstructure:"routing"`
	Record   RecordConfig   `yaml:"record" mapstructure:"record"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DeepSeekConfig holds DeepSeek API settings.
type DeepSeekConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// OpenAIConfig holds OpenAI API settings, including Whisper transcription.
type OpenAIConfig struct {
	Key          string `yaml:"key" mapstructure:"key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	Model        string `yaml:"model" mapstructure:"model"`
	WhisperModel string `yaml:"whisper_model" mapstructure:"whisper_model"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries   int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// TencentConfig holds Tencent Cloud OCR credentials.
type TencentConfig struct {
	SecretID    string `yaml:"secret_id" mapstructure:"secret_id"`
	SecretKey   string `yaml:"secret_key" mapstructure:"secret_key"`
	Region      string `yaml:"region" mapstructure:"region"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// ClaudeConfig holds Anthropic API settings.
type ClaudeConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// RoutingConfig controls provider selection.
type RoutingConfig struct {
	Primary string `yaml:"primary" mapstructure:"primary"`
	Hybrid  bool   `yaml:"hybrid" mapstructure:"hybrid"`
}

// RecordConfig controls normalization output.
type RecordConfig struct {
	Currency   string `yaml:"currency" mapstructure:"currency"`
	TablesPath string `yaml:"tables_path" mapstructure:"tables_path"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	Path        string           `yaml:"path" mapstructure:"path"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout returns the DeepSeek call timeout.
func (c DeepSeekConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// Timeout returns the OpenAI call timeout.
func (c OpenAIConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// Timeout returns the Tencent OCR call timeout.
func (c TencentConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// Timeout returns the Claude call timeout.
func (c ClaudeConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// Timeout returns the Gemini call timeout.
func (c GeminiConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXPENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("deepseek.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("deepseek.model", "deepseek-chat")
	v.SetDefault("deepseek.timeout_secs", 30)
	v.SetDefault("deepseek.max_retries", 3)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.whisper_model", "whisper-1")
	v.SetDefault("openai.timeout_secs", 30)
	v.SetDefault("openai.max_retries", 3)
	v.SetDefault("tencent.region", "ap-guangzhou")
	v.SetDefault("tencent.timeout_secs", 15)
	v.SetDefault("tencent.max_retries", 2)
	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")
	v.SetDefault("claude.timeout_secs", 30)
	v.SetDefault("claude.max_retries", 3)
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.timeout_secs", 30)
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("routing.primary", "deepseek")
	v.SetDefault("routing.hybrid", false)
	v.SetDefault("record.currency", "CNY")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "expenses.db")
	v.SetDefault("batch.max_concurrent", 3)
	v.SetDefault("server.port", 8080)
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

// AnyProviderConfigured reports whether at least one recognition backend has
// credentials.
func (c *Config) AnyProviderConfigured() bool {
	return c.DeepSeek.Key != "" ||
		c.OpenAI.Key != "" ||
		(c.Tencent.SecretID != "" && c.Tencent.SecretKey != "") ||
		c.Claude.Key != "" ||
		c.Gemini.Key != ""
}

// Validate checks the configuration for the given run mode ("cli" or
// "serve") and reports every problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "cli":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if !c.AnyProviderConfigured() {
		problems = append(problems, "at least one provider key is required")
	}
	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
		problems = append(problems, "batch.max_concurrent must be between 1 and 50")
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	case "", "none":
	default:
		problems = append(problems, "store.driver must be sqlite, postgres, or none")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
