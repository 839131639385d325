package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.deepseek.com/v1", cfg.DeepSeek.BaseURL)
	assert.Equal(t, "deepseek-chat", cfg.DeepSeek.Model)
	assert.Equal(t, 30, cfg.DeepSeek.TimeoutSecs)
	assert.Equal(t, 3, cfg.DeepSeek.MaxRetries)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "whisper-1", cfg.OpenAI.WhisperModel)
	assert.Equal(t, "ap-guangzhou", cfg.Tencent.Region)
	assert.Equal(t, 15, cfg.Tencent.TimeoutSecs)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Claude.Model)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, "deepseek", cfg.Routing.Primary)
	assert.False(t, cfg.Routing.Hybrid)
	assert.Equal(t, "CNY", cfg.Record.Currency)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "expenses.db", cfg.Store.Path)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
deepseek:
  key: sk-test
routing:
  primary: claude
  hybrid: true
store:
  driver: postgres
  database_url: postgres://localhost/expenses
log:
  level: debug
  format: console
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.DeepSeek.Key)
	assert.Equal(t, "claude", cfg.Routing.Primary)
	assert.True(t, cfg.Routing.Hybrid)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, "deepseek-chat", cfg.DeepSeek.Model)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
routing:
  primary: deepseek
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("EXPENSE_ROUTING_PRIMARY", "gemini")
	t.Setenv("EXPENSE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Routing.Primary)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("EXPENSE_SERVER_PORT", "3000")
	t.Setenv("EXPENSE_TENCENT_SECRET_ID", "AKIDtest")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "AKIDtest", cfg.Tencent.SecretID)
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.DeepSeek.Key = "sk-test"
	cfg.Batch.MaxConcurrent = 3
	cfg.Server.Port = 8080
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "expenses.db"
	return cfg
}

func TestValidateCLI(t *testing.T) {
	assert.NoError(t, validConfig().Validate("cli"))
}

func TestValidateServeRequiresPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0

	require.NoError(t, cfg.Validate("cli"))
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateNoProviders(t *testing.T) {
	cfg := validConfig()
	cfg.DeepSeek.Key = ""

	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one provider key is required")
}

func TestValidateTencentNeedsBothSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.DeepSeek.Key = ""
	cfg.Tencent.SecretID = "AKIDtest"

	err := cfg.Validate("cli")
	require.Error(t, err)

	cfg.Tencent.SecretKey = "secret"
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validConfig()

	cfg.Batch.MaxConcurrent = 0
	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.max_concurrent must be between 1 and 50")

	cfg.Batch.MaxConcurrent = 51
	assert.Error(t, cfg.Validate("cli"))

	cfg.Batch.MaxConcurrent = 50
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validConfig()

	cfg.Store.Driver = "postgres"
	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/expenses"
	assert.NoError(t, cfg.Validate("cli"))

	cfg.Store.Driver = "mongodb"
	assert.Error(t, cfg.Validate("cli"))

	cfg.Store.Driver = "none"
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validConfig().Validate("daemon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateSQLiteNeedsPath(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Path = ""

	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.path is required")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestProviderTimeouts(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "30s", cfg.DeepSeek.Timeout().String())
	assert.Equal(t, "15s", cfg.Tencent.Timeout().String())
}
