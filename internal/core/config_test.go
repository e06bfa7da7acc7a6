package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_ValidConfig_ReturnsConfigStruct(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123456:test-token")
	path := writeConfig(t, `
bot:
  token: "${TEST_BOT_TOKEN}"
  parse_mode: MarkdownV2
ingestion:
  mode: webhook
  webhook_url: https://bot.example.com/
  bind_addr: 0.0.0.0:8443
  shutdown_timeout: 10s
dispatcher:
  command_prefix: "!"
security:
  whitelist_enabled: true
  allowed_users: [42, 43]
logging:
  level: debug
  enable_stdout: false
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "123456:test-token", config.Bot.Token)
	assert.Equal(t, "MarkdownV2", config.Bot.ParseMode)
	assert.Equal(t, "!", config.Dispatcher.CommandPrefix)
	assert.Equal(t, WebhookMode("https://bot.example.com/", "0.0.0.0:8443"), config.IngestionMode())
	assert.Equal(t, 10*time.Second, config.ShutdownTimeoutDuration())
	assert.Equal(t, "debug", config.Logging.Level)
	require.NotNil(t, config.Logging.EnableStdout)
	assert.False(t, *config.Logging.EnableStdout)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: "123456:abc"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, LongPollMode(), config.IngestionMode())
	assert.Equal(t, "long_poll", config.Ingestion.Mode)
	assert.Equal(t, 60, config.Ingestion.PollTimeout)
	assert.Equal(t, 5*time.Second, config.ShutdownTimeoutDuration())
	assert.Equal(t, "/", config.Dispatcher.CommandPrefix)
	assert.Equal(t, DefaultLogLevel, config.Logging.Level)
	assert.Equal(t, 100, config.Logging.MaxSize)
	assert.Equal(t, DefaultLogMaxBackups, config.Logging.MaxBackups)
	assert.Equal(t, 30, config.Logging.MaxAge)
	require.NotNil(t, config.Logging.EnableStdout)
	assert.True(t, *config.Logging.EnableStdout)
}

func TestLoadConfig_WebhookDefaultsBindAddr(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: "123456:abc"
ingestion:
  mode: webhook
  webhook_url: https://bot.example.com/
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultBindAddr, config.Ingestion.BindAddr)
}

func TestLoadConfig_MissingEnvVar_ReturnsError(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: "${TELEBLOC_TEST_UNSET_TOKEN}"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEBLOC_TEST_UNSET_TOKEN")
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TELEBLOC_BOT_TOKEN", "654321:from-env")
	t.Setenv("TELEBLOC_LOG_LEVEL", "warn")
	t.Setenv("TELEBLOC_ALLOWED_USERS", "7,42")
	path := writeConfig(t, `
security:
  whitelist_enabled: true
logging:
  level: debug
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "654321:from-env", config.Bot.Token)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, []int64{7, 42}, config.Security.AllowedUsers)
	assert.True(t, config.IsUserAuthorized(42))
}

func TestLoadConfig_InvalidEnvironmentOverride_ReturnsError(t *testing.T) {
	t.Setenv("TELEBLOC_BOT_DEBUG", "sometimes")
	path := writeConfig(t, `
bot:
  token: "123456:abc"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply environment overrides")
}

func TestLoadConfig_MissingFile_ReturnsError(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_InvalidYAML_ReturnsError(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "bot: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidateConfig_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.Bot.Token = " " }, "bot.token"},
		{"bad parse mode", func(c *Config) { c.Bot.ParseMode = "BBCode" }, "parse_mode"},
		{"file endpoint alone", func(c *Config) { c.Bot.FileEndpoint = "http://x/file/bot%s/%s" }, "file_endpoint"},
		{"unknown mode", func(c *Config) { c.Ingestion.Mode = "carrier_pigeon" }, "unknown ingestion mode"},
		{"webhook without url", func(c *Config) { c.Ingestion.Mode = "webhook" }, "url"},
		{"tls without cert", func(c *Config) {
			c.Ingestion.Mode = "webhook_tls"
			c.Ingestion.WebhookURL = "https://bot.example.com/"
		}, "certificate file"},
		{"negative poll timeout", func(c *Config) { c.Ingestion.PollTimeout = -1 }, "poll_timeout"},
		{"bad shutdown timeout", func(c *Config) { c.Ingestion.ShutdownTimeout = "soon" }, "shutdown_timeout"},
		{"zero shutdown timeout", func(c *Config) { c.Ingestion.ShutdownTimeout = "0s" }, "shutdown_timeout"},
		{"empty whitelist", func(c *Config) { c.Security.WhitelistEnabled = true }, "allowed_users"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{Bot: BotConfig{Token: "123456:abc"}}
			tt.mutate(config)

			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_IsUserAuthorized(t *testing.T) {
	config := &Config{}
	assert.True(t, config.IsUserAuthorized(1), "whitelist disabled allows everyone")

	config.Security = SecurityConfig{WhitelistEnabled: true, AllowedUsers: []int64{42}}
	assert.True(t, config.IsUserAuthorized(42))
	assert.False(t, config.IsUserAuthorized(7))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TELEBLOC_A", "alpha")

	got, err := expandEnv("x: ${TELEBLOC_A}")
	require.NoError(t, err)
	assert.Equal(t, "x: alpha", got)

	_, err = expandEnv("${TELEBLOC_MISSING_1} ${TELEBLOC_MISSING_2}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEBLOC_MISSING_1, TELEBLOC_MISSING_2")
}
