// Package core implements the event-in, state-out bridge between the Telegram
// update stream and application code.
//
// Application code talks to a Bloc through two handles:
//
//   - Controller: a Sender of Events (SendText, FetchFile, DownloadFile...)
//   - Stream: a Receiver of States (PlainMessage, Command and the outcome of
//     every Event)
//
// A running Bloc owns two goroutines. The ingestion side pulls updates from
// long polling or a webhook server and routes them through a RouteTree onto
// the State stream. The Event Processor executes Events one at a time against
// the platform client and publishes their outcomes onto the same stream.
//
// # Configuration
//
// Configuration is loaded from a YAML file with ${VAR} expansion:
//
//	bot:
//	  token: ${TELEGRAM_BOT_TOKEN}
//	ingestion:
//	  mode: webhook
//	  webhook_url: https://bot.example.com/
//	  bind_addr: 0.0.0.0:8443
//	dispatcher:
//	  command_prefix: "/"
//	logging:
//	  level: info
package core

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/keepmind9/telebloc/pkg/constants"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel      = "info"
	DefaultLogMaxBackups = 5
	DefaultBindAddr      = "127.0.0.1:8443"
)

var validParseModes = []string{"", "Markdown", "MarkdownV2", "HTML"}

// LoadConfig loads configuration from file, expands ${VAR} references and
// applies TELEBLOC_* environment overrides
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig fills defaults and rejects unusable settings
func validateConfig(config *Config) error {
	if strings.TrimSpace(config.Bot.Token) == "" {
		return fmt.Errorf("bot.token is required")
	}
	if !slices.Contains(validParseModes, config.Bot.ParseMode) {
		return fmt.Errorf("bot.parse_mode %q is not one of Markdown, MarkdownV2, HTML", config.Bot.ParseMode)
	}
	if config.Bot.FileEndpoint != "" && config.Bot.APIEndpoint == "" {
		return fmt.Errorf("bot.file_endpoint requires bot.api_endpoint")
	}

	if config.Dispatcher.CommandPrefix == "" {
		config.Dispatcher.CommandPrefix = constants.DefaultCommandPrefix
	}

	// Ingestion
	if config.Ingestion.PollTimeout == 0 {
		config.Ingestion.PollTimeout = int(constants.DefaultPollTimeout / time.Second)
	}
	if config.Ingestion.PollTimeout < 0 {
		return fmt.Errorf("ingestion.poll_timeout must not be negative (got %d)", config.Ingestion.PollTimeout)
	}
	if config.Ingestion.ShutdownTimeout == "" {
		config.Ingestion.ShutdownTimeout = constants.DefaultShutdownTimeout.String()
	}
	timeout, err := time.ParseDuration(config.Ingestion.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("invalid ingestion.shutdown_timeout: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("ingestion.shutdown_timeout must be positive (got %v)", timeout)
	}

	kind, err := ParseIngestionKind(config.Ingestion.Mode)
	if err != nil {
		return err
	}
	config.Ingestion.Mode = kind.String()
	if kind != IngestionLongPoll && config.Ingestion.BindAddr == "" {
		config.Ingestion.BindAddr = DefaultBindAddr
	}
	if err := config.IngestionMode().Validate(); err != nil {
		return err
	}

	// Security
	if config.Security.WhitelistEnabled && len(config.Security.AllowedUsers) == 0 {
		return fmt.Errorf("security.allowed_users cannot be empty when whitelist is enabled")
	}

	// Logging
	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	switch config.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q must be json or text", config.Logging.Format)
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = constants.DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = constants.DefaultLogMaxAge
	}
	if config.Logging.EnableStdout == nil {
		enabled := true
		config.Logging.EnableStdout = &enabled
	}

	return nil
}

// IngestionMode converts the ingestion section into an IngestionMode.
// An unknown mode string yields long polling; validateConfig rejects it first.
func (c *Config) IngestionMode() IngestionMode {
	kind, _ := ParseIngestionKind(c.Ingestion.Mode)
	switch kind {
	case IngestionWebhook:
		return WebhookMode(c.Ingestion.WebhookURL, c.Ingestion.BindAddr)
	case IngestionWebhookTLS:
		return WebhookTLSMode(c.Ingestion.WebhookURL, c.Ingestion.BindAddr, c.Ingestion.CertFile, c.Ingestion.KeyFile)
	default:
		return LongPollMode()
	}
}

// ShutdownTimeoutDuration returns the webhook shutdown grace period
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Ingestion.ShutdownTimeout)
	if err != nil || d <= 0 {
		return constants.DefaultShutdownTimeout
	}
	return d
}

// IsUserAuthorized checks if a user is in the whitelist
func (c *Config) IsUserAuthorized(userID int64) bool {
	// If whitelist is disabled, allow all users (warning: not recommended for production)
	if !c.Security.WhitelistEnabled {
		return true
	}
	return slices.Contains(c.Security.AllowedUsers, userID)
}
