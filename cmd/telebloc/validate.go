package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/keepmind9/telebloc/internal/core"
	"github.com/spf13/cobra"
)

var (
	validateConfigFile string
	validateShow       bool
	validateJSON       bool
)

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Config   string   `json:"config"`
	Mode     string   `json:"mode,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate telebloc configuration file",
	Long: `Validate the telebloc configuration file without contacting Telegram.

This command checks:
  - YAML syntax and environment variable expansion
  - Required fields (bot token, webhook settings for the chosen mode)
  - Timeouts, parse mode and logging settings

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}

		path := validateConfigFile
		if path == "" {
			path = findConfigFile()
		}
		if path == "" {
			return fmt.Errorf("no configuration file found; pass --config or create ./config.yaml, ~/.config/telebloc/config.yaml or /etc/telebloc/config.yaml")
		}

		result, cfg := validateFile(path)
		if validateShow && cfg != nil {
			showConfig(cmd.OutOrStdout(), cfg)
		}
		outputValidationResult(cmd.OutOrStdout(), result, validateJSON)

		if !result.Valid {
			return fmt.Errorf("configuration %s is invalid", path)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Print the effective configuration")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
	validateCmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the configuration")
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	for _, loc := range []string{
		"config.yaml",
		filepath.Join(home, ".config", "telebloc", "config.yaml"),
		"/etc/telebloc/config.yaml",
	} {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func validateFile(path string) (ValidationResult, *core.Config) {
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Config: path,
			Errors: []string{err.Error()},
		}, nil
	}

	return ValidationResult{
		Valid:    true,
		Config:   path,
		Mode:     cfg.Ingestion.Mode,
		Warnings: validateConfigDetails(cfg),
	}, cfg
}

// validateConfigDetails reports settings that load fine but are likely wrong.
func validateConfigDetails(cfg *core.Config) []string {
	var warnings []string

	if !cfg.Security.WhitelistEnabled {
		warnings = append(warnings, "Whitelist is disabled - every Telegram user can reach the bot")
	}

	mode := cfg.IngestionMode()
	if mode.Kind == core.IngestionLongPoll {
		return warnings
	}

	if u, err := url.Parse(mode.URL); err == nil && u.Scheme != "https" {
		warnings = append(warnings, fmt.Sprintf("webhook_url %q is not https - Telegram only delivers to https endpoints", mode.URL))
	}
	if host, _, err := net.SplitHostPort(mode.BindAddr); err == nil {
		if ip := net.ParseIP(host); host == "localhost" || (ip != nil && ip.IsLoopback()) {
			warnings = append(warnings, fmt.Sprintf("bind_addr %s is loopback-only - a reverse proxy must forward webhook traffic", mode.BindAddr))
		}
	}
	if mode.Kind == core.IngestionWebhookTLS {
		for _, f := range []string{mode.CertFile, mode.KeyFile} {
			if _, err := os.Stat(f); err != nil {
				warnings = append(warnings, fmt.Sprintf("TLS file %s is not readable: %v", f, err))
			}
		}
	}
	return warnings
}

func showConfig(w io.Writer, cfg *core.Config) {
	fmt.Fprintf(w, "Bot:\n")
	fmt.Fprintf(w, "  parse_mode: %q\n", cfg.Bot.ParseMode)
	fmt.Fprintf(w, "  debug: %v\n", cfg.Bot.Debug)
	fmt.Fprintf(w, "Ingestion:\n")
	fmt.Fprintf(w, "  mode: %s\n", cfg.Ingestion.Mode)
	if cfg.Ingestion.Mode != core.IngestionLongPoll.String() {
		fmt.Fprintf(w, "  webhook_url: %s\n", cfg.Ingestion.WebhookURL)
		fmt.Fprintf(w, "  bind_addr: %s\n", cfg.Ingestion.BindAddr)
		fmt.Fprintf(w, "  shutdown_timeout: %s\n", cfg.ShutdownTimeoutDuration())
	} else {
		fmt.Fprintf(w, "  poll_timeout: %ds\n", cfg.Ingestion.PollTimeout)
	}
	fmt.Fprintf(w, "Dispatcher:\n")
	fmt.Fprintf(w, "  command_prefix: %q\n", cfg.Dispatcher.CommandPrefix)
	fmt.Fprintf(w, "Security:\n")
	fmt.Fprintf(w, "  whitelist_enabled: %v (%d users)\n", cfg.Security.WhitelistEnabled, len(cfg.Security.AllowedUsers))
	fmt.Fprintln(w)
}

func outputValidationResult(w io.Writer, result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(w, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Fprintln(w, string(output))
		return
	}

	if result.Valid {
		color.New(color.FgGreen).Fprintln(w, "✓ Configuration is valid")
		fmt.Fprintf(w, "  - Config: %s\n", result.Config)
		fmt.Fprintf(w, "  - Ingestion mode: %s\n", result.Mode)
	} else {
		color.New(color.FgRed, color.Bold).Fprintln(w, "❌ Configuration validation failed:")
		fmt.Fprintf(w, "\nErrors:\n  - %s\n", strings.Join(result.Errors, "\n  - "))
	}
	if len(result.Warnings) > 0 {
		color.New(color.FgYellow).Fprintln(w, "\n⚠️  Warnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
}
