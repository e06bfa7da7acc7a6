package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "telebloc",
	Short: "telebloc is an event-in, state-out bridge for Telegram bots",
	Long: `telebloc bridges the Telegram Bot API update stream to application logic.

Inbound updates are received by long polling or a webhook server, classified
into states (plain messages, commands) and published on a state stream.
Application code submits events (send text, fetch or download files) that are
executed against the Bot API, and their outcomes are published as states too.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
