package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/keepmind9/telebloc/internal/bot"
	"github.com/keepmind9/telebloc/internal/core"
	"github.com/keepmind9/telebloc/internal/logger"
	"github.com/keepmind9/telebloc/internal/stream"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	envFile      string
	modeOverride string
	echoEnabled  bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the telebloc bridge",
		Long: `Start receiving Telegram updates and publishing them as states.

With --echo, every plain message and command is sent back to its chat, which
is handy to check that a token and a webhook are wired correctly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			config, err := core.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if modeOverride != "" {
				config.Ingestion.Mode = modeOverride
			}
			mode := config.IngestionMode()
			if err := mode.Validate(); err != nil {
				return err
			}

			if err := logger.InitLogger(loggerConfig(config)); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			logger.WithFields(logrus.Fields{
				"config_file": configFile,
				"mode":        mode.Kind.String(),
				"log_level":   config.Logging.Level,
				"log_file":    config.Logging.File,
				"echo":        echoEnabled,
			}).Info("logger-initialized")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, config, mode, newTelegramClient(config), echoEnabled)
		},
	}
)

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
	startCmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the configuration")
	startCmd.Flags().StringVar(&modeOverride, "mode", "", "Override ingestion.mode (long_poll, webhook, webhook_tls)")
	startCmd.Flags().BoolVar(&echoEnabled, "echo", false, "Send every received message back to its chat")
}

// loadEnvFile loads path into the environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loggerConfig(config *core.Config) logger.Config {
	enableStdout := true
	if config.Logging.EnableStdout != nil {
		enableStdout = *config.Logging.EnableStdout
	}
	return logger.Config{
		Level:        config.Logging.Level,
		Format:       config.Logging.Format,
		File:         config.Logging.File,
		MaxSize:      config.Logging.MaxSize,
		MaxBackups:   config.Logging.MaxBackups,
		MaxAge:       config.Logging.MaxAge,
		Compress:     config.Logging.Compress,
		EnableStdout: enableStdout,
	}
}

func newTelegramClient(config *core.Config) *bot.TelegramClient {
	return bot.NewTelegramClient(config.Bot.Token,
		bot.WithParseMode(config.Bot.ParseMode),
		bot.WithAPIEndpoint(config.Bot.APIEndpoint, config.Bot.FileEndpoint),
		bot.WithPollTimeout(config.Ingestion.PollTimeout),
		bot.WithDebug(config.Bot.Debug),
	)
}

// routeTree builds the default tree, restricted to whitelisted senders when
// the whitelist is enabled.
func routeTree(config *core.Config) core.RouteTree {
	tree := core.DefaultRouteTree(config.Dispatcher.CommandPrefix)
	if config.Security.WhitelistEnabled {
		tree = core.Guard(tree, core.FromUser(config.IsUserAuthorized))
	}
	return tree
}

// serve runs a Bloc until ctx is cancelled or startup fails.
func serve(ctx context.Context, config *core.Config, mode core.IngestionMode, client bot.Client, echo bool) error {
	if mode.Kind == core.IngestionLongPoll && config.Ingestion.DeleteWebhook {
		if err := client.DeleteWebhook(ctx); err != nil {
			return fmt.Errorf("failed to delete webhook before polling: %w", err)
		}
	}

	b := core.NewBloc(client,
		core.WithCommandPrefix(config.Dispatcher.CommandPrefix),
		core.WithShutdownTimeout(config.ShutdownTimeoutDuration()),
	)
	defer b.Close()

	if echo {
		go runEcho(ctx, b.Stream(), b.Controller())
	} else {
		go logStates(ctx, b.Stream())
	}

	err := b.RunMode(ctx, mode, routeTree(config))
	if errors.Is(err, core.ErrProcessorHalted) {
		logger.WithField("error", err).Warn("bloc-finished-with-halted-processor")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("telebloc-stopped")
	return nil
}

// runEcho answers every message and command with its own text.
func runEcho(ctx context.Context, states *stream.Receiver[core.State], events *stream.Sender[core.Event]) {
	for {
		state, err := states.Recv(ctx)
		if err != nil {
			return
		}

		var msg *tgbotapi.Message
		switch s := state.(type) {
		case core.PlainMessage:
			msg = s.Message
		case core.Command:
			msg = s.Message
		default:
			logger.WithField("state", state.String()).Debug("state-received")
			continue
		}
		if msg == nil || msg.Chat == nil {
			logger.WithField("state", state.String()).Debug("echo-skipped-message-without-chat")
			continue
		}
		text, chatID := msg.Text, msg.Chat.ID

		if err := events.Send(core.SendText{ChatID: chatID, Text: text}); err != nil {
			logger.WithFields(logrus.Fields{
				"chat_id": chatID,
				"error":   err,
			}).Warn("failed-to-queue-echo")
			return
		}
	}
}

// logStates drains the stream so published states are visible in the log.
func logStates(ctx context.Context, states *stream.Receiver[core.State]) {
	for {
		state, err := states.Recv(ctx)
		if err != nil {
			return
		}
		logger.WithField("state", state.String()).Info("state-received")
	}
}
