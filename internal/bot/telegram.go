package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/keepmind9/telebloc/internal/logger"
	"github.com/keepmind9/telebloc/pkg/constants"
	"github.com/sirupsen/logrus"
)

// ErrPollingStarted is returned when Updates is called a second time on the
// same client.
var ErrPollingStarted = errors.New("long polling already started")

// TelegramClient implements Client on top of the Telegram Bot API.
//
// The underlying API handle is created lazily on first use, so constructing a
// TelegramClient never touches the network.
type TelegramClient struct {
	mu           sync.Mutex
	token        string
	apiEndpoint  string
	fileEndpoint string
	parseMode    string
	debug        bool
	pollTimeout  int // seconds
	httpClient   *http.Client
	bot          *tgbotapi.BotAPI
	polling      bool
}

// TelegramOption customizes a TelegramClient.
type TelegramOption func(*TelegramClient)

// WithParseMode applies a default parse mode to every outgoing text message.
func WithParseMode(mode string) TelegramOption {
	return func(t *TelegramClient) {
		t.parseMode = mode
	}
}

// WithAPIEndpoint overrides the Bot API endpoint format
// (default tgbotapi.APIEndpoint). fileEndpoint may be empty to keep the
// default file endpoint.
func WithAPIEndpoint(apiEndpoint, fileEndpoint string) TelegramOption {
	return func(t *TelegramClient) {
		if apiEndpoint != "" {
			t.apiEndpoint = apiEndpoint
		}
		if fileEndpoint != "" {
			t.fileEndpoint = fileEndpoint
		}
	}
}

// WithHTTPClient sets the HTTP client used for API calls and downloads.
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramClient) {
		if c != nil {
			t.httpClient = c
		}
	}
}

// WithPollTimeout sets the long polling timeout in seconds.
func WithPollTimeout(seconds int) TelegramOption {
	return func(t *TelegramClient) {
		if seconds > 0 {
			t.pollTimeout = seconds
		}
	}
}

// WithDebug enables request logging inside go-telegram-bot-api.
func WithDebug(debug bool) TelegramOption {
	return func(t *TelegramClient) {
		t.debug = debug
	}
}

// NewTelegramClient creates a new Telegram client
func NewTelegramClient(token string, opts ...TelegramOption) *TelegramClient {
	t := &TelegramClient{
		token:        token,
		apiEndpoint:  tgbotapi.APIEndpoint,
		fileEndpoint: tgbotapi.FileEndpoint,
		pollTimeout:  int(constants.DefaultPollTimeout.Seconds()),
		httpClient:   &http.Client{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// api returns the Bot API handle, connecting on first use.
func (t *TelegramClient) api() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		return t.bot, nil
	}

	logger.WithFields(logrus.Fields{
		"token": maskSecret(t.token),
	}).Info("connecting-to-telegram-bot-api")

	bot, err := tgbotapi.NewBotAPIWithClient(t.token, t.apiEndpoint, t.httpClient)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"error": err,
		}).Error("failed-to-initialize-telegram-bot")
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	bot.Debug = t.debug

	logger.WithFields(logrus.Fields{
		"bot_username": bot.Self.UserName,
		"bot_id":       bot.Self.ID,
	}).Info("telegram-bot-initialized-successfully")

	t.bot = bot
	return bot, nil
}

// SendMessage sends a text message to a Telegram chat
func (t *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string, markup any) error {
	bot, err := t.api()
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = t.parseMode
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}

	logger.WithField("chat_id", chatID).Debug("message-sent-to-telegram")
	return nil
}

// SendMediaGroup sends an album to a Telegram chat
func (t *TelegramClient) SendMediaGroup(ctx context.Context, chatID int64, media []any) error {
	if len(media) == 0 {
		return fmt.Errorf("media group for chat %d is empty", chatID)
	}
	if len(media) > constants.MaxMediaGroupSize {
		return fmt.Errorf("media group for chat %d has %d items, max is %d",
			chatID, len(media), constants.MaxMediaGroupSize)
	}

	bot, err := t.api()
	if err != nil {
		return err
	}

	files := make([]interface{}, len(media))
	copy(files, media)

	if _, err := bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, files)); err != nil {
		return fmt.Errorf("failed to send media group to chat %d: %w", chatID, err)
	}

	logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"count":   len(media),
	}).Debug("media-group-sent-to-telegram")
	return nil
}

// GetFile resolves a file id via the getFile method
func (t *TelegramClient) GetFile(ctx context.Context, fileID string) (FileMetadata, error) {
	bot, err := t.api()
	if err != nil {
		return FileMetadata{}, err
	}

	file, err := bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return FileMetadata{}, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}

	return FileMetadata{
		FileID:       file.FileID,
		FileUniqueID: file.FileUniqueID,
		FileSize:     int64(file.FileSize),
		FilePath:     file.FilePath,
	}, nil
}

// DownloadFile streams a file from the Telegram file endpoint into w
func (t *TelegramClient) DownloadFile(ctx context.Context, filePath string, w io.Writer) error {
	if filePath == "" {
		return fmt.Errorf("file path is required")
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DefaultDownloadTimeout)
	defer cancel()

	url := fmt.Sprintf(t.fileEndpoint, t.token, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", filePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: unexpected status %s", filePath, resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to stream %s: %w", filePath, err)
	}

	logger.WithFields(logrus.Fields{
		"file_path": filePath,
		"bytes":     n,
	}).Debug("file-downloaded-from-telegram")
	return nil
}

// SetWebhook registers the public callback URL with Telegram
func (t *TelegramClient) SetWebhook(ctx context.Context, url string) error {
	bot, err := t.api()
	if err != nil {
		return err
	}

	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	logger.WithField("url", url).Info("telegram-webhook-registered")
	return nil
}

// DeleteWebhook removes any registered webhook
func (t *TelegramClient) DeleteWebhook(ctx context.Context) error {
	bot, err := t.api()
	if err != nil {
		return err
	}

	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	logger.Info("telegram-webhook-deleted")
	return nil
}

// Updates starts long polling. Polling stops when ctx is done, after which
// the returned channel is closed by go-telegram-bot-api.
func (t *TelegramClient) Updates(ctx context.Context) (<-chan tgbotapi.Update, error) {
	bot, err := t.api()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.polling {
		t.mu.Unlock()
		return nil, ErrPollingStarted
	}
	t.polling = true
	t.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout

	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
		logger.Info("telegram-long-polling-stopped")
	}()

	logger.WithField("timeout", t.pollTimeout).Info("telegram-long-polling-started")
	return updates, nil
}

var _ Client = (*TelegramClient)(nil)
