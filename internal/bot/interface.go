// Package bot provides the platform API client used by the telebloc core.
//
// The core never talks to Telegram directly. It is handed a Client, a small
// capability interface covering everything the core needs: sending messages
// and albums, resolving and downloading files, registering a webhook and
// long polling for updates. TelegramClient is the production implementation
// built on go-telegram-bot-api; tests substitute their own stubs.
//
// # Usage
//
//	client := bot.NewTelegramClient(token, bot.WithParseMode(tgbotapi.ModeMarkdownV2))
//	b := core.NewBloc(client)
//
// # Thread Safety
//
// Client implementations must be safe for concurrent use. The core calls
// them from the ingestion and event processing goroutines without any
// external locking.
package bot

import (
	"context"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client is the set of platform operations the core depends on.
type Client interface {
	// SendMessage sends text to a chat. markup may be nil or any Telegram
	// reply markup value (inline keyboard, reply keyboard, ...).
	SendMessage(ctx context.Context, chatID int64, text string, markup any) error

	// SendMediaGroup sends an album built from tgbotapi.InputMedia* values.
	SendMediaGroup(ctx context.Context, chatID int64, media []any) error

	// GetFile resolves a file id into downloadable metadata.
	GetFile(ctx context.Context, fileID string) (FileMetadata, error)

	// DownloadFile streams the file at the platform-side path into w.
	DownloadFile(ctx context.Context, filePath string, w io.Writer) error

	// SetWebhook registers url as the push destination for updates.
	SetWebhook(ctx context.Context, url string) error

	// DeleteWebhook removes a registered webhook so long polling works again.
	DeleteWebhook(ctx context.Context) error

	// Updates starts long polling. The returned channel is closed once ctx
	// is done and polling has stopped.
	Updates(ctx context.Context) (<-chan tgbotapi.Update, error)
}

// FileMetadata describes a file stored on the platform.
type FileMetadata struct {
	FileID       string
	FileUniqueID string
	FileSize     int64
	FilePath     string // platform-side path passed to DownloadFile
}
