package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/keepmind9/telebloc/internal/bot"
	"github.com/keepmind9/telebloc/internal/stream"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	ChatID int64
	Text   string
	Markup any
}

// stubClient is an in-memory bot.Client.
type stubClient struct {
	mu          sync.Mutex
	sent        []sentMessage
	media       [][]any
	sendErr     map[string]error // by message text
	mediaErr    error
	files       map[string]bot.FileMetadata
	downloads   map[string][]byte
	downloadErr error
	webhookErr  error
	webhookURLs []string
	updates     chan tgbotapi.Update
	updatesErr  error
	pollCalls   int
}

func newStubClient() *stubClient {
	return &stubClient{
		sendErr:   make(map[string]error),
		files:     make(map[string]bot.FileMetadata),
		downloads: make(map[string][]byte),
		updates:   make(chan tgbotapi.Update, 16),
	}
}

func (s *stubClient) SendMessage(_ context.Context, chatID int64, text string, markup any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sendErr[text]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	return nil
}

func (s *stubClient) SendMediaGroup(_ context.Context, _ int64, media []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mediaErr != nil {
		return s.mediaErr
	}
	s.media = append(s.media, media)
	return nil
}

func (s *stubClient) GetFile(_ context.Context, fileID string) (bot.FileMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileID]
	if !ok {
		return bot.FileMetadata{}, errors.New("Bad Request: invalid file_id")
	}
	return file, nil
}

func (s *stubClient) DownloadFile(_ context.Context, filePath string, w io.Writer) error {
	s.mu.Lock()
	content, ok := s.downloads[filePath]
	err := s.downloadErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("unexpected status 404 Not Found")
	}
	_, err = w.Write(content)
	return err
}

func (s *stubClient) SetWebhook(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhookURLs = append(s.webhookURLs, url)
	return s.webhookErr
}

func (s *stubClient) DeleteWebhook(context.Context) error {
	return nil
}

func (s *stubClient) Updates(context.Context) (<-chan tgbotapi.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollCalls++
	if s.updatesErr != nil {
		return nil, s.updatesErr
	}
	return s.updates, nil
}

func (s *stubClient) sentMessages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func (s *stubClient) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCalls
}

var _ bot.Client = (*stubClient)(nil)

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      &tgbotapi.User{ID: chatID},
			Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
			Text:      text,
		},
	}
}

func recvState(t *testing.T, rx *stream.Receiver[State]) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := rx.Recv(ctx)
	require.NoError(t, err, "expected a state")
	return state
}

func assertNoState(t *testing.T, rx *stream.Receiver[State]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if state, err := rx.Recv(ctx); err == nil {
		t.Fatalf("unexpected state %s", state)
	}
}
