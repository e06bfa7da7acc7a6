package core

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/keepmind9/telebloc/internal/bot"
)

// State is a notification published by the core: either a classified inbound
// update or the outcome of an Event. States are broadcast once and never
// retained.
type State interface {
	fmt.Stringer
	isState()
}

// PlainMessage is an inbound text message that is not a command.
type PlainMessage struct {
	Message *tgbotapi.Message
}

// Command is an inbound text message starting with the command prefix.
type Command struct {
	Message *tgbotapi.Message
}

// SendTextSuccessful confirms that SendText or SendTextWithMarkup was
// accepted by the platform.
type SendTextSuccessful struct {
	ChatID int64
	Text   string
}

// SendTextUnsuccessful reports a rejected SendText or SendTextWithMarkup.
type SendTextUnsuccessful struct {
	ChatID int64
	Text   string
	Err    error
}

// SendMediaSuccessful confirms that an album was delivered.
type SendMediaSuccessful struct {
	ChatID int64
	Count  int
}

// SendMediaUnsuccessful reports a rejected album.
type SendMediaUnsuccessful struct {
	ChatID int64
	Count  int
	Err    error
}

// FetchFileSuccessful carries the resolved file metadata.
type FetchFileSuccessful struct {
	FileID string
	File   bot.FileMetadata
}

// FetchFileUnsuccessful reports a failed file lookup. It is the last State
// the event processor emits; see Processor.
type FetchFileUnsuccessful struct {
	FileID string
	Err    error
}

// DownloadFileSuccessful confirms that DestinationPath holds the file.
type DownloadFileSuccessful struct {
	FilePath        string
	DestinationPath string
}

// DownloadFileUnsuccessful reports a download that could not be completed.
// DestinationPath may exist with partial content.
type DownloadFileUnsuccessful struct {
	FilePath        string
	DestinationPath string
	Err             error
}

func (PlainMessage) isState()             {}
func (Command) isState()                  {}
func (SendTextSuccessful) isState()       {}
func (SendTextUnsuccessful) isState()     {}
func (SendMediaSuccessful) isState()      {}
func (SendMediaUnsuccessful) isState()    {}
func (FetchFileSuccessful) isState()      {}
func (FetchFileUnsuccessful) isState()    {}
func (DownloadFileSuccessful) isState()   {}
func (DownloadFileUnsuccessful) isState() {}

func describeMessage(m *tgbotapi.Message) string {
	if m == nil {
		return "<nil>"
	}
	var chatID int64
	if m.Chat != nil {
		chatID = m.Chat.ID
	}
	return fmt.Sprintf("{message_id:%d, chat_id:%d, text:%s}", m.MessageID, chatID, m.Text)
}

func (s PlainMessage) String() string {
	return "PlainMessage{message:" + describeMessage(s.Message) + "}"
}

func (s Command) String() string {
	return "Command{message:" + describeMessage(s.Message) + "}"
}

func (s SendTextSuccessful) String() string {
	return fmt.Sprintf("SendTextSuccessful{chat_id:%d, text:%s}", s.ChatID, s.Text)
}

func (s SendTextUnsuccessful) String() string {
	return fmt.Sprintf("SendTextUnsuccessful{chat_id:%d, text:%s, error:%v}", s.ChatID, s.Text, s.Err)
}

func (s SendMediaSuccessful) String() string {
	return fmt.Sprintf("SendMediaSuccessful{chat_id:%d, count:%d}", s.ChatID, s.Count)
}

func (s SendMediaUnsuccessful) String() string {
	return fmt.Sprintf("SendMediaUnsuccessful{chat_id:%d, count:%d, error:%v}", s.ChatID, s.Count, s.Err)
}

func (s FetchFileSuccessful) String() string {
	return fmt.Sprintf("FetchFileSuccessful{file_id:%s, file_path:%s, file_size:%d}",
		s.FileID, s.File.FilePath, s.File.FileSize)
}

func (s FetchFileUnsuccessful) String() string {
	return fmt.Sprintf("FetchFileUnsuccessful{file_id:%s, error:%v}", s.FileID, s.Err)
}

func (s DownloadFileSuccessful) String() string {
	return fmt.Sprintf("DownloadFileSuccessful{file_path:%s, destination_path:%s}", s.FilePath, s.DestinationPath)
}

func (s DownloadFileUnsuccessful) String() string {
	return fmt.Sprintf("DownloadFileUnsuccessful{file_path:%s, destination_path:%s, error:%v}",
		s.FilePath, s.DestinationPath, s.Err)
}
