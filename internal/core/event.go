package core

import "fmt"

// Event is a command submitted by application code for execution against
// the platform. The set of events is closed; see the concrete types below.
type Event interface {
	fmt.Stringer
	isEvent()
}

// SendText sends a plain text message.
type SendText struct {
	ChatID int64
	Text   string
}

// SendTextWithMarkup sends a text message with a reply markup attached
// (inline keyboard, reply keyboard, keyboard removal, force reply).
type SendTextWithMarkup struct {
	ChatID int64
	Text   string
	Markup any
}

// FetchFile resolves a file id into downloadable metadata.
type FetchFile struct {
	FileID string
}

// DownloadFile downloads the platform-side FilePath into DestinationPath.
type DownloadFile struct {
	FilePath        string
	DestinationPath string
}

// SendMedia sends an album. Media holds tgbotapi.InputMedia* values.
type SendMedia struct {
	ChatID int64
	Media  []any
}

func (SendText) isEvent()           {}
func (SendTextWithMarkup) isEvent() {}
func (FetchFile) isEvent()          {}
func (DownloadFile) isEvent()       {}
func (SendMedia) isEvent()          {}

func (e SendText) String() string {
	return fmt.Sprintf("SendText{chat_id:%d, text:%s}", e.ChatID, e.Text)
}

func (e SendTextWithMarkup) String() string {
	return fmt.Sprintf("SendTextWithMarkup{chat_id:%d, text:%s}", e.ChatID, e.Text)
}

func (e FetchFile) String() string {
	return fmt.Sprintf("FetchFile{file_id:%s}", e.FileID)
}

func (e DownloadFile) String() string {
	return fmt.Sprintf("DownloadFile{file_path:%s, destination_path:%s}", e.FilePath, e.DestinationPath)
}

func (e SendMedia) String() string {
	return fmt.Sprintf("SendMedia{chat_id:%d, media:%d}", e.ChatID, len(e.Media))
}
