package core

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/keepmind9/telebloc/internal/bot"
	"github.com/keepmind9/telebloc/internal/logger"
	"github.com/keepmind9/telebloc/internal/stream"
	"github.com/sirupsen/logrus"
)

// ErrProcessorHalted is returned by Processor.Run after a FetchFile failure.
var ErrProcessorHalted = errors.New("event processor halted after file lookup failure")

// Processor executes Events one at a time and publishes their outcomes.
//
// Failure policy: every failed action is reported as an *Unsuccessful State
// and processing continues, with one exception. A failed FetchFile emits
// FetchFileUnsuccessful and then stops the loop for good; later events stay
// queued and are never executed. Callers that need to keep going after a bad
// file id must check FetchFileUnsuccessful and build a new Bloc.
type Processor struct {
	client bot.Client
	events *stream.Receiver[Event]
	states *stream.Sender[State]
}

// NewProcessor creates a processor reading events and publishing states.
func NewProcessor(client bot.Client, events *stream.Receiver[Event], states *stream.Sender[State]) *Processor {
	return &Processor{
		client: client,
		events: events,
		states: states,
	}
}

// Run processes events until the event stream closes, ctx is done, or a
// FetchFile fails. Platform calls already in flight are not cancelled by ctx.
func (p *Processor) Run(ctx context.Context) error {
	logger.Info("event-processor-started")

	for {
		event, err := p.events.Recv(ctx)
		if err != nil {
			if errors.Is(err, stream.ErrClosed) {
				logger.Info("event-processor-stream-closed")
			} else {
				logger.Info("event-processor-stopped")
			}
			return nil
		}

		if halt := p.process(context.WithoutCancel(ctx), event); halt {
			logger.WithField("pending_events", p.events.Len()).Warn("event-processor-halted")
			return ErrProcessorHalted
		}
	}
}

// process runs one event and reports whether the loop must stop.
func (p *Processor) process(ctx context.Context, event Event) bool {
	entry := logger.WithFields(logrus.Fields{
		"event_id": uuid.NewString(),
		"event":    event.String(),
	})
	entry.Debug("processing-event")

	switch e := event.(type) {
	case SendText:
		p.emit(entry, p.sendText(ctx, entry, e.ChatID, e.Text, nil))
	case SendTextWithMarkup:
		p.emit(entry, p.sendText(ctx, entry, e.ChatID, e.Text, e.Markup))
	case SendMedia:
		p.emit(entry, p.sendMedia(ctx, entry, e))
	case FetchFile:
		state := p.fetchFile(ctx, entry, e)
		p.emit(entry, state)
		if _, failed := state.(FetchFileUnsuccessful); failed {
			return true
		}
	case DownloadFile:
		p.emit(entry, p.downloadFile(ctx, entry, e))
	default:
		entry.Warn("unknown-event-type-ignored")
	}
	return false
}

func (p *Processor) emit(entry *logrus.Entry, state State) {
	if err := p.states.Send(state); err != nil {
		entry.WithFields(logrus.Fields{
			"state": state.String(),
			"error": err,
		}).Warn("failed-to-publish-result-state")
	}
}

func (p *Processor) sendText(ctx context.Context, entry *logrus.Entry, chatID int64, text string, markup any) State {
	if err := p.client.SendMessage(ctx, chatID, text, markup); err != nil {
		entry.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Warn("failed-to-send-text")
		return SendTextUnsuccessful{ChatID: chatID, Text: text, Err: err}
	}
	return SendTextSuccessful{ChatID: chatID, Text: text}
}

func (p *Processor) sendMedia(ctx context.Context, entry *logrus.Entry, e SendMedia) State {
	if err := p.client.SendMediaGroup(ctx, e.ChatID, e.Media); err != nil {
		entry.WithFields(logrus.Fields{
			"chat_id": e.ChatID,
			"count":   len(e.Media),
			"error":   err,
		}).Warn("failed-to-send-media")
		return SendMediaUnsuccessful{ChatID: e.ChatID, Count: len(e.Media), Err: err}
	}
	return SendMediaSuccessful{ChatID: e.ChatID, Count: len(e.Media)}
}

func (p *Processor) fetchFile(ctx context.Context, entry *logrus.Entry, e FetchFile) State {
	file, err := p.client.GetFile(ctx, e.FileID)
	if err != nil {
		entry.WithFields(logrus.Fields{
			"file_id": e.FileID,
			"error":   err,
		}).Warn("failed-to-get-file-details")
		return FetchFileUnsuccessful{FileID: e.FileID, Err: err}
	}
	return FetchFileSuccessful{FileID: e.FileID, File: file}
}

func (p *Processor) downloadFile(ctx context.Context, entry *logrus.Entry, e DownloadFile) State {
	fail := func(msg string, err error) State {
		entry.WithFields(logrus.Fields{
			"file_path":        e.FilePath,
			"destination_path": e.DestinationPath,
			"error":            err,
		}).Warn(msg)
		return DownloadFileUnsuccessful{FilePath: e.FilePath, DestinationPath: e.DestinationPath, Err: err}
	}

	file, err := os.Create(e.DestinationPath)
	if err != nil {
		return fail("failed-to-create-destination-file", err)
	}

	err = p.client.DownloadFile(ctx, e.FilePath, file)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", e.DestinationPath, closeErr)
	}
	if err != nil {
		return fail("failed-to-download-file", err)
	}
	return DownloadFileSuccessful{FilePath: e.FilePath, DestinationPath: e.DestinationPath}
}
