package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/keepmind9/telebloc/internal/bot"
	"github.com/keepmind9/telebloc/internal/logger"
	"github.com/keepmind9/telebloc/internal/stream"
	"github.com/keepmind9/telebloc/internal/webhook"
	"github.com/keepmind9/telebloc/pkg/constants"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRunning is returned when a Bloc is started twice concurrently.
var ErrAlreadyRunning = errors.New("bloc is already running")

// Bloc is the facade application code uses: Events go in through
// Controller, States come out of Stream.
type Bloc struct {
	client    bot.Client
	events    *stream.Sender[Event]
	states    *stream.Sender[State]
	stateRx   *stream.Receiver[State]
	processor *Processor

	commandPrefix   string
	shutdownTimeout time.Duration
	running         atomic.Bool
}

// Option customizes a Bloc.
type Option func(*Bloc)

// WithCommandPrefix sets the prefix the default route tree treats as a command.
func WithCommandPrefix(prefix string) Option {
	return func(b *Bloc) {
		if prefix != "" {
			b.commandPrefix = prefix
		}
	}
}

// WithShutdownTimeout bounds how long a webhook server waits for in-flight
// requests when stopping.
func WithShutdownTimeout(d time.Duration) Option {
	return func(b *Bloc) {
		if d > 0 {
			b.shutdownTimeout = d
		}
	}
}

// NewBloc creates both channels and the Event Processor. Nothing touches the
// network until one of the Run methods is called.
func NewBloc(client bot.Client, opts ...Option) *Bloc {
	events, eventRx := stream.New[Event]()
	states, stateRx := stream.New[State]()

	b := &Bloc{
		client:          client,
		events:          events,
		states:          states,
		stateRx:         stateRx,
		processor:       NewProcessor(client, eventRx, states),
		commandPrefix:   constants.DefaultCommandPrefix,
		shutdownTimeout: constants.DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Controller returns the Event sender. Sending never blocks.
func (b *Bloc) Controller() *stream.Sender[Event] {
	return b.events
}

// Stream returns the State receiver. Receivers cloned from it compete for
// States rather than each seeing every State.
func (b *Bloc) Stream() *stream.Receiver[State] {
	return b.stateRx
}

// Run long-polls with the default route tree.
func (b *Bloc) Run(ctx context.Context) error {
	return b.RunMode(ctx, LongPollMode(), nil)
}

// RunWithHandler long-polls with a custom route tree.
func (b *Bloc) RunWithHandler(ctx context.Context, tree RouteTree) error {
	return b.RunMode(ctx, LongPollMode(), tree)
}

// RunWithWebhook serves a plain HTTP webhook with the default route tree.
func (b *Bloc) RunWithWebhook(ctx context.Context, url, bindAddr string) error {
	return b.RunMode(ctx, WebhookMode(url, bindAddr), nil)
}

// RunWithWebhookTLS serves an HTTPS webhook with the default route tree.
func (b *Bloc) RunWithWebhookTLS(ctx context.Context, url, bindAddr, certFile, keyFile string) error {
	return b.RunMode(ctx, WebhookTLSMode(url, bindAddr, certFile, keyFile), nil)
}

// RunWithHandlerAndWebhook serves a plain HTTP webhook with a custom route tree.
func (b *Bloc) RunWithHandlerAndWebhook(ctx context.Context, tree RouteTree, url, bindAddr string) error {
	return b.RunMode(ctx, WebhookMode(url, bindAddr), tree)
}

// RunWithHandlerAndWebhookTLS serves an HTTPS webhook with a custom route tree.
func (b *Bloc) RunWithHandlerAndWebhookTLS(ctx context.Context, tree RouteTree, url, bindAddr, certFile, keyFile string) error {
	return b.RunMode(ctx, WebhookTLSMode(url, bindAddr, certFile, keyFile), tree)
}

// RunMode starts ingestion and the Event Processor and blocks until both have
// ended. A nil tree selects DefaultRouteTree.
//
// Startup problems (an invalid mode, a rejected webhook registration, an
// unusable bind address or TLS key pair) are returned before anything runs.
// Cancelling ctx stops ingestion: long polling stops asking for updates and a
// webhook server stops accepting requests. Updates already accepted are still
// dispatched. The processor returns as soon as ctx is done.
func (b *Bloc) RunMode(ctx context.Context, mode IngestionMode, tree RouteTree) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer b.running.Store(false)

	if tree == nil {
		tree = DefaultRouteTree(b.commandPrefix)
	}

	source, err := b.startIngestion(ctx, mode)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"mode":  mode.Kind.String(),
			"error": err,
		}).Error("failed-to-start-ingestion")
		return err
	}

	logger.WithFields(logrus.Fields{
		"mode":   mode.Kind.String(),
		"routes": len(tree),
	}).Info("bloc-started")

	dispatcher := NewDispatcher(tree, b.states)

	var g errgroup.Group
	g.Go(func() error {
		err := dispatcher.Run(ctx, source.updates)
		if waitErr := source.wait(); err == nil {
			err = waitErr
		}
		return err
	})
	g.Go(func() error {
		return b.processor.Run(ctx)
	})

	err = g.Wait()
	logger.WithFields(logrus.Fields{
		"mode":  mode.Kind.String(),
		"error": err,
	}).Info("bloc-stopped")
	return err
}

// Close drops the facade's sender handles. Subscribers observe end-of-stream
// once they have drained what was already published, and the processor exits
// after the queued events.
func (b *Bloc) Close() {
	b.events.Close()
	b.states.Close()
}

type ingestion struct {
	updates *stream.Receiver[tgbotapi.Update]
	wait    func() error
}

func (b *Bloc) startIngestion(ctx context.Context, mode IngestionMode) (*ingestion, error) {
	switch mode.Kind {
	case IngestionLongPoll:
		return b.startLongPoll(ctx)
	case IngestionWebhook, IngestionWebhookTLS:
		l, err := webhook.Start(ctx, b.client, webhook.Config{
			URL:             mode.URL,
			BindAddr:        mode.BindAddr,
			CertFile:        mode.CertFile,
			KeyFile:         mode.KeyFile,
			ShutdownTimeout: b.shutdownTimeout,
		})
		if err != nil {
			return nil, err
		}
		return &ingestion{updates: l.Updates(), wait: l.Wait}, nil
	default:
		return nil, fmt.Errorf("unsupported ingestion mode %s", mode.Kind)
	}
}

func (b *Bloc) startLongPoll(ctx context.Context) (*ingestion, error) {
	ch, err := b.client.Updates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start long polling: %w", err)
	}

	tx, rx := stream.New[tgbotapi.Update]()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer tx.Close()
		pumpUpdates(ctx, ch, tx)
	}()

	return &ingestion{
		updates: rx,
		wait: func() error {
			<-done
			return nil
		},
	}, nil
}

// pumpUpdates forwards polled updates until the platform channel closes or
// ctx is done. Updates the poller already fetched are forwarded before
// returning.
func pumpUpdates(ctx context.Context, ch <-chan tgbotapi.Update, tx *stream.Sender[tgbotapi.Update]) {
	for {
		select {
		case update, ok := <-ch:
			if !ok {
				return
			}
			tx.Send(update)
		case <-ctx.Done():
			for {
				select {
				case update, ok := <-ch:
					if !ok {
						return
					}
					tx.Send(update)
				default:
					return
				}
			}
		}
	}
}
