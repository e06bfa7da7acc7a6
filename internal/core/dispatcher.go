package core

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/keepmind9/telebloc/internal/logger"
	"github.com/keepmind9/telebloc/internal/stream"
	"github.com/sirupsen/logrus"
)

// Predicate decides whether a Route takes an update.
type Predicate func(update *tgbotapi.Update) bool

// Handler turns an update into a State. Returning false publishes nothing.
type Handler func(ctx context.Context, update *tgbotapi.Update) (State, bool)

// Route pairs a predicate with the handler that runs when it matches.
type Route struct {
	Name      string
	Predicate Predicate
	Handler   Handler
}

// RouteTree is an ordered list of routes. The first matching route wins.
type RouteTree []Route

// Match returns the first route whose predicate accepts update.
func (t RouteTree) Match(update *tgbotapi.Update) (Route, bool) {
	for _, r := range t {
		if r.Predicate != nil && r.Predicate(update) {
			return r, true
		}
	}
	return Route{}, false
}

// MessageRoute builds a route over update.Message. Updates without a message
// never match.
func MessageRoute(name string, match func(*tgbotapi.Message) bool, build func(*tgbotapi.Message) State) Route {
	return Route{
		Name: name,
		Predicate: func(update *tgbotapi.Update) bool {
			return update.Message != nil && match(update.Message)
		},
		Handler: func(_ context.Context, update *tgbotapi.Update) (State, bool) {
			return build(update.Message), true
		},
	}
}

// HasText reports whether m carries text content.
func HasText(m *tgbotapi.Message) bool {
	return m.Text != ""
}

// IsCommand reports whether m's text starts with prefix.
func IsCommand(prefix string) func(*tgbotapi.Message) bool {
	return func(m *tgbotapi.Message) bool {
		return HasText(m) && strings.HasPrefix(m.Text, prefix)
	}
}

// DefaultRouteTree classifies text messages starting with prefix as Command
// and any other text message as PlainMessage. Everything else, including
// messages without text, falls through to the no-op default.
func DefaultRouteTree(prefix string) RouteTree {
	return RouteTree{
		MessageRoute("command", IsCommand(prefix), func(m *tgbotapi.Message) State {
			return Command{Message: m}
		}),
		MessageRoute("message", HasText, func(m *tgbotapi.Message) State {
			return PlainMessage{Message: m}
		}),
	}
}

// Dispatcher routes inbound updates through a RouteTree onto the State stream.
type Dispatcher struct {
	tree   RouteTree
	states *stream.Sender[State]
}

// NewDispatcher creates a dispatcher publishing onto states.
func NewDispatcher(tree RouteTree, states *stream.Sender[State]) *Dispatcher {
	return &Dispatcher{tree: tree, states: states}
}

// Run dispatches updates until the update stream reports end-of-stream.
// Cancelling ctx does not stop Run; the update source is expected to close
// the stream, so every accepted update is still dispatched.
func (d *Dispatcher) Run(ctx context.Context, updates *stream.Receiver[tgbotapi.Update]) error {
	logger.Info("dispatcher-started")

	recvCtx := context.WithoutCancel(ctx)
	for {
		update, err := updates.Recv(recvCtx)
		if err != nil {
			if errors.Is(err, stream.ErrClosed) {
				logger.Info("dispatcher-update-stream-closed")
				return nil
			}
			return err
		}
		d.Dispatch(ctx, update)
	}
}

// Dispatch routes a single update.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	route, ok := d.tree.Match(&update)
	if !ok {
		logger.WithField("update_id", update.UpdateID).Debug("update-ignored-by-default-handler")
		return
	}

	state, ok := d.invoke(ctx, route, &update)
	if !ok || state == nil {
		return
	}

	if err := d.states.Send(state); err != nil {
		logger.WithFields(logrus.Fields{
			"update_id": update.UpdateID,
			"route":     route.Name,
			"error":     err,
		}).Warn("failed-to-publish-update-state")
	}
}

func (d *Dispatcher) invoke(ctx context.Context, route Route, update *tgbotapi.Update) (state State, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"update_id": update.UpdateID,
				"route":     route.Name,
				"panic":     r,
			}).Error("route-handler-panic-recovered")
			state, ok = nil, false
		}
	}()
	if route.Handler == nil {
		return nil, false
	}
	return route.Handler(ctx, update)
}

// Guard returns a copy of tree whose routes only match updates accepted by
// allow. Rejected updates fall through to the no-op default.
func Guard(tree RouteTree, allow Predicate) RouteTree {
	guarded := make(RouteTree, len(tree))
	for i, r := range tree {
		pred := r.Predicate
		r.Predicate = func(update *tgbotapi.Update) bool {
			return allow(update) && pred != nil && pred(update)
		}
		guarded[i] = r
	}
	return guarded
}

// FromUser builds a predicate over the update's sender id. Updates without a
// sender are rejected.
func FromUser(allowed func(userID int64) bool) Predicate {
	return func(update *tgbotapi.Update) bool {
		user := sender(update)
		return user != nil && allowed(user.ID)
	}
}

func sender(update *tgbotapi.Update) *tgbotapi.User {
	switch {
	case update.Message != nil:
		return update.Message.From
	case update.EditedMessage != nil:
		return update.EditedMessage.From
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From
	case update.InlineQuery != nil:
		return update.InlineQuery.From
	}
	return nil
}
