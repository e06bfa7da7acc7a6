// Package webhook implements push ingestion: an HTTP(S) server that accepts
// Telegram updates POSTed as JSON and forwards them into an unbounded stream,
// the same kind of stream long polling feeds.
//
// The server exposes two routes:
//
//	POST /        JSON-encoded tgbotapi.Update, 200 on success
//	GET  /health  always 200 {"status":"OK"}
//
// Updates are also accepted on the path of the registered URL, since that is
// where Telegram delivers them.
//
// Anything else, and any payload that fails to decode, is answered by the
// rejection handler with a JSON {"code":...,"message":...} body.
//
// A Listener is stopped through its StopToken. Stopping closes the listening
// socket, lets in-flight requests finish (bounded by Config.ShutdownTimeout)
// and then closes the update stream, so a consumer draining the stream sees
// every accepted update before end-of-stream.
package webhook

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/keepmind9/telebloc/internal/logger"
	"github.com/keepmind9/telebloc/internal/stream"
	"github.com/keepmind9/telebloc/pkg/constants"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidURL   = errors.New("invalid webhook url")
	ErrBind         = errors.New("cannot bind webhook listener")
	ErrTLS          = errors.New("invalid TLS certificate or key")
	ErrRegistration = errors.New("webhook registration rejected")
)

// Registrar registers the public callback URL with the platform, and drops
// it again when the server cannot be started.
type Registrar interface {
	SetWebhook(ctx context.Context, url string) error
	DeleteWebhook(ctx context.Context) error
}

// Config describes one webhook server.
type Config struct {
	URL             string
	BindAddr        string
	CertFile        string // both CertFile and KeyFile set enables TLS
	KeyFile         string
	ShutdownTimeout time.Duration
}

// TLS reports whether the server terminates TLS itself.
func (c Config) TLS() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// Listener is a running webhook server and the stream it feeds.
type Listener struct {
	updates  *stream.Receiver[tgbotapi.Update]
	tx       *stream.Sender[tgbotapi.Update]
	token    *StopToken
	server   *http.Server
	path     string
	addr     net.Addr
	shutdown time.Duration
	done     chan struct{}
	err      error
}

// Start registers cfg.URL with the platform and starts serving on
// cfg.BindAddr. All configuration problems are reported before anything is
// served. Cancelling ctx signals the listener's StopToken.
func Start(ctx context.Context, registrar Registrar, cfg Config) (*Listener, error) {
	path, err := validateURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.BindAddr); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, cfg.BindAddr, err)
	}

	var tlsConfig *tls.Config
	if cfg.TLS() {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTLS, err)
		}
		tlsConfig = defaultTLSConfig()
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if err := registrar.SetWebhook(ctx, cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistration, err)
	}

	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		if delErr := registrar.DeleteWebhook(context.WithoutCancel(ctx)); delErr != nil {
			logger.WithFields(logrus.Fields{
				"url":   cfg.URL,
				"error": delErr,
			}).Warn("failed-to-delete-webhook-after-bind-failure")
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, cfg.BindAddr, err)
	}
	addr := ln.Addr()
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = constants.DefaultShutdownTimeout
	}

	tx, rx := stream.New[tgbotapi.Update]()
	l := &Listener{
		updates:  rx,
		tx:       tx,
		token:    NewStopToken(),
		path:     path,
		addr:     addr,
		shutdown: shutdown,
		done:     make(chan struct{}),
	}
	l.server = &http.Server{
		Handler:           l.routes(),
		ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		TLSConfig:         tlsConfig,
	}

	logger.WithFields(logrus.Fields{
		"address": addr.String(),
		"url":     cfg.URL,
		"path":    path,
		"tls":     tlsConfig != nil,
	}).Info("webhook-server-listening")

	serveErr := make(chan error, 1)
	go func() {
		err := l.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()
	go l.supervise(serveErr)
	go func() {
		select {
		case <-ctx.Done():
			l.token.Stop()
		case <-l.done:
		}
	}()

	return l, nil
}

// validateURL checks the callback URL and returns the path updates will be
// POSTed to.
func validateURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("%w: %q must use http or https", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if path == constants.WebhookHealthPath {
		return "", fmt.Errorf("%w: %q collides with the health route", ErrInvalidURL, raw)
	}
	return path, nil
}

func defaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}

func (l *Listener) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", l.handleUpdate).Methods(http.MethodPost)
	if l.path != "/" {
		r.HandleFunc(l.path, l.handleUpdate).Methods(http.MethodPost)
	}
	r.HandleFunc(constants.WebhookHealthPath, HealthHandler).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reject(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reject(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (l *Listener) handleUpdate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var update tgbotapi.Update
	body := http.MaxBytesReader(w, r.Body, constants.MaxWebhookBodySize)
	if err := json.NewDecoder(body).Decode(&update); err != nil {
		logger.WithField("error", err).Warn("failed-to-decode-webhook-update")
		reject(w, http.StatusBadRequest, fmt.Sprintf("invalid update payload: %v", err))
		return
	}

	if err := l.tx.Send(update); err != nil {
		logger.WithFields(logrus.Fields{
			"update_id": update.UpdateID,
			"error":     err,
		}).Warn("failed-to-forward-webhook-update")
		reject(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	logger.WithField("update_id", update.UpdateID).Debug("webhook-update-accepted")
	w.WriteHeader(http.StatusOK)
}

// supervise waits for a stop request or a server failure, shuts the server
// down and closes the update stream.
func (l *Listener) supervise(serveErr <-chan error) {
	defer close(l.done)
	defer l.tx.Close()

	select {
	case <-l.token.Done():
		logger.Info("stopping-webhook-server")
		ctx, cancel := context.WithTimeout(context.Background(), l.shutdown)
		defer cancel()

		if err := l.server.Shutdown(ctx); err != nil {
			logger.Errorf("failed-to-gracefully-stop-webhook-server: %v", err)
			l.server.Close()
			l.err = err
		} else {
			logger.Info("webhook-server-stopped-gracefully")
		}
		if err := <-serveErr; err != nil && l.err == nil {
			l.err = err
		}
	case err := <-serveErr:
		if err != nil {
			logger.WithField("error", err).Error("webhook-server-error")
			l.err = err
		}
		l.token.Stop()
	}
}

// Updates returns the stream of accepted updates. It ends after the server
// has stopped and every in-flight request has been forwarded.
func (l *Listener) Updates() *stream.Receiver[tgbotapi.Update] {
	return l.updates
}

// StopToken returns the token that stops this listener.
func (l *Listener) StopToken() *StopToken {
	return l.token
}

// Addr returns the bound address, useful when BindAddr used port 0.
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// Wait blocks until the server has stopped and the update stream is closed.
func (l *Listener) Wait() error {
	<-l.done
	return l.err
}
