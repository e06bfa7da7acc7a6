package core

import (
	"errors"
	"fmt"
	"strings"
)

// IngestionKind selects how updates enter the core.
type IngestionKind int

const (
	IngestionLongPoll IngestionKind = iota
	IngestionWebhook
	IngestionWebhookTLS
)

var ingestionKindNames = map[IngestionKind]string{
	IngestionLongPoll:   "long_poll",
	IngestionWebhook:    "webhook",
	IngestionWebhookTLS: "webhook_tls",
}

func (k IngestionKind) String() string {
	if name, ok := ingestionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("IngestionKind(%d)", int(k))
}

// ParseIngestionKind parses long_poll, webhook or webhook_tls. An empty
// string means long_poll.
func ParseIngestionKind(s string) (IngestionKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return IngestionLongPoll, nil
	}
	for k, name := range ingestionKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown ingestion mode %q (want long_poll, webhook or webhook_tls)", s)
}

// IngestionMode is chosen once per run.
type IngestionMode struct {
	Kind     IngestionKind
	URL      string // public callback URL registered with the platform
	BindAddr string // local host:port the webhook server listens on
	CertFile string
	KeyFile  string
}

// LongPollMode ingests updates by long polling.
func LongPollMode() IngestionMode {
	return IngestionMode{Kind: IngestionLongPoll}
}

// WebhookMode ingests updates through a plain HTTP webhook server.
func WebhookMode(url, bindAddr string) IngestionMode {
	return IngestionMode{Kind: IngestionWebhook, URL: url, BindAddr: bindAddr}
}

// WebhookTLSMode ingests updates through an HTTPS webhook server.
func WebhookTLSMode(url, bindAddr, certFile, keyFile string) IngestionMode {
	return IngestionMode{
		Kind:     IngestionWebhookTLS,
		URL:      url,
		BindAddr: bindAddr,
		CertFile: certFile,
		KeyFile:  keyFile,
	}
}

// Validate checks that every field the kind needs is present.
func (m IngestionMode) Validate() error {
	switch m.Kind {
	case IngestionLongPoll:
		return nil
	case IngestionWebhook, IngestionWebhookTLS:
		var missing []string
		if m.URL == "" {
			missing = append(missing, "url")
		}
		if m.BindAddr == "" {
			missing = append(missing, "bind address")
		}
		if m.Kind == IngestionWebhookTLS {
			if m.CertFile == "" {
				missing = append(missing, "certificate file")
			}
			if m.KeyFile == "" {
				missing = append(missing, "key file")
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%s ingestion requires %s", m.Kind, strings.Join(missing, ", "))
		}
		return nil
	default:
		return errors.New("unknown ingestion mode")
	}
}
