package constants

import "time"

// Message limits
const (
	// MaxMediaGroupSize is the largest album Telegram accepts in one request
	MaxMediaGroupSize = 10
)

// Timeouts and delays
const (
	// DefaultPollTimeout is the timeout for long polling operations
	DefaultPollTimeout = 60 * time.Second
	// DefaultShutdownTimeout bounds how long the webhook server waits for in-flight requests
	DefaultShutdownTimeout = 5 * time.Second
	// DefaultReadHeaderTimeout is the webhook server's header read timeout
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultDownloadTimeout bounds a single file download from the platform
	DefaultDownloadTimeout = 5 * time.Minute
)

// Dispatching
const (
	// DefaultCommandPrefix marks a message text as a bot command
	DefaultCommandPrefix = "/"
)

// Webhook server limits
const (
	// MaxWebhookBodySize caps a single pushed update payload
	MaxWebhookBodySize = 1 << 20
	// WebhookHealthPath is the liveness probe route
	WebhookHealthPath = "/health"
)

// Token masking
const (
	// MinTokenLengthForMasking is the minimum token length to apply masking
	MinTokenLengthForMasking = 10
	// TokenMaskPrefixLength is the length of prefix to show before masking
	TokenMaskPrefixLength = 7
	// TokenMaskSuffixLength is the length of suffix to show after masking
	TokenMaskSuffixLength = 4
)

// Logging defaults
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
)
