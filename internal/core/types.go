package core

// Config represents the complete telebloc configuration structure.
// Fields tagged with env can be overridden by TELEBLOC_* environment variables.
type Config struct {
	Bot        BotConfig        `yaml:"bot"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Security   SecurityConfig   `yaml:"security"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BotConfig represents the Telegram bot connection
type BotConfig struct {
	Token string `yaml:"token" env:"TELEBLOC_BOT_TOKEN"`
	// "", Markdown, MarkdownV2 or HTML
	ParseMode string `yaml:"parse_mode" env:"TELEBLOC_BOT_PARSE_MODE"`
	// Endpoint formats, e.g. https://api.telegram.org/bot%s/%s
	APIEndpoint  string `yaml:"api_endpoint"`
	FileEndpoint string `yaml:"file_endpoint"`
	Debug        bool   `yaml:"debug" env:"TELEBLOC_BOT_DEBUG"`
}

// IngestionConfig selects how updates are received
type IngestionConfig struct {
	// long_poll, webhook or webhook_tls
	Mode       string `yaml:"mode" env:"TELEBLOC_INGESTION_MODE"`
	WebhookURL string `yaml:"webhook_url" env:"TELEBLOC_WEBHOOK_URL"`
	BindAddr   string `yaml:"bind_addr" env:"TELEBLOC_BIND_ADDR"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	// Long polling timeout in seconds
	PollTimeout int `yaml:"poll_timeout"`
	// Webhook grace period as a Go duration
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	// Drop a stale webhook before long polling
	DeleteWebhook bool `yaml:"delete_webhook"`
}

// DispatcherConfig represents the default route tree settings
type DispatcherConfig struct {
	CommandPrefix string `yaml:"command_prefix"`
}

// SecurityConfig represents access control configuration
type SecurityConfig struct {
	WhitelistEnabled bool    `yaml:"whitelist_enabled"`
	AllowedUsers     []int64 `yaml:"allowed_users" env:"TELEBLOC_ALLOWED_USERS" envSeparator:","`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" env:"TELEBLOC_LOG_LEVEL"`
	// json or text, empty picks by level
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	// Rotation: size in MB, age in days
	MaxSize    int  `yaml:"max_size"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAge     int  `yaml:"max_age"`
	Compress   bool `yaml:"compress"`
	// Defaults to true when omitted
	EnableStdout *bool `yaml:"enable_stdout"`
}
