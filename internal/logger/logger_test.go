package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config with file",
			config: Config{
				Level:      "info",
				File:       filepath.Join(dir, "telebloc.log"),
				MaxSize:    1,
				MaxBackups: 1,
				MaxAge:     1,
			},
		},
		{
			name:   "valid config with stdout only",
			config: Config{Level: "debug", EnableStdout: true},
		},
		{
			name: "valid config with both file and stdout",
			config: Config{
				Level:        "warn",
				File:         filepath.Join(dir, "both.log"),
				EnableStdout: true,
			},
		},
		{
			name:   "invalid log level defaults to info",
			config: Config{Level: "invalid"},
		},
		{
			name:   "no writers",
			config: Config{Level: "info"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, GetLogger())
		})
	}
}

func TestInitLogger_CreatesLogDirectory(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "nested", "logs")

	err := InitLogger(Config{Level: "info", File: filepath.Join(logDir, "test.log")})
	require.NoError(t, err)

	info, err := os.Stat(logDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetLogger_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, GetLogger(), GetLogger())
}

func TestLogLevelSetting(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected logrus.Level
	}{
		{"debug level", "debug", logrus.DebugLevel},
		{"info level", "info", logrus.InfoLevel},
		{"warn level", "warn", logrus.WarnLevel},
		{"error level", "error", logrus.ErrorLevel},
		{"invalid level defaults to info", "invalid", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, InitLogger(Config{Level: tt.level}))
			assert.Equal(t, tt.expected, GetLogger().GetLevel())
		})
	}
}

func TestFormatterSetting(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   logrus.Formatter
	}{
		{"debug picks text", Config{Level: "debug"}, &logrus.TextFormatter{}},
		{"info picks json", Config{Level: "info"}, &logrus.JSONFormatter{}},
		{"explicit text", Config{Level: "info", Format: "text"}, &logrus.TextFormatter{}},
		{"explicit json", Config{Level: "debug", Format: "json"}, &logrus.JSONFormatter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, InitLogger(tt.config))
			assert.IsType(t, tt.want, GetLogger().Formatter)
		})
	}
}

func TestWithFields(t *testing.T) {
	require.NoError(t, InitLogger(Config{Level: "info", Format: "json"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	WithFields(logrus.Fields{"chat_id": int64(42), "file_id": "abc"}).Info("event-processed")
	WithField("key", "value").Info("single-field")
	Warn("plain-warning")
	GetLogger().Debug("hidden-debug")

	output := buf.String()
	assert.Contains(t, output, `"chat_id":42`)
	assert.Contains(t, output, "abc")
	assert.Contains(t, output, "value")
	assert.Contains(t, output, "plain-warning")
	assert.NotContains(t, output, "hidden-debug")
}
