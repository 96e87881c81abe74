package internal

import (
	"strings"
	"time"
)

type Config struct {
	APIBaseURL  string `env:"API_BASE_URL,required=true"`
	RealtimeURL string `env:"REALTIME_URL,required=true"`
	AccessToken string `env:"ACCESS_TOKEN,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	BufferSize    int           `env:"BUFFER_SIZE,required=true"`
	LimitMessages *int          `env:"LIMIT_MESSAGES"`
	SinkTimeout   time.Duration `env:"SINK_TIMEOUT,required=true"`
	TypingTTL     time.Duration `env:"TYPING_TTL,required=true"`

	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT,required=true"`
	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY,required=true"`
	ReconnectMaxDelay    time.Duration `env:"RECONNECT_MAX_DELAY,required=true"`
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS"`

	UploadMaxBytes int `env:"UPLOAD_MAX_BYTES,required=true"`
	UploadMaxFiles int `env:"UPLOAD_MAX_FILES,required=true"`

	MetricInterval time.Duration `env:"METRIC_INTERVAL,required=true"`

	// Comma separated keyword watch list, empty disables the matcher.
	WatchTerms string `env:"WATCH_TERMS"`
}

// WatchTermList splits the configured watch terms, dropping empties.
func (c Config) WatchTermList() []string {
	if c.WatchTerms == "" {
		return nil
	}
	var terms []string
	for _, term := range strings.Split(c.WatchTerms, ",") {
		if trimmed := strings.TrimSpace(term); trimmed != "" {
			terms = append(terms, trimmed)
		}
	}
	return terms
}
