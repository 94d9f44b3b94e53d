package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/joescharf/fbchat/internal/conn"
	"github.com/joescharf/fbchat/internal/models"
	"github.com/joescharf/fbchat/internal/session"
)

// envKeyReplacer maps nested keys to env vars: server.url -> FBCHAT_SERVER_URL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// settings is the validated runtime configuration for a chat.
type settings struct {
	Conn      conn.Options
	Token     string
	Session   session.Config
	AltScreen bool
	LogFile   string
	LogLevel  string
}

func loadSettings() (settings, error) {
	raw := strings.TrimSpace(viper.GetString("server.url"))
	if raw == "" {
		return settings{}, fmt.Errorf("server.url is not set (run 'fbchat config init')")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return settings{}, fmt.Errorf("server.url must be a ws:// or wss:// URL, got %q", raw)
	}

	opts := conn.DefaultOptions(raw)
	opts.MaxAttempts = viper.GetInt("connection.max_attempts")
	if opts.MaxAttempts < 1 {
		return settings{}, fmt.Errorf("connection.max_attempts must be at least 1, got %d", opts.MaxAttempts)
	}
	opts.RetryDelay = viper.GetDuration("connection.retry_delay")
	if opts.RetryDelay < 0 {
		return settings{}, fmt.Errorf("connection.retry_delay must not be negative")
	}
	if d := viper.GetDuration("connection.dial_timeout"); d > 0 {
		opts.DialTimeout = d
	}

	mode := strings.ToLower(strings.TrimSpace(viper.GetString("session.feedback_mode")))
	if mode != string(models.FeedbackConditional) && mode != string(models.FeedbackInline) {
		return settings{}, fmt.Errorf("session.feedback_mode must be %q or %q, got %q",
			models.FeedbackConditional, models.FeedbackInline, mode)
	}

	return settings{
		Conn:  opts,
		Token: viper.GetString("auth.token"),
		Session: session.Config{
			FeedbackMode:    models.ParseFeedbackMode(mode),
			ClearTranscript: viper.GetBool("session.clear_transcript"),
		},
		AltScreen: viper.GetBool("ui.alt_screen"),
		LogFile:   viper.GetString("log.file"),
		LogLevel:  viper.GetString("log.level"),
	}, nil
}
