package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the fireguard server.
type Config struct {
	// HTTP listen address
	ListenAddr string
	// Log level (debug, info, warn, error)
	LogLevel string

	// Postgres DSN; empty means the in-memory store is used
	DatabaseDSN string

	// Alert policy
	DedupWindow      time.Duration // repeated breaches of the same kind collapse into one alert
	DefaultMute      time.Duration // mute duration when the operator supplies none
	AlertListLimit   int           // hard cap on alert listing responses
	ReadingListLimit int           // hard cap on reading listing responses

	// External notification channel (SMTP)
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SenderEmail     string
	AlertRecipients []string
	NotifyRetries   int           // attempts beyond the first
	NotifyBackoff   time.Duration // initial retry backoff

	// Kafka audit sink; empty brokers disables it
	KafkaBrokers    []string
	KafkaAuditTopic string
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		ListenAddr:       ":8080",
		LogLevel:         "info",
		DedupWindow:      5 * time.Minute,
		DefaultMute:      60 * time.Minute,
		AlertListLimit:   200,
		ReadingListLimit: 5000,
		SMTPPort:         587,
		NotifyRetries:    2,
		NotifyBackoff:    500 * time.Millisecond,
		KafkaAuditTopic:  "fireguard-audit",
	}
}

// FromEnv builds a config from environment variables, falling back to defaults.
func FromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")

	if d := envDuration("ALERT_DEDUP_WINDOW"); d > 0 {
		cfg.DedupWindow = d
	}
	if d := envDuration("ALERT_DEFAULT_MUTE"); d > 0 {
		cfg.DefaultMute = d
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if n, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && n > 0 {
		cfg.SMTPPort = n
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SenderEmail = os.Getenv("SENDER_EMAIL")
	cfg.AlertRecipients = splitCSV(os.Getenv("ALERT_RECIPIENTS"))

	cfg.KafkaBrokers = splitCSV(os.Getenv("KAFKA_BROKERS"))
	if v := os.Getenv("KAFKA_AUDIT_TOPIC"); v != "" {
		cfg.KafkaAuditTopic = v
	}

	return cfg
}

func envDuration(key string) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return d
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
