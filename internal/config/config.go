package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Requests per client IP per minute; 0 disables rate limiting.
	RateLimitPerMinute int

	// How long per-org trigger listings may be served from cache.
	TriggerCacheTTL time.Duration

	// Database
	SQLiteDBPath string

	// AMQP (optional; empty URL disables async dispatch)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Mail
	MailBackend     string // "memory" or "gmail"
	AlertRecipients []string
	SendTimeout     time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8082"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TriggerCacheTTL:    getEnvDuration("TRIGGER_CACHE_TTL", 30*time.Second),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finpulse.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finpulse"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "trigger_events"),

		MailBackend:     getEnv("MAIL_BACKEND", "memory"),
		AlertRecipients: getEnvList("ALERT_RECIPIENTS"),
		SendTimeout:     getEnvDuration("SEND_TIMEOUT", 10*time.Second),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be zero or positive", c.RateLimitPerMinute))
	}
	if c.TriggerCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid trigger cache TTL %v: must be zero or positive", c.TriggerCacheTTL))
	}

	// Validate SQLite path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate mail backend
	validBackends := []string{"memory", "gmail"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.MailBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid mail backend '%s': must be one of %v", c.MailBackend, validBackends))
	}

	for _, recipient := range c.AlertRecipients {
		if !strings.Contains(recipient, "@") {
			errors = append(errors, fmt.Sprintf("invalid alert recipient '%s'", recipient))
		}
	}

	if c.SendTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid send timeout %v: must be at least 1 second", c.SendTimeout))
	} else if c.SendTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid send timeout %v: must be at most 1 minute", c.SendTimeout))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
