package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	DBDSN       string
	HTTPAddr    string
	AdminAPIKey string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	FreeBusyCacheTTL time.Duration
	SlotHoldTTL      time.Duration

	KafkaBrokers []string

	TelegramToken       string
	TelegramAdminChatID int64

	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphCalendarUser string
	CalendarTimeout   time.Duration

	ReminderInterval time.Duration

	OTelEnabled      bool
	OTelEndpoint     string
	OTelSamplingRate float64
}

// Load reads the configuration from the environment, after loading .env when present.
// It reports whether a .env file was used so the caller can log it once a logger exists.
func Load() (*Config, bool, error) {
	fromFile := godotenv.Load(".env") == nil

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return nil, fromFile, err
	}
	return cfg, fromFile, nil
}

// FromEnv builds the configuration from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		Environment: r.strValue("ENV", "development"),
		LogLevel:    r.strValue("LOG_LEVEL", ""),
		DBDSN:       r.strValue("DB_DSN", ""),
		HTTPAddr:    r.strValue("HTTP_ADDR", ":8080"),
		AdminAPIKey: r.strValue("ADMIN_API_KEY", ""),

		RedisAddr:        r.strValue("REDIS_ADDR", ""),
		RedisPassword:    r.strValue("REDIS_PASSWORD", ""),
		RedisDB:          r.intValue("REDIS_DB", 0),
		FreeBusyCacheTTL: r.durationValue("FREEBUSY_CACHE_TTL", 2*time.Minute),
		SlotHoldTTL:      r.durationValue("SLOT_HOLD_TTL", 30*time.Second),

		KafkaBrokers: splitList(r.strValue("KAFKA_BROKERS", "")),

		TelegramToken:       r.strValue("TELEGRAM_TOKEN", ""),
		TelegramAdminChatID: r.int64Value("TELEGRAM_ADMIN_CHAT_ID", 0),

		GraphTenantID:     r.strValue("GRAPH_TENANT_ID", ""),
		GraphClientID:     r.strValue("GRAPH_CLIENT_ID", ""),
		GraphClientSecret: r.strValue("GRAPH_CLIENT_SECRET", ""),
		GraphCalendarUser: r.strValue("GRAPH_CALENDAR_USER", ""),
		CalendarTimeout:   r.durationValue("CALENDAR_TIMEOUT", 5*time.Second),

		ReminderInterval: r.durationValue("REMINDER_INTERVAL", time.Hour),

		OTelEnabled:      r.boolValue("OTEL_ENABLED", false),
		OTelEndpoint:     r.strValue("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelSamplingRate: r.floatValue("OTEL_SAMPLING_RATIO", 1),
	}

	if r.err != nil {
		return nil, r.err
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.OTelSamplingRate < 0 || cfg.OTelSamplingRate > 1 {
		return nil, fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1, got %v", cfg.OTelSamplingRate)
	}
	if cfg.ReminderInterval <= 0 {
		return nil, fmt.Errorf("REMINDER_INTERVAL must be positive, got %s", cfg.ReminderInterval)
	}

	return cfg, nil
}

// RedisEnabled reports whether the free/busy cache and slot holds are backed by redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// TelegramEnabled reports whether both the bot token and the admin chat are known.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramAdminChatID != 0
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// reader keeps the first parse error so that every key is read in one pass.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) raw(key string) (string, bool) {
	v := strings.TrimSpace(r.getenv(key))
	return v, v != ""
}

func (r *reader) fail(key, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
}

func (r *reader) strValue(key, def string) string {
	if v, ok := r.raw(key); ok {
		return v
	}
	return def
}

func (r *reader) intValue(key string, def int) int {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) int64Value(key string, def int64) int64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) floatValue(key string, def float64) float64 {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *reader) boolValue(key string, def bool) bool {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *reader) durationValue(key string, def time.Duration) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
