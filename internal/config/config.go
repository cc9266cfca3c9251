package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr                 = ":8080"
	defaultDatabaseURL              = "bookings.db"
	defaultLogLevel                 = "info"
	defaultReferenceMaxAttempts     = "10"
	defaultAppointmentRetryAttempts = "3"
	defaultAppointmentRetryInitial  = "200ms"
	defaultAppointmentRetryMax      = "2s"
	defaultEventsChannel            = "booking.lifecycle"
)

type Config struct {
	AppEnv             string
	HTTPAddr           string
	DatabaseURL        string
	LogLevel           string
	JWTSecret          string
	CORSAllowedOrigins []string

	ReferenceMaxAttempts     int
	AppointmentRetryAttempts int
	AppointmentRetryInitial  time.Duration
	AppointmentRetryMax      time.Duration

	RedisURL      string
	EventsChannel string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	cfg.CORSAllowedOrigins = parseListEnv("CORS_ALLOWED_ORIGINS")
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.EventsChannel = strings.TrimSpace(getEnv("EVENTS_CHANNEL", defaultEventsChannel))

	var err error
	cfg.ReferenceMaxAttempts, err = parseIntEnv("REFERENCE_MAX_ATTEMPTS", defaultReferenceMaxAttempts)
	if err != nil {
		return nil, err
	}

	cfg.AppointmentRetryAttempts, err = parseIntEnv("APPOINTMENT_RETRY_ATTEMPTS", defaultAppointmentRetryAttempts)
	if err != nil {
		return nil, err
	}

	cfg.AppointmentRetryInitial, err = parseDurationEnv("APPOINTMENT_RETRY_INITIAL", defaultAppointmentRetryInitial)
	if err != nil {
		return nil, err
	}

	cfg.AppointmentRetryMax, err = parseDurationEnv("APPOINTMENT_RETRY_MAX", defaultAppointmentRetryMax)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AuthEnabled reports whether admin routes are protected by JWT.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// LogValue keeps secrets out of startup logs.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("app_env", c.AppEnv),
		slog.String("http_addr", c.HTTPAddr),
		slog.Bool("auth_enabled", c.AuthEnabled()),
		slog.Bool("redis_events", c.RedisURL != ""),
		slog.Int("reference_max_attempts", c.ReferenceMaxAttempts),
		slog.Int("appointment_retry_attempts", c.AppointmentRetryAttempts),
	)
}

func validateConfig(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.ReferenceMaxAttempts < 1 {
		return fmt.Errorf("REFERENCE_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.AppointmentRetryAttempts < 1 {
		return fmt.Errorf("APPOINTMENT_RETRY_ATTEMPTS must be >= 1")
	}
	if cfg.AppointmentRetryInitial <= 0 {
		return fmt.Errorf("APPOINTMENT_RETRY_INITIAL must be > 0")
	}
	if cfg.AppointmentRetryMax < cfg.AppointmentRetryInitial {
		return fmt.Errorf("APPOINTMENT_RETRY_MAX must be >= APPOINTMENT_RETRY_INITIAL")
	}
	if cfg.EventsChannel == "" {
		return fmt.Errorf("EVENTS_CHANNEL must not be empty")
	}

	if isProdLike(cfg.AppEnv) {
		if cfg.JWTSecret == "" {
			return fmt.Errorf("in prod/release JWT_SECRET must be set")
		}
		if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
			return fmt.Errorf("in prod/release DATABASE_URL must point to PostgreSQL")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseListEnv(name string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
