package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/i474232898/weather-ingest/internal/store"
	"github.com/i474232898/weather-ingest/internal/weather"
)

// DBConfig holds database connection settings.
type DBConfig struct {
	Driver   string // postgres, sqlite or memory
	User     string
	Password string
	Host     string
	Port     string // optional; empty or "none" omits it from the DSN
	Name     string
	Path     string // sqlite file
	MaxConns int
}

type AppConfig struct {
	DB DBConfig

	WeatherAPIURL string
	WeatherAPIKey string

	// HTTPTimeout bounds a single provider request.
	HTTPTimeout time.Duration
	// MaxRetries is the number of extra attempts per provider request.
	MaxRetries int
	// InsecureSkipVerify disables TLS certificate verification for provider calls.
	InsecureSkipVerify bool

	// City is the location the scheduled pipeline ingests.
	City string
	// Schedule is the cron expression (UTC) for the daily pipeline.
	Schedule    string
	ErrorPolicy weather.ErrorPolicy

	// BackfillRate caps provider calls per second during backfill (0 = unlimited).
	BackfillRate float64

	Port      string
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment (and an optional .env file) with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Info("no .env file found, using environment variables")
	}
	cfg := &AppConfig{}

	cfg.DB = DBConfig{
		Driver:   strings.ToLower(getenvDefault("DB_DRIVER", store.DriverPostgres)),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Name:     os.Getenv("DB_NAME"),
		Path:     getenvDefault("DB_PATH", "weather.db"),
		MaxConns: getenvInt("DB_MAX_CONNS", 2),
	}

	cfg.WeatherAPIURL = strings.TrimRight(os.Getenv("WEATHER_API_URL"), "/")
	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")

	timeout, err := time.ParseDuration(getenvDefault("WEATHER_API_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_API_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout
	cfg.MaxRetries = getenvInt("WEATHER_API_MAX_RETRIES", 0)

	insecure, err := getenvBool("WEATHER_API_INSECURE_SKIP_VERIFY", true)
	if err != nil {
		return nil, err
	}
	cfg.InsecureSkipVerify = insecure

	cfg.City = getenvDefault("PIPELINE_CITY", "Joinville")
	cfg.Schedule = getenvDefault("PIPELINE_SCHEDULE", "0 3 * * *")

	policy, err := weather.ParseErrorPolicy(os.Getenv("PIPELINE_ERROR_POLICY"))
	if err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_ERROR_POLICY: %w", err)
	}
	cfg.ErrorPolicy = policy

	rate, err := strconv.ParseFloat(getenvDefault("BACKFILL_RATE_PER_SEC", "0"), 64)
	if err != nil || rate < 0 {
		return nil, fmt.Errorf("invalid BACKFILL_RATE_PER_SEC %q", os.Getenv("BACKFILL_RATE_PER_SEC"))
	}
	cfg.BackfillRate = rate

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	var errs []error
	if c.WeatherAPIURL == "" {
		errs = append(errs, errors.New("WEATHER_API_URL is required"))
	}
	if c.WeatherAPIKey == "" {
		errs = append(errs, errors.New("WEATHER_API_KEY is required"))
	}
	switch c.DB.Driver {
	case store.DriverPostgres:
		required := []struct{ key, value string }{
			{"DB_USER", c.DB.User},
			{"DB_HOST", c.DB.Host},
			{"DB_NAME", c.DB.Name},
		}
		for _, r := range required {
			if r.value == "" {
				errs = append(errs, fmt.Errorf("%s is required for the postgres driver", r.key))
			}
		}
	case store.DriverSQLite, store.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}
	return errors.Join(errs...)
}

// PostgresDSN assembles the connection URL from the DB_* settings.
func (c DBConfig) PostgresDSN() string {
	host := c.Host
	if c.Port != "" && !strings.EqualFold(c.Port, "none") {
		host = net.JoinHostPort(c.Host, c.Port)
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(c.User, c.Password),
		Host:   host,
		Path:   "/" + c.Name,
	}
	return u.String()
}

// StoreOptions maps the config onto store.Open options.
func (c DBConfig) StoreOptions() store.Options {
	return store.Options{
		Driver:   c.Driver,
		DSN:      c.PostgresDSN(),
		Path:     c.Path,
		MaxConns: c.MaxConns,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		zap.L().Warn("failed to parse int", zap.String("key", key), zap.String("value", v), zap.Error(err))
	}
	return def
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
