package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Defaults are overlaid by an optional YAML file, then by environment
// variables (a .env file in the working directory is honoured), so the
// binary runs locally without any setup.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	BackendURL     string        `yaml:"backend_url"`
	BackendToken   string        `yaml:"backend_token"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`
	RideCacheTTL   time.Duration `yaml:"ride_cache_ttl"`
	CatalogRefresh time.Duration `yaml:"catalog_refresh"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	SnapshotKey   string        `yaml:"snapshot_key"`
	SnapshotTTL   time.Duration `yaml:"snapshot_ttl"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	CatalogTopic string   `yaml:"catalog_topic"`
	BookingTopic string   `yaml:"booking_topic"`

	PGDSN         string `yaml:"pg_dsn"`
	RunMigrations bool   `yaml:"run_migrations"`
	MigrationsDir string `yaml:"migrations_dir"`

	StripeKey      string `yaml:"stripe_key"`
	StripeCurrency string `yaml:"stripe_currency"`

	PushoverToken string `yaml:"pushover_token"`
	PushoverUser  string `yaml:"pushover_user"`
	WebhookURL    string `yaml:"webhook_url"`

	MinStations  int `yaml:"min_stations"`
	MinCarriages int `yaml:"min_carriages"`

	LogLevel string `yaml:"log_level"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		CORSOrigins:     []string{"http://localhost:4200"},
		BackendTimeout:  5 * time.Second,
		RideCacheTTL:    30 * time.Second,
		CatalogRefresh:  5 * time.Minute,
		SnapshotKey:     "catalog:snapshot",
		SnapshotTTL:     24 * time.Hour,
		CatalogTopic:    "catalog-changes",
		BookingTopic:    "bookings",
		MigrationsDir:   "migrations",
		StripeCurrency:  "eur",
		MinStations:     1,
		MinCarriages:    1,
		LogLevel:        "info",
	}
}

// LoadServerConfig builds the server configuration. path may be empty.
func LoadServerConfig(path string) (ServerConfig, error) {
	_ = godotenv.Load()
	cfg := defaultServerConfig()
	var errs []error

	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			errs = append(errs, err)
		}
	}

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)
	setListFromEnv(&cfg.CORSOrigins, "CORS_ORIGINS")

	setStringFromEnv(&cfg.BackendURL, "BACKEND_URL")
	setStringFromEnv(&cfg.BackendToken, "BACKEND_TOKEN")
	setDurationFromEnv(&cfg.BackendTimeout, "BACKEND_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.RideCacheTTL, "RIDE_CACHE_TTL", &errs)
	setDurationFromEnv(&cfg.CatalogRefresh, "CATALOG_REFRESH", &errs)

	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	setStringFromEnv(&cfg.RedisPassword, "REDIS_PASSWORD")
	setStringFromEnv(&cfg.SnapshotKey, "REDIS_SNAPSHOT_KEY")
	setDurationFromEnv(&cfg.SnapshotTTL, "REDIS_SNAPSHOT_TTL", &errs)

	setListFromEnv(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	setStringFromEnv(&cfg.CatalogTopic, "KAFKA_CATALOG_TOPIC")
	setStringFromEnv(&cfg.BookingTopic, "KAFKA_BOOKING_TOPIC")

	setStringFromEnv(&cfg.PGDSN, "PG_DSN")
	setBoolFromEnv(&cfg.RunMigrations, "MIGRATE")
	setStringFromEnv(&cfg.MigrationsDir, "MIGRATIONS_DIR")

	setStringFromEnv(&cfg.StripeKey, "STRIPE_API_KEY")
	setStringFromEnv(&cfg.StripeCurrency, "STRIPE_CURRENCY")

	setStringFromEnv(&cfg.PushoverToken, "PUSHOVER_TOKEN")
	setStringFromEnv(&cfg.PushoverUser, "PUSHOVER_USER")
	setStringFromEnv(&cfg.WebhookURL, "NOTIFY_WEBHOOK_URL")

	setIntFromEnv(&cfg.MinStations, "ROUTE_MIN_STATIONS", &errs)
	setIntFromEnv(&cfg.MinCarriages, "ROUTE_MIN_CARRIAGES", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.MinStations <= 0 {
		errs = append(errs, fmt.Errorf("ROUTE_MIN_STATIONS must be > 0"))
	}
	if cfg.MinCarriages <= 0 {
		errs = append(errs, fmt.Errorf("ROUTE_MIN_CARRIAGES must be > 0"))
	}
	if (cfg.PushoverToken == "") != (cfg.PushoverUser == "") {
		errs = append(errs, fmt.Errorf("PUSHOVER_TOKEN and PUSHOVER_USER must be set together"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig configures the catalog-change consumer.
type ConsumerConfig struct {
	KafkaBrokers []string      `yaml:"kafka_brokers"`
	Topic        string        `yaml:"topic"`
	Group        string        `yaml:"group"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisPass    string        `yaml:"redis_password"`
	SnapshotKey  string        `yaml:"snapshot_key"`
	SnapshotTTL  time.Duration `yaml:"snapshot_ttl"`
	BackendURL   string        `yaml:"backend_url"`
	BackendToken string        `yaml:"backend_token"`
	Attempts     int           `yaml:"attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	LogLevel     string        `yaml:"log_level"`
}

func defaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		KafkaBrokers: []string{"localhost:9092"},
		Topic:        "catalog-changes",
		Group:        "train-booking-consumer",
		RedisAddr:    "localhost:6379",
		SnapshotKey:  "catalog:snapshot",
		SnapshotTTL:  24 * time.Hour,
		Attempts:     3,
		RetryDelay:   200 * time.Millisecond,
		LogLevel:     "info",
	}
}

func LoadConsumerConfig(path string) (ConsumerConfig, error) {
	_ = godotenv.Load()
	cfg := defaultConsumerConfig()
	var errs []error

	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			errs = append(errs, err)
		}
	}

	setListFromEnv(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	setStringFromEnv(&cfg.Topic, "KAFKA_CATALOG_TOPIC")
	setStringFromEnv(&cfg.Group, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	setStringFromEnv(&cfg.RedisPass, "REDIS_PASSWORD")
	setStringFromEnv(&cfg.SnapshotKey, "REDIS_SNAPSHOT_KEY")
	setDurationFromEnv(&cfg.SnapshotTTL, "REDIS_SNAPSHOT_TTL", &errs)
	setStringFromEnv(&cfg.BackendURL, "BACKEND_URL")
	setStringFromEnv(&cfg.BackendToken, "BACKEND_TOKEN")
	setIntFromEnv(&cfg.Attempts, "CONSUMER_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.RetryDelay, "CONSUMER_RETRY_DELAY", &errs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.BackendURL == "" {
		errs = append(errs, fmt.Errorf("BACKEND_URL is required"))
	}
	if cfg.Attempts <= 0 {
		errs = append(errs, fmt.Errorf("CONSUMER_ATTEMPTS must be > 0"))
	}
	return cfg, errors.Join(errs...)
}

func loadYAML(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBoolFromEnv(target *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = strings.EqualFold(v, "true")
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func setListFromEnv(target *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = splitAndTrim(v)
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
