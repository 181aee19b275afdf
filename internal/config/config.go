// Package config loads service settings from .env, the environment and flags.
package config

import (
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Log backends.
const (
	LogBackendZap  = "zap"
	LogBackendSlog = "slog"
)

// Config stores service settings.
type Config struct {
	Port      int
	DB        DB
	Store     Store
	Kafka     Kafka
	RateLimit RateLimit
	Pprof     Pprof
	Dispatch  Dispatch
	Log       Log
}

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN returns a postgres connection URL.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Store selects the persistence backend.
type Store struct {
	Driver      string
	AutoMigrate bool
}

// Kafka stores broker settings. Empty Brokers disables Kafka entirely.
type Kafka struct {
	Brokers           []string
	GroupID           string
	CourierEventTopic string
	NotifyTopic       string
	PublishAttempts   int
	PublishBaseDelay  time.Duration
	PublishMaxDelay   time.Duration
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// RateLimit stores per-client token bucket settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pprof stores profiling server settings.
type Pprof struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

// Dispatch stores coordinator tuning.
type Dispatch struct {
	OperationTimeout  time.Duration
	ETAAfterPickup    time.Duration
	TrackPollInterval time.Duration
}

// Log selects the logging backend and level.
type Log struct {
	Level   string
	Backend string
}

// Load reads configuration in order: .env (if present), environment, flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      DefaultPort(),
		DB:        DefaultDB(),
		Store:     DefaultStore(),
		Kafka:     DefaultKafka(),
		RateLimit: DefaultRateLimit(),
		Pprof:     DefaultPprof(),
		Dispatch:  DefaultDispatch(),
		Log:       DefaultLog(),
	}
	if err := fromEnv(cfg); err != nil {
		return nil, err
	}
	if err := fromFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv(cfg *Config) error {
	var err error
	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return err
	}

	cfg.DB.Host = envString("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envString("POSTGRES_PORT", cfg.DB.Port)
	if _, err := strconv.Atoi(cfg.DB.Port); err != nil {
		return fmt.Errorf("POSTGRES_PORT: invalid port %q", cfg.DB.Port)
	}
	cfg.DB.User = envString("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = envString("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = envString("POSTGRES_DB", cfg.DB.Name)

	cfg.Store.Driver = strings.ToLower(envString("STORE_DRIVER", cfg.Store.Driver))
	if cfg.Store.AutoMigrate, err = envBool("DB_AUTO_MIGRATE", cfg.Store.AutoMigrate); err != nil {
		return err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	cfg.Kafka.GroupID = envString("KAFKA_GROUP_ID", cfg.Kafka.GroupID)
	cfg.Kafka.CourierEventTopic = envString("KAFKA_COURIER_EVENTS_TOPIC", cfg.Kafka.CourierEventTopic)
	cfg.Kafka.NotifyTopic = envString("KAFKA_NOTIFY_TOPIC", cfg.Kafka.NotifyTopic)
	if cfg.Kafka.PublishAttempts, err = envInt("KAFKA_PUBLISH_ATTEMPTS", cfg.Kafka.PublishAttempts); err != nil {
		return err
	}
	if cfg.Kafka.PublishBaseDelay, err = envDuration("KAFKA_PUBLISH_BASE_DELAY", cfg.Kafka.PublishBaseDelay); err != nil {
		return err
	}
	if cfg.Kafka.PublishMaxDelay, err = envDuration("KAFKA_PUBLISH_MAX_DELAY", cfg.Kafka.PublishMaxDelay); err != nil {
		return err
	}

	if cfg.RateLimit.Enabled, err = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled); err != nil {
		return err
	}
	if cfg.RateLimit.Rate, err = envFloat("RATE_LIMIT_RATE", cfg.RateLimit.Rate); err != nil {
		return err
	}
	if cfg.RateLimit.Burst, err = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst); err != nil {
		return err
	}
	if cfg.RateLimit.TTL, err = envDuration("RATE_LIMIT_TTL", cfg.RateLimit.TTL); err != nil {
		return err
	}
	if cfg.RateLimit.MaxBuckets, err = envInt("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets); err != nil {
		return err
	}

	if cfg.Pprof.Enabled, err = envBool("PPROF_ENABLED", cfg.Pprof.Enabled); err != nil {
		return err
	}
	cfg.Pprof.Addr = envString("PPROF_ADDR", cfg.Pprof.Addr)
	cfg.Pprof.User = envString("PPROF_USER", cfg.Pprof.User)
	cfg.Pprof.Pass = envString("PPROF_PASSWORD", cfg.Pprof.Pass)

	if cfg.Dispatch.OperationTimeout, err = envDuration("DISPATCH_OPERATION_TIMEOUT", cfg.Dispatch.OperationTimeout); err != nil {
		return err
	}
	if cfg.Dispatch.ETAAfterPickup, err = envDuration("DISPATCH_ETA_AFTER_PICKUP", cfg.Dispatch.ETAAfterPickup); err != nil {
		return err
	}
	if cfg.Dispatch.TrackPollInterval, err = envDuration("DISPATCH_TRACK_POLL_INTERVAL", cfg.Dispatch.TrackPollInterval); err != nil {
		return err
	}

	cfg.Log.Level = strings.ToLower(envString("LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Backend = strings.ToLower(envString("LOG_BACKEND", cfg.Log.Backend))
	return nil
}

func fromFlags(cfg *Config) error {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	port := fs.IntP("port", "p", cfg.Port, "port to listen on")
	store := fs.String("store", cfg.Store.Driver, "store driver: postgres or memory")
	brokers := fs.StringSlice("kafka-brokers", cfg.Kafka.Brokers, "kafka brokers")
	level := fs.String("log-level", cfg.Log.Level, "log level: debug, info, warn, error")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	cfg.Port = *port
	cfg.Store.Driver = strings.ToLower(*store)
	cfg.Kafka.Brokers = *brokers
	cfg.Log.Level = strings.ToLower(*level)
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid store driver: %q", c.Store.Driver)
	}
	switch c.Log.Backend {
	case LogBackendZap, LogBackendSlog:
	default:
		return fmt.Errorf("invalid log backend: %q", c.Log.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}
	if c.Kafka.Enabled() && c.Kafka.GroupID == "" {
		return fmt.Errorf("KAFKA_GROUP_ID is required when brokers are set")
	}
	if c.Dispatch.OperationTimeout <= 0 || c.Dispatch.ETAAfterPickup <= 0 || c.Dispatch.TrackPollInterval <= 0 {
		return fmt.Errorf("dispatch durations must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit needs positive rate and burst")
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
