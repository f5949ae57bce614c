package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	JWTSecret string

	LogLevel      string
	RunMigrations bool
}

// TrackerConfig tunes the on-device pipeline: sampler gates and transport
// endpoints for the simulator binary.
type TrackerConfig struct {
	ServerURL string
	WSURL     string
	Token     string

	ForegroundInterval     time.Duration
	ForegroundDisplacement float64
	BackgroundInterval     time.Duration
	BackgroundDisplacement float64

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "cars_geo",
		KafkaTopic:      "location-samples",
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be set"))
	}

	return cfg, errors.Join(errs...)
}

func defaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		ServerURL:              "http://localhost:8080",
		WSURL:                  "ws://localhost:8080/ws/tracking",
		ForegroundInterval:     time.Second,
		ForegroundDisplacement: 10,
		BackgroundInterval:     10 * time.Second,
		BackgroundDisplacement: 20,
		LogLevel:               "info",
	}
}

func LoadTrackerConfig() (TrackerConfig, error) {
	cfg := defaultTrackerConfig()
	var errs []error

	setStringFromEnv(&cfg.ServerURL, "SERVER_URL")
	setStringFromEnv(&cfg.WSURL, "WS_URL")
	cfg.Token = os.Getenv("DEVICE_TOKEN")

	setDurationFromEnv(&cfg.ForegroundInterval, "SAMPLER_FG_INTERVAL", &errs)
	setFloatFromEnv(&cfg.ForegroundDisplacement, "SAMPLER_FG_DISPLACEMENT_M", &errs)
	setDurationFromEnv(&cfg.BackgroundInterval, "SAMPLER_BG_INTERVAL", &errs)
	setFloatFromEnv(&cfg.BackgroundDisplacement, "SAMPLER_BG_DISPLACEMENT_M", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.ForegroundInterval <= 0 {
		errs = append(errs, fmt.Errorf("SAMPLER_FG_INTERVAL must be > 0"))
	}
	if cfg.BackgroundInterval <= 0 {
		errs = append(errs, fmt.Errorf("SAMPLER_BG_INTERVAL must be > 0"))
	}

	return cfg, errors.Join(errs...)
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

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
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
