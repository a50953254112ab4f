// Package config reads service configuration from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// devSigningKey is only accepted outside production.
const devSigningKey = "docbridge-dev-signing-key-change-me-0001"

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	AdminToken      string
}

// Auth configures bearer token validation.
type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Catalog selects where requirement records come from.
type Catalog struct {
	// Source is one of "seed", "file", "postgres" or "s3".
	Source          string
	FilePath        string
	S3              S3
	RefreshInterval time.Duration
	CacheTTL        time.Duration
	// SeedFallback serves the built-in records when the primary source fails
	// before the catalog has loaded once.
	SeedFallback bool
}

// S3 locates a catalog object in S3 or an S3-compatible store.
type S3 struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures report event publishing and the ledger consumer.
type Kafka struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
	// ConsumerGroup is empty when this instance does not run the ledger consumer.
	ConsumerGroup string
}

// Validation tunes the compliance service.
type Validation struct {
	BatchConcurrency int
	MaxBatch         int
}

// Config is the full service configuration.
type Config struct {
	Server      Server
	Auth        Auth
	DatabaseURL string
	Catalog     Catalog
	Redis       RedisConfig
	Kafka       Kafka
	Validation  Validation
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []error
	env := envReader{errs: &errs}

	cfg := Config{
		Server: Server{
			Addr:            env.str("DOCBRIDGE_ADDR", ":8080"),
			Environment:     env.str("DOCBRIDGE_ENV", "development"),
			LogLevel:        env.str("LOG_LEVEL", "info"),
			AllowedOrigins:  env.list("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ShutdownTimeout: env.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
			RateLimitRPS:    env.float("RATE_LIMIT_RPS", 5),
			RateLimitBurst:  env.int("RATE_LIMIT_BURST", 20),
			AdminToken:      env.str("ADMIN_TOKEN", ""),
		},
		Auth: Auth{
			JWTSigningKey: env.str("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:     env.str("JWT_ISSUER", "docbridge"),
			JWTAudience:   env.str("JWT_AUDIENCE", "docbridge-api"),
		},
		DatabaseURL: env.str("DATABASE_URL", ""),
		Catalog: Catalog{
			Source:   strings.ToLower(env.str("CATALOG_SOURCE", "seed")),
			FilePath: env.str("CATALOG_FILE", "requirements.json"),
			S3: S3{
				Bucket:          env.str("CATALOG_S3_BUCKET", ""),
				Key:             env.str("CATALOG_S3_KEY", "requirements.json"),
				Region:          env.str("CATALOG_S3_REGION", "us-east-1"),
				Endpoint:        env.str("CATALOG_S3_ENDPOINT", ""),
				AccessKeyID:     env.str("CATALOG_S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: env.str("CATALOG_S3_SECRET_ACCESS_KEY", ""),
			},
			RefreshInterval: env.duration("CATALOG_REFRESH_INTERVAL", 5*time.Minute),
			CacheTTL:        env.duration("CATALOG_CACHE_TTL", 10*time.Minute),
			SeedFallback:    env.bool("CATALOG_SEED_FALLBACK", true),
		},
		Redis: RedisConfig{
			URL:          env.str("REDIS_URL", ""),
			PoolSize:     env.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: env.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:           env.list("KAFKA_BROKERS", nil),
			Topic:             env.str("KAFKA_REPORTS_TOPIC", "compliance.reports"),
			Partitions:        int32(env.int("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(env.int("KAFKA_TOPIC_REPLICATION", 1)),
			ConsumerGroup:     env.str("KAFKA_LEDGER_GROUP", ""),
		},
		Validation: Validation{
			BatchConcurrency: env.int("VALIDATION_BATCH_CONCURRENCY", 8),
			MaxBatch:         env.int("VALIDATION_MAX_BATCH", 50),
		},
	}
	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c Config) validate() error {
	var errs []error
	switch c.Catalog.Source {
	case "seed":
	case "file":
		if c.Catalog.FilePath == "" {
			errs = append(errs, errors.New("CATALOG_FILE is required for the file catalog source"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres catalog source"))
		}
	case "s3":
		if c.Catalog.S3.Bucket == "" {
			errs = append(errs, errors.New("CATALOG_S3_BUCKET is required for the s3 catalog source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG_SOURCE %q", c.Catalog.Source))
	}
	if c.IsProduction() && (len(c.Auth.JWTSigningKey) < 32 || c.Auth.JWTSigningKey == devSigningKey) {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set to at least 32 bytes in production"))
	}
	if c.Kafka.ConsumerGroup != "" && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_LEDGER_GROUP is set"))
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	return errors.Join(errs...)
}

type envReader struct {
	errs *[]error
}

func (e envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e envReader) list(key string, def []string) []string {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e envReader) int(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e envReader) float(key string, def float64) float64 {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e envReader) bool(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
