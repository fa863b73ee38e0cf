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

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// Config is the full runtime configuration, assembled from the environment.
type Config struct {
	Environment  string
	Server       Server
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Auth         AuthConfig
	Storage      StorageConfig
	Notification NotificationConfig
	LogLevel     string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// DatabaseConfig configures the PostgreSQL pool. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig configures the revocation list backend. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit event producer. No brokers means audit
// events are only logged.
type KafkaConfig struct {
	Brokers     []string
	AuditTopic  string
	Partitions  int32
	Replication int16
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	JWTSigningKey   string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// StorageConfig configures where uploaded documents are kept.
type StorageConfig struct {
	Dir string
}

// NotificationConfig configures the messaging gateway. An empty GatewayURL
// routes notifications to the log.
type NotificationConfig struct {
	GatewayURL string
	Token      string
	SystemURL  string
	Timeout    time.Duration
	MaxRetries int
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Environment: getEnv("EDUCA_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: Server{
			Addr:            getEnv("EDUCA_ADDR", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns:        int32(getEnvInt("DB_MIN_CONNS", 1)),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 1),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS"),
			AuditTopic:  getEnv("KAFKA_AUDIT_TOPIC", "educa.audit"),
			Partitions:  int32(getEnvInt("KAFKA_AUDIT_PARTITIONS", 1)),
			Replication: int16(getEnvInt("KAFKA_AUDIT_REPLICATION", 1)),
		},
		Auth: AuthConfig{
			JWTSigningKey:   getEnv("JWT_SIGNING_KEY", defaultJWTSigningKey),
			Issuer:          getEnv("JWT_ISSUER", "educa"),
			AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 60*time.Minute),
			RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 24*time.Hour),
		},
		Storage: StorageConfig{
			Dir: getEnv("STORAGE_DIR", "media"),
		},
		Notification: NotificationConfig{
			GatewayURL: os.Getenv("WHATSAPP_GATEWAY_URL"),
			Token:      os.Getenv("WHATSAPP_GATEWAY_TOKEN"),
			SystemURL:  getEnv("SYSTEM_URL", "www.educadigital.com.br"),
			Timeout:    getEnvDuration("WHATSAPP_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvInt("WHATSAPP_MAX_RETRIES", 3),
		},
	}
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects unsafe or inconsistent settings.
func (c Config) Validate() error {
	var errs []string
	if c.IsProduction() && c.Auth.JWTSigningKey == defaultJWTSigningKey {
		errs = append(errs, "JWT_SIGNING_KEY must be set in production")
	}
	if c.IsProduction() && c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL must be set in production")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, "token TTLs must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, "MAX_UPLOAD_BYTES must be positive")
	}
	if c.Notification.MaxRetries < 0 {
		errs = append(errs, "WHATSAPP_MAX_RETRIES must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
