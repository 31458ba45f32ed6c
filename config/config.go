package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers selectable with STORE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	JWT      JWTConfig
	WebRTC   WebRTCConfig
	AWS      AWSConfig
	Messages MessagesConfig
	Realtime RealtimeConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
	// "*" allows every origin.
	CORSAllowedOrigins []string
}

// StoreConfig selects the durable record store.
type StoreConfig struct {
	Driver string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection settings. An empty Addr disables
// cross-instance fan-out.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// WebRTCConfig holds the STUN/TURN servers handed to peers.
type WebRTCConfig struct {
	ICEUrls        []string // comma-separated in env
	TURNUsername   string
	TURNCredential string
}

// AWSConfig holds AWS credentials and the tutor images bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ImagesBucket         string
	ImagesPrefix         string
	PublicImages         bool
	PresignExpireMinutes int
}

// MessagesConfig holds chat message retention settings.
type MessagesConfig struct {
	RetentionDays int
	SweepMinutes  int
}

// Retention returns the message retention window.
func (c MessagesConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// SweepInterval returns how often expired messages are purged.
func (c MessagesConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepMinutes) * time.Minute
}

// RealtimeConfig holds WebSocket hub settings.
type RealtimeConfig struct {
	SendBuffer        int
	HandlerTimeoutSec int // 0 = no timeout
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: splitTrim(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "tutorlive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 20),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "tutorlive"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		WebRTC: WebRTCConfig{
			ICEUrls:        splitTrim(getEnv("WEBRTC_ICE_URLS", "stun:stun.l.google.com:19302"), ","),
			TURNUsername:   getEnv("WEBRTC_TURN_USERNAME", ""),
			TURNCredential: getEnv("WEBRTC_TURN_CREDENTIAL", ""),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ImagesBucket:         getEnv("AWS_S3_IMAGES_BUCKET", ""),
			ImagesPrefix:         getEnv("AWS_S3_IMAGES_PREFIX", "uploads"),
			PublicImages:         getEnvBool("AWS_S3_IMAGES_PUBLIC", false),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Messages: MessagesConfig{
			RetentionDays: getEnvInt("MESSAGE_RETENTION_DAYS", 180),
			SweepMinutes:  getEnvInt("RETENTION_SWEEP_MINUTES", 60),
		},
		Realtime: RealtimeConfig{
			SendBuffer:        getEnvInt("WS_SEND_BUFFER", 256),
			HandlerTimeoutSec: getEnvInt("HANDLER_TIMEOUT_SEC", 0),
		},
	}

	switch cfg.Store.Driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
	if cfg.Messages.RetentionDays <= 0 {
		return nil, fmt.Errorf("MESSAGE_RETENTION_DAYS must be positive")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
