package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendMinIO  = "minio"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	Auth      AuthConfig
	Telegram  TelegramConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	TLSCertFile     string
	TLSKeyFile      string
	CORSAllowOrigin string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// TLSEnabled reports whether both certificate and key were configured.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

type StoreConfig struct {
	Backend  string
	DataFile string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	StateKey string
}

// Addr returns host:port for go-redis.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Object    string
}

type AuthConfig struct {
	FirebaseProjectID  string
	AdminEmails        []string
	AllowInsecureToken bool
}

type TelegramConfig struct {
	BotToken      string
	ChatID        string
	APIURL        string
	QueueSize     int
	Timeout       time.Duration
	RatePerSecond float64
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration without validating it, for tools that pick
// the store backend themselves.
func Load() *Config {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("CORS_ALLOW_ORIGIN", "*")
	viper.SetDefault("STORE_BACKEND", BackendFile)
	viper.SetDefault("DATA_FILE", "./data.json")
	viper.SetDefault("MONGODB_DATABASE", "minjen")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_STATE_KEY", "minjen:state")
	viper.SetDefault("MINIO_BUCKET", "minjen")
	viper.SetDefault("MINIO_OBJECT", "data.json")
	viper.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	viper.SetDefault("NOTIFY_QUEUE_SIZE", 100)
	viper.SetDefault("NOTIFY_TIMEOUT_SECONDS", 5)
	viper.SetDefault("NOTIFY_RATE_PER_SECOND", 1.0)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	return &Config{
		Server: ServerConfig{
			Port:            viper.GetString("SERVER_PORT"),
			Host:            viper.GetString("SERVER_HOST"),
			Environment:     viper.GetString("SERVER_ENVIRONMENT"),
			TLSCertFile:     viper.GetString("TLS_CERT_FILE"),
			TLSKeyFile:      viper.GetString("TLS_KEY_FILE"),
			CORSAllowOrigin: viper.GetString("CORS_ALLOW_ORIGIN"),
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
		},
		Store: StoreConfig{
			Backend:  strings.ToLower(strings.TrimSpace(viper.GetString("STORE_BACKEND"))),
			DataFile: viper.GetString("DATA_FILE"),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       0,
			StateKey: viper.GetString("REDIS_STATE_KEY"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			Object:    viper.GetString("MINIO_OBJECT"),
		},
		Auth: AuthConfig{
			FirebaseProjectID:  viper.GetString("FIREBASE_PROJECT_ID"),
			AdminEmails:        splitList(viper.GetString("ADMIN_EMAILS")),
			AllowInsecureToken: viper.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		Telegram: TelegramConfig{
			BotToken:      viper.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:        viper.GetString("TELEGRAM_CHAT_ID"),
			APIURL:        strings.TrimRight(viper.GetString("TELEGRAM_API_URL"), "/"),
			QueueSize:     viper.GetInt("NOTIFY_QUEUE_SIZE"),
			Timeout:       time.Duration(viper.GetInt("NOTIFY_TIMEOUT_SECONDS")) * time.Second,
			RatePerSecond: viper.GetFloat64("NOTIFY_RATE_PER_SECOND"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}
}

// Validate checks that the selected store backend has what it needs.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.DataFile == "" {
			return fmt.Errorf("DATA_FILE is required for the %s backend", BackendFile)
		}
	case BackendMemory:
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for the %s backend", BackendMongo)
		}
	case BackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required for the %s backend", BackendRedis)
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required for the %s backend", BackendMinIO)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS (case-insensitive).
func (a AuthConfig) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, e := range a.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
