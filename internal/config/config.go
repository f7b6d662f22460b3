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

// Store backends.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Asset backends.
const (
	AssetsDisk  = "disk"
	AssetsMinio = "minio"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port string

	StoreBackend string
	PostgresDSN  string
	MongoURI     string
	MongoDB      string

	RedisAddr     string
	RedisPassword string

	AssetBackend   string
	AssetDir       string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	JWTSecret string
	TokenTTL  time.Duration

	PageSize            int
	DeleteRequiresOwner bool
	MaxUploadBytes      int64
	ReleaseTimeout      time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads the environment, after merging a .env file when one exists.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Port: getenv("PORT", "8080"),

		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", BackendMongo)),
		PostgresDSN:  getenv("POSTGRES_DSN", ""),
		MongoURI:     getenv("MONGO_URI", ""),
		MongoDB:      getenv("MONGO_DB", "feed"),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		AssetBackend:   strings.ToLower(getenv("ASSET_BACKEND", AssetsDisk)),
		AssetDir:       getenv("ASSET_DIR", "images"),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "minio:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "feed-images"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),

		JWTSecret: getenv("JWT_SECRET", ""),
		TokenTTL:  getenvDuration("TOKEN_TTL", time.Hour),

		PageSize:            getenvInt("PAGE_SIZE", 2),
		DeleteRequiresOwner: getenvBool("DELETE_REQUIRES_OWNER", true),
		MaxUploadBytes:      int64(getenvInt("MAX_UPLOAD_BYTES", 10<<20)),
		ReleaseTimeout:      getenvDuration("RELEASE_TIMEOUT", 30*time.Second),

		RateLimitRPS:   getenvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getenvInt("RATE_LIMIT_BURST", 40),
		AllowedOrigins: getenvList("ALLOWED_ORIGINS", []string{"*"}),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.PostgresDSN == "" || c.MongoURI == "" {
			errs = append(errs, errors.New("POSTGRES_DSN and MONGO_URI are required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	switch c.AssetBackend {
	case AssetsDisk, AssetsMinio:
	default:
		errs = append(errs, fmt.Errorf("unknown ASSET_BACKEND %q", c.AssetBackend))
	}
	if c.PageSize < 1 {
		errs = append(errs, errors.New("PAGE_SIZE must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getenvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
