package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	AppEnv        string
	IsStaging     bool
	IsProduction  bool
	IsDevelopment bool

	JWTSecret string
	Port      string

	// storage
	DBDriver    string
	DatabaseURL string

	// optional infrastructure; empty disables it
	RedisURL          string
	NATSURL           string
	NATSSubjectPrefix string

	LogLevel  string
	LogFormat string

	CORSOrigins []string

	// runtime tunables
	RateLimitWindowSeconds int
	RateLimitCapacity      int
	WSReadLimitBytes       int
	WSEventsPerSecond      int
	DispatchWorkers        int
	DispatchQueueSize      int
	ProfileCacheTTLSeconds int
	ProfileCacheMaxItems   int
)

// loadDotEnv loads .env outside production. A missing file is fine in development.
func loadDotEnv() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	_ = godotenv.Load()
}

// Load reads the environment into the package settings.
func Load() error {
	loadDotEnv()

	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "" {
		AppEnv = "development"
	}
	if !slices.Contains([]string{"development", "staging", "production"}, AppEnv) {
		return fmt.Errorf("APP_ENV must be 'development', 'staging' or 'production', got %q", AppEnv)
	}
	IsDevelopment = AppEnv == "development"
	IsStaging = AppEnv == "staging"
	IsProduction = AppEnv == "production"

	JWTSecret = os.Getenv("JWT_SECRET_KEY")
	if IsProduction && JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY must be set in production")
	}
	if JWTSecret == "" {
		JWTSecret = "dev-secret-change-me"
	}
	Port = getEnv("PORT", "5000")

	DBDriver = strings.ToLower(getEnv("DB_DRIVER", "sqlite"))
	if !slices.Contains([]string{"sqlite", "mysql", "postgres"}, DBDriver) {
		return fmt.Errorf("DB_DRIVER must be sqlite, mysql or postgres, got %q", DBDriver)
	}
	DatabaseURL = os.Getenv("DATABASE_URL")
	if DatabaseURL == "" {
		if DBDriver != "sqlite" {
			return fmt.Errorf("DATABASE_URL is required for DB_DRIVER=%s", DBDriver)
		}
		DatabaseURL = "app.db"
	}

	RedisURL = os.Getenv("REDIS_URL")
	NATSURL = os.Getenv("NATS_URL")
	NATSSubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", "dm.events")

	LogLevel = getEnv("LOG_LEVEL", "info")
	defaultFormat := "json"
	if IsDevelopment {
		defaultFormat = "console"
	}
	LogFormat = getEnv("LOG_FORMAT", defaultFormat)

	CORSOrigins = splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173,http://127.0.0.1:5173"))

	RateLimitWindowSeconds = atoiOr(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), 10)
	RateLimitCapacity = atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), 20)
	WSReadLimitBytes = atoiOr(os.Getenv("WS_READ_LIMIT_BYTES"), 64*1024)
	WSEventsPerSecond = atoiOr(os.Getenv("WS_EVENTS_PER_SECOND"), 10)
	DispatchWorkers = atoiOr(os.Getenv("DISPATCH_WORKERS"), 4)
	DispatchQueueSize = atoiOr(os.Getenv("DISPATCH_QUEUE_SIZE"), 1024)
	ProfileCacheTTLSeconds = atoiOr(os.Getenv("PROFILE_CACHE_TTL_SECONDS"), 60)
	ProfileCacheMaxItems = atoiOr(os.Getenv("PROFILE_CACHE_MAX_ITEMS"), 1000)

	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
