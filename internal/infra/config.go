package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	StorageDriverNone = "none"
	StorageDriverFS   = "fs"
	StorageDriverS3   = "s3"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	StoreDriver        string
	DatabaseURL        string
	SessionSecret      string
	SessionTTL         time.Duration
	PublicBaseURL      string
	CORSAllowedOrigins []string

	GoogleClientID  string
	GoogleIssuer    string
	DevLoginEnabled bool
	AdminUsername   string
	AdminPassword   string
	GeoIPDBPath     string

	Ledger LedgerConfig

	FalKey     string
	FalBaseURL string
	FalModel   string

	StripeSecretKey     string
	StripeWebhookSecret string

	RedisURL      string
	StatsCacheTTL time.Duration

	StorageDriver  string
	StoragePath    string
	StorageBaseURL string
	S3             S3Config

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LedgerConfig holds the credit accounting policy.
type LedgerConfig struct {
	SignupBonus       int
	ProfileBonus      int
	CostPerCreditCent int64
	DailyFreeCapCents int64
	MaxLongEdge       int
	MaxOutputs        int
	GenerationTimeout time.Duration
	ReservationStale  time.Duration
	SweepInterval     time.Duration
}

// S3Config configures the S3 compatible image mirror.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
	PublicURL string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		SessionTTL:         time.Hour * time.Duration(getEnvInt("SESSION_TTL_HOURS", 24*7)),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleIssuer:       getEnv("GOOGLE_ISSUER", "https://accounts.google.com"),
		DevLoginEnabled:    getEnvBool("DEV_LOGIN_ENABLED", false),
		AdminUsername:      os.Getenv("ADMIN_USERNAME"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		Ledger: LedgerConfig{
			SignupBonus:       getEnvInt("SIGNUP_BONUS_CREDITS", 3),
			ProfileBonus:      getEnvInt("PROFILE_BONUS_CREDITS", 2),
			MaxLongEdge:       getEnvInt("MAX_LONG_EDGE", 1536),
			MaxOutputs:        getEnvInt("MAX_OUTPUTS", 4),
			GenerationTimeout: time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 120)),
			ReservationStale:  time.Second * time.Duration(getEnvInt("RESERVATION_STALE_SECONDS", 600)),
			SweepInterval:     time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 30)),
		},
		FalKey:              os.Getenv("FAL_KEY"),
		FalBaseURL:          getEnv("FAL_BASE_URL", "https://fal.run"),
		FalModel:            getEnv("FAL_MODEL", "fal-ai/qwen-image"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		RedisURL:            os.Getenv("REDIS_URL"),
		StatsCacheTTL:       time.Second * time.Duration(getEnvInt("STATS_CACHE_TTL_SECONDS", 60)),
		StorageDriver:       strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverNone)),
		StoragePath:         getEnv("STORAGE_PATH", "./storage"),
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Prefix:    getEnv("S3_PREFIX", "generations"),
			PublicURL: strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/"),
		},
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}
	cfg.StorageBaseURL = strings.TrimRight(getEnv("STORAGE_BASE_URL", cfg.PublicBaseURL+"/static"), "/")

	costCents, err := getEnvCents("COST_PER_CREDIT_USD", "0.02")
	if err != nil {
		return nil, err
	}
	capCents, err := getEnvCents("DAILY_FREE_CAP_USD", "20")
	if err != nil {
		return nil, err
	}
	cfg.Ledger.CostPerCreditCent = costCents
	cfg.Ledger.DailyFreeCapCents = capCents

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.StorageDriver {
	case StorageDriverNone, StorageDriverFS:
	case StorageDriverS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	if cfg.Ledger.MaxOutputs <= 0 {
		return nil, fmt.Errorf("MAX_OUTPUTS must be positive")
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvCents parses a USD amount into whole cents, rejecting fractions of a cent.
func getEnvCents(key, fallback string) (int64, error) {
	raw := getEnv(key, fallback)
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: invalid amount %q: %w", key, raw, err)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("%s: amount must not be negative", key)
	}
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("%s: amount %q has sub-cent precision", key, raw)
	}
	return cents.IntPart(), nil
}
