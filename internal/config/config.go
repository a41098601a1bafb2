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

const (
	developmentAccessSecret  = "dev-access-secret"
	developmentRefreshSecret = "dev-refresh-secret"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
	Recaptcha RecaptchaConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	PublicBaseURL         string
	CORSOrigins           string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	AdminDatabase  string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
	CookieName      string
	CookiePath      string
	CookieSecure    bool
}

// UploadConfig controls where ticket images are stored.
type UploadConfig struct {
	Dir          string
	MaxBytes     int64
	MaxDimension int
}

// RateLimitConfig sets request budgets per policy.
type RateLimitConfig struct {
	Enabled      bool
	Backend      string
	KeyPrefix    string
	TrustProxy   bool
	GlobalLimit  int
	GlobalWindow time.Duration
	AuthLimit    int
	AuthWindow   time.Duration
	UserLimit    int
	UserWindow   time.Duration
}

// RecaptchaConfig configures the captcha verifier. An empty secret disables it.
type RecaptchaConfig struct {
	SecretKey string
	VerifyURL string
	Timeout   time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	accessTTL, err := getEnvAsDuration("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := getEnvAsDuration("AUTH_REFRESH_TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	globalWindow, err := getEnvAsDuration("RATE_LIMIT_GLOBAL_WINDOW", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	authWindow, err := getEnvAsDuration("RATE_LIMIT_AUTH_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	userWindow, err := getEnvAsDuration("RATE_LIMIT_USER_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	recaptchaTimeout, err := getEnvAsDuration("RECAPTCHA_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "chamados-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", getEnv("PORT", "3000")),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			PublicBaseURL:         strings.TrimRight(os.Getenv("APP_PUBLIC_BASE_URL"), "/"),
			CORSOrigins:           getEnv("CORS_ORIGINS", "http://localhost:5173"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			AdminDatabase:  getEnv("POSTGRES_ADMIN_DATABASE", "postgres"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AccessSecret:    os.Getenv("JWT_ACCESS_SECRET"),
			RefreshSecret:   os.Getenv("JWT_REFRESH_SECRET"),
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
			BcryptCost:      getEnvAsInt("AUTH_BCRYPT_COST", 12),
			CookieName:      getEnv("AUTH_REFRESH_COOKIE_NAME", "refresh_token"),
			CookiePath:      getEnv("AUTH_REFRESH_COOKIE_PATH", "/api/usuarios"),
			CookieSecure:    getEnvAsBool("AUTH_REFRESH_COOKIE_SECURE", false),
		},
		Upload: UploadConfig{
			Dir:          getEnv("UPLOAD_DIR", "uploads"),
			MaxBytes:     int64(getEnvAsInt("UPLOAD_MAX_BYTES", 5*1024*1024)),
			MaxDimension: getEnvAsInt("UPLOAD_MAX_DIMENSION", 2048),
		},
		RateLimit: RateLimitConfig{
			Enabled:      getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Backend:      strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
			KeyPrefix:    getEnv("RATE_LIMIT_KEY_PREFIX", "chamados:ratelimit"),
			TrustProxy:   getEnvAsBool("RATE_LIMIT_TRUST_PROXY", false),
			GlobalLimit:  getEnvAsInt("RATE_LIMIT_GLOBAL_LIMIT", 600),
			GlobalWindow: globalWindow,
			AuthLimit:    getEnvAsInt("RATE_LIMIT_AUTH_LIMIT", 60),
			AuthWindow:   authWindow,
			UserLimit:    getEnvAsInt("RATE_LIMIT_USER_LIMIT", 120),
			UserWindow:   userWindow,
		},
		Recaptcha: RecaptchaConfig{
			SecretKey: os.Getenv("RECAPTCHA_SECRET_KEY"),
			VerifyURL: getEnv("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			Timeout:   recaptchaTimeout,
		},
	}

	if err := cfg.applySecretDefaults(); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Backend != "memory" && cfg.RateLimit.Backend != "redis" {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BACKEND %q", cfg.RateLimit.Backend)
	}
	if cfg.RateLimit.Backend == "redis" && cfg.Redis.Addr == "" {
		return nil, errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR")
	}

	return cfg, nil
}

func (c *Config) applySecretDefaults() error {
	if c.Auth.AccessSecret != "" && c.Auth.RefreshSecret != "" {
		return nil
	}
	if !c.App.IsDevelopment() {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required outside development")
	}
	if c.Auth.AccessSecret == "" {
		c.Auth.AccessSecret = developmentAccessSecret
	}
	if c.Auth.RefreshSecret == "" {
		c.Auth.RefreshSecret = developmentRefreshSecret
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsDevelopment reports whether the service runs with development defaults.
func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Env, "development")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// ParseDuration accepts time.ParseDuration syntax plus a whole-day suffix ("7d").
func ParseDuration(val string) (time.Duration, error) {
	val = strings.TrimSpace(val)
	if days, ok := strings.CutSuffix(val, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad day count %q", val)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(val)
}
