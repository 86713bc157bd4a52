package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppURL  string
	Port    string

	// Logging
	LogLevel string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret            string
	JWTExpiry            time.Duration
	TokenMagicLinkExpiry time.Duration
	TokenClaimExpiry     time.Duration

	// Cleanup
	CronSecret      string        // Bearer credential for the scheduled cleanup endpoint
	CleanupInterval time.Duration // 0 disables the in-process sweeper

	// Uploads
	MaxUploadSize int64

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	StorageDriver string // "s3", "minio" or "memory"
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Endpoint    string // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	S3PublicURL   string // Optional: public base URL objects are served from (CDN, bucket website)
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Cutout"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:  envRequired("APP_URL"), // Required: base URL for email links and OAuth redirects
		Port:    envString("PORT", "8090"),

		LogLevel: envString("LOG_LEVEL", ""),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/cutout.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_time_format=sqlite"),

		// Security
		JWTSecret:            envRequired("JWT_SECRET"),
		JWTExpiry:            envDuration("JWT_EXPIRY", 168*time.Hour),               // 7 days
		TokenMagicLinkExpiry: envDuration("TOKEN_MAGIC_LINK_EXPIRY", 10*time.Minute), // 10 minutes
		TokenClaimExpiry:     envDuration("TOKEN_CLAIM_EXPIRY", 24*time.Hour),        // 24 hours

		// Cleanup
		CronSecret:      envRequired("CRON_SECRET"),
		CleanupInterval: envDuration("CLEANUP_INTERVAL", 0),

		// Uploads
		MaxUploadSize: envInt64("MAX_UPLOAD_SIZE", 50<<20), // 50MB

		// OAuth
		GoogleClientID:     envString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: envString("GOOGLE_CLIENT_SECRET", ""),
		GitHubClientID:     envString("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: envString("GITHUB_CLIENT_SECRET", ""),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		StorageDriver: envString("STORAGE_DRIVER", "s3"),
		S3Region:      envString("S3_REGION", "us-east-1"),
		S3Bucket:      envString("S3_BUCKET", "images"),
		S3AccessKey:   envString("S3_ACCESS_KEY", ""),
		S3SecretKey:   envString("S3_SECRET_KEY", ""),
		S3Endpoint:    envString("S3_ENDPOINT", ""), // Optional: for non-AWS providers
		S3PublicURL:   envString("S3_PUBLIC_URL", ""),
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email and storage to use fallback modes for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if cfg.StorageDriver == "memory" {
		slog.Error("production deployment requires STORAGE_DRIVER=s3 or minio", "storage_driver", cfg.StorageDriver)
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		slog.Warn("config invalid integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SecureCookies reports whether cookies should carry the Secure flag.
// Based on APP_ENV rather than r.TLS, which is unreliable behind load balancers.
func (c *Config) SecureCookies() bool {
	return envBool("SECURE_COOKIES", c.IsProduction())
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName: c.AppName,
		AppEnv:  c.AppEnv,
		AppURL:  c.AppURL,
		Port:    c.Port,

		EmailFrom: c.EmailFrom,

		GoogleClientID: c.GoogleClientID,
		GitHubClientID: c.GitHubClientID,

		MaxUploadSize: c.MaxUploadSize,

		StorageDriver: c.StorageDriver,
		S3Endpoint:    c.S3Endpoint,
		S3PublicURL:   c.S3PublicURL,
	}
}
