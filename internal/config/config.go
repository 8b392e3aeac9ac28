package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env      string // "development", "production", etc.
	LogLevel string

	// Server
	ServerAddr         string
	CORSOrigins        string // Comma-separated allowed origins
	RateLimitPerMinute int
	BodyLimitMB        int

	// Database
	DatabaseURL string

	// Redis backs the rate limiter and dashboard cache when set
	RedisURL          string
	DashboardCacheTTL time.Duration

	// Object storage (Firebase Storage / GCS)
	StorageBucket         string
	StoragePublicBaseURL  string
	GoogleCredentialsFile string

	// Ledger
	BlockchainRPCURL      string
	ContractAddress       string
	AdminPrivateKey       string
	EnableOnchainLocation bool
	LedgerTimeout         time.Duration

	// AI verification
	VerifierBackend string // "http" or "gemini"
	AIServiceURL    string
	AIAPIKey        string
	AITokenURL      string // OAuth2 client-credentials token endpoint (optional)
	AIClientID      string
	AIClientSecret  string
	AIRetries       int
	AITimeout       time.Duration
	GeminiAPIKey    string
	GeminiModel     string

	// Verification worker
	VerifyDelay        time.Duration
	VerifyPollInterval time.Duration
	VerifyLease        time.Duration
	VerifyBatchSize    int

	// Auth (Firebase ID tokens are OIDC tokens issued by securetoken.google.com)
	OIDCIssuer   string
	OIDCClientID string
	AdminEmails  string // Comma-separated

	// SMTP
	SMTPEnabled  bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      string // "none", "starttls", "tls"
	SiteTitle    string
	BaseURL      string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", ""),
		ServerAddr:         getEnv("SERVER_ADDR", ":5000"),
		CORSOrigins:        getEnv("CORS_ORIGINS", "http://localhost:3000"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		BodyLimitMB:        getEnvInt("BODY_LIMIT_MB", 60),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/bluecarbon?sslmode=disable"),

		RedisURL:          getEnv("REDIS_URL", ""),
		DashboardCacheTTL: getEnvDuration("DASHBOARD_CACHE_TTL", 30*time.Second),

		StorageBucket:         getEnv("FIREBASE_STORAGE_BUCKET", ""),
		StoragePublicBaseURL:  getEnv("STORAGE_PUBLIC_BASE_URL", "https://storage.googleapis.com"),
		GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		BlockchainRPCURL:      getEnv("BLOCKCHAIN_RPC_URL", ""),
		ContractAddress:       getEnv("CARBON_CREDIT_CONTRACT_ADDRESS", ""),
		AdminPrivateKey:       getEnv("ADMIN_PRIVATE_KEY", ""),
		EnableOnchainLocation: getEnv("ENABLE_ONCHAIN_LOCATION", "") == "true",
		LedgerTimeout:         getEnvDuration("LEDGER_TIMEOUT", 30*time.Second),

		VerifierBackend: getEnv("VERIFIER_BACKEND", "http"),
		AIServiceURL:    getEnv("AI_SERVICE_URL", "http://localhost:8000"),
		AIAPIKey:        getEnv("AI_API_KEY", ""),
		AITokenURL:      getEnv("AI_TOKEN_URL", ""),
		AIClientID:      getEnv("AI_CLIENT_ID", ""),
		AIClientSecret:  getEnv("AI_CLIENT_SECRET", ""),
		AIRetries:       getEnvInt("AI_RETRIES", 1),
		AITimeout:       getEnvDuration("AI_TIMEOUT", 30*time.Second),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		VerifyDelay:        getEnvDuration("VERIFY_DELAY", 2*time.Second),
		VerifyPollInterval: getEnvDuration("VERIFY_POLL_INTERVAL", 5*time.Second),
		VerifyLease:        getEnvDuration("VERIFY_LEASE", 2*time.Minute),
		VerifyBatchSize:    getEnvInt("VERIFY_BATCH_SIZE", 10),

		OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
		OIDCClientID: getEnv("OIDC_CLIENT_ID", ""),
		AdminEmails:  getEnv("ADMIN_EMAILS", ""),

		SMTPEnabled:  getEnv("SMTP_ENABLED", "") == "true",
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Blue Carbon MRV"),
		SMTPTLS:      getEnv("SMTP_TLS", "starttls"),
		SiteTitle:    getEnv("SITE_TITLE", "Blue Carbon MRV"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:3000"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsLedgerEnabled returns true if an RPC endpoint, contract and signing key are all set.
func (c *Config) IsLedgerEnabled() bool {
	return c.BlockchainRPCURL != "" && c.ContractAddress != "" && c.AdminPrivateKey != ""
}

// IsAuthEnabled returns true if ID-token verification is configured.
func (c *Config) IsAuthEnabled() bool {
	return c.OIDCIssuer != ""
}

// IsEmailEnabled returns true if SMTP is fully configured.
func (c *Config) IsEmailEnabled() bool {
	return c.SMTPEnabled && c.SMTPHost != "" && c.SMTPFrom != ""
}

// AdminEmailList returns the configured admin emails, lower-cased.
func (c *Config) AdminEmailList() []string {
	if c.AdminEmails == "" {
		return nil
	}
	var emails []string
	for _, e := range strings.Split(c.AdminEmails, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails = append(emails, e)
		}
	}
	return emails
}
