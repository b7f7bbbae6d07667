package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort    string
	AppEnv     string
	AppBaseURL string // used to build reset links, no trailing slash

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// ChallengeStore selects where OTP challenges live: "dynamo" or "redis".
	ChallengeStore string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisPrefix    string

	ChallengeCipherKey string // hex-encoded 32-byte AES key
	OTPDigits          int
	OTPMaxAttempts     int
	OTPExpiry          time.Duration
	ResetLinkExpiry    time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	// MailTransport selects the mail collaborator: "smtp" or "sns".
	MailTransport string
	SMTPHost      string
	SMTPPort      string
	SMTPFrom      string
	SMTPUsername  string
	SMTPPassword  string
	SNSRegion     string
	SNSMailTopic  string

	// TrustProxy honours X-Forwarded-For / X-Real-IP for client addresses.
	// Only set it when every request arrives through a proxy that overwrites them.
	TrustProxy        bool
	AllowedOrigins    []string // CORS allowed origins
	ProtectedPrefixes []string // path prefixes that require an active session
	RateLimitPerSec   float64
	RateLimitBurst    int
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users       string
	Sessions    string
	Challenges  string
	ResetTokens string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:    getEnv("APP_PORT", "3000"),
		AppEnv:     getEnv("APP_ENV", "development"),
		AppBaseURL: strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:       getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:    getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Challenges:  getEnv("DYNAMO_TABLE_CHALLENGES", "verification_challenges"),
			ResetTokens: getEnv("DYNAMO_TABLE_RESET_TOKENS", "password_reset_tokens"),
		},

		ChallengeStore: getEnv("CHALLENGE_STORE", "dynamo"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisPrefix:    getEnv("REDIS_PREFIX", "otp"),

		ChallengeCipherKey: getEnv("CHALLENGE_CIPHER_KEY", ""),
		OTPDigits:          getEnvInt("OTP_DIGITS", 6),
		OTPMaxAttempts:     getEnvInt("OTP_MAX_ATTEMPTS", 3),
		OTPExpiry:          getEnvDuration("OTP_EXPIRY", 5*time.Minute),
		ResetLinkExpiry:    getEnvDuration("RESET_LINK_EXPIRY", time.Hour),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		MailTransport: getEnv("MAIL_TRANSPORT", "smtp"),
		SMTPHost:      getEnv("SMTP_HOST", "localhost"),
		SMTPPort:      getEnv("SMTP_PORT", "1025"),
		SMTPFrom:      getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SNSRegion:     getEnv("SNS_REGION", "us-east-1"),
		SNSMailTopic:  getEnv("SNS_MAIL_TOPIC_ARN", ""),

		TrustProxy:        getEnvBool("TRUST_PROXY", false),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		ProtectedPrefixes: splitList(getEnv("PROTECTED_PREFIXES", "/dashboard,/account,/orders")),
		RateLimitPerSec:   getEnvFloat("RATE_LIMIT_PER_SEC", 5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
