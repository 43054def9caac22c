package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// SessionBackend selects the session store: postgres, redis, memory or auto.
	SessionBackend string
	SessionTTL     time.Duration

	// CategoryStrict rejects unknown profession labels instead of using CategoryFallback.
	CategoryStrict   bool
	CategoryFallback string
	// IntroTextPolicy decides what a plain-text reply at the intro stage does: advance or ignore.
	IntroTextPolicy string
	// BatchConcurrency bounds how many callers an inbound webhook batch processes at once.
	BatchConcurrency int

	// MissedCallRate limits POST /missed-call per client IP; zero disables it.
	MissedCallRate  float64
	MissedCallBurst int

	InfobipBaseURL        string
	InfobipAPIKey         string
	InfobipWhatsAppNumber string
	TemplateLanguage      string
	DispatchTimeout       time.Duration
	InboundWebhookToken   string

	AdminJWTSecret   string
	AdminCORSOrigins []string

	// Email notifications for new requests
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionBackend: strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "auto"))),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 72*time.Hour),

		CategoryStrict:   getEnvAsBool("CATEGORY_STRICT", true),
		CategoryFallback: getEnv("CATEGORY_FALLBACK", "booking_service"),
		IntroTextPolicy:  strings.ToLower(strings.TrimSpace(getEnv("INTRO_TEXT_POLICY", "advance"))),
		BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", 8),

		MissedCallRate:  getEnvAsFloat("MISSED_CALL_RATE", 0),
		MissedCallBurst: getEnvAsInt("MISSED_CALL_BURST", 5),

		InfobipBaseURL:        getEnv("INFOBIP_BASE_URL", ""),
		InfobipAPIKey:         getEnv("INFOBIP_API_KEY", ""),
		InfobipWhatsAppNumber: getEnv("INFOBIP_WHATSAPP_NUMBER", ""),
		TemplateLanguage:      getEnv("TEMPLATE_LANGUAGE", "hr"),
		DispatchTimeout:       getEnvAsDuration("DISPATCH_TIMEOUT", 10*time.Second),
		InboundWebhookToken:   getEnv("INBOUND_WEBHOOK_TOKEN", ""),

		AdminJWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
		AdminCORSOrigins: getEnvAsList("ADMIN_CORS_ORIGINS"),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Propušteni poziv"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "eu-central-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
