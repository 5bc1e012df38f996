package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	LogFile     string
	DataDir     string
	VenueID     string
	Timezone    string
	BotVersion  string
	WorkerCount int

	// Operator channel. OperatorChatID == 0 disables operator features.
	OperatorChatID int64
	OperatorEmails []string

	// Storage backends
	StorageBackend      string // file|postgres
	QuizStateBackend    string // file|redis|postgres
	CouponLedgerBackend string // file|postgres|dynamodb
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	CouponTable         string

	// Update queue
	UseMemoryQueue     bool
	UpdatesQueueURL    string
	DropPendingUpdates bool

	// Catalogs
	QuizCatalogPath   string
	VenuesCatalogPath string
	CopyFilePath      string
	MenuDir           string

	// Quiz rules
	QuizStreakTarget  int
	QuizLockDuration  time.Duration
	QuizStrictCatalog bool
	CouponMaxAttempts int

	AdminJWTSecret       string
	UpdatesWebhookSecret string
	CORSAllowedOrigins   []string
	UpdatesRateLimit     float64

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RabbitMQURL    string
	EventsExchange string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		DataDir:     dataDir,
		VenueID:     getEnv("VENUE_ID", "poddon"),
		Timezone:    getEnv("TIMEZONE", "Europe/Moscow"),
		BotVersion:  getEnv("BOT_VERSION", "dev"),
		WorkerCount: getEnvAsInt("WORKER_COUNT", 2),

		OperatorChatID: getEnvAsInt64("OPERATOR_CHAT_ID", getEnvAsInt64("ADMIN_CHAT_ID", 0)),
		OperatorEmails: getEnvAsList("OPERATOR_EMAILS"),

		StorageBackend:      strings.ToLower(getEnv("STORAGE_BACKEND", "file")),
		QuizStateBackend:    strings.ToLower(getEnv("QUIZ_STATE_BACKEND", "file")),
		CouponLedgerBackend: strings.ToLower(getEnv("COUPON_LEDGER_BACKEND", "file")),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisAddr:           getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		CouponTable:         getEnv("COUPON_TABLE", "coupons"),

		UseMemoryQueue:     getEnvAsBool("USE_MEMORY_QUEUE", true),
		UpdatesQueueURL:    getEnv("UPDATES_QUEUE_URL", ""),
		DropPendingUpdates: getEnvAsBool("DROP_PENDING_UPDATES", true),

		QuizCatalogPath:   getEnv("QUIZ_CATALOG", filepath.Join(dataDir, "quiz.csv")),
		VenuesCatalogPath: getEnv("VENUES_CATALOG", filepath.Join(dataDir, "venues.csv")),
		CopyFilePath:      getEnv("COPY_FILE", filepath.Join(dataDir, "bot_copy.json")),
		MenuDir:           getEnv("MENU_DIR", filepath.Join(dataDir, "menu")),

		QuizStreakTarget:  getEnvAsInt("QUIZ_STREAK_TARGET", 3),
		QuizLockDuration:  getEnvAsDuration("QUIZ_LOCK_DURATION", 24*time.Hour),
		QuizStrictCatalog: getEnvAsBool("QUIZ_STRICT_CATALOG", false),
		CouponMaxAttempts: getEnvAsInt("COUPON_MAX_ATTEMPTS", 10000),

		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
		UpdatesWebhookSecret: getEnv("UPDATES_WEBHOOK_SECRET", ""),
		CORSAllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),
		UpdatesRateLimit:     getEnvAsFloat("UPDATES_RATE_LIMIT", 20),

		AWSRegion:           getEnv("AWS_REGION", "eu-central-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),
		EventsExchange: getEnv("EVENTS_EXCHANGE", "concierge.events"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "ПОДДОН"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
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

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
