package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	AppPort  string
	Timezone string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Backend API serving districts, store info and wallet channels.
	BackendAPIURL      string
	StorefrontCacheTTL time.Duration

	CardGatewayURL           string
	CardGatewayAPIKey        string
	CardGatewayCallbackToken string
	Currency                 string

	CheckoutSessionTTL time.Duration
	DraftTTL           time.Duration
	SettleDelay        time.Duration
	MaxProofBytes      int64

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	StaffEmail   string
	StorePhone   string

	NotifyLinkSecret  string
	NotifyLinkTTL     time.Duration
	NotifyMaxAttempts int
	PublicBaseURL     string

	DraftSweepInterval  time.Duration
	NotifyRetryInterval time.Duration

	AllowedOrigins []string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   envOrDefault("APP_ENV", "development"),
		AppPort:  envOrDefault("APP_PORT", "8080"),
		Timezone: envOrDefault("APP_TIMEZONE", "America/Lima"),

		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     envOrDefault("DB_PORT", "5432"),

		RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		BackendAPIURL:      os.Getenv("BACKEND_API_URL"),
		StorefrontCacheTTL: envDuration("STOREFRONT_CACHE_TTL", 5*time.Minute),

		CardGatewayURL:           envOrDefault("CARD_GATEWAY_URL", "https://api.cardgateway.example"),
		CardGatewayAPIKey:        os.Getenv("CARD_GATEWAY_APIKEY"),
		CardGatewayCallbackToken: os.Getenv("CARD_GATEWAY_CALLBACK_TOKEN"),
		Currency:                 envOrDefault("CURRENCY", "PEN"),

		CheckoutSessionTTL: envDuration("CHECKOUT_SESSION_TTL", 2*time.Hour),
		DraftTTL:           envDuration("DRAFT_TTL", 30*time.Minute),
		SettleDelay:        envDuration("SETTLE_DELAY", 3*time.Second),
		MaxProofBytes:      int64(envInt("MAX_PROOF_BYTES", 5<<20)),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    envOrDefault("CLOUDINARY_FOLDER", "bloomcart/payment-proofs"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		StaffEmail:   os.Getenv("STAFF_EMAIL"),
		StorePhone:   os.Getenv("STORE_PHONE"),

		NotifyLinkSecret:  os.Getenv("NOTIFY_LINK_SECRET"),
		NotifyLinkTTL:     envDuration("NOTIFY_LINK_TTL", 72*time.Hour),
		NotifyMaxAttempts: envInt("NOTIFY_MAX_ATTEMPTS", 5),
		PublicBaseURL:     envOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"),

		DraftSweepInterval:  envDuration("DRAFT_SWEEP_INTERVAL", time.Minute),
		NotifyRetryInterval: envDuration("NOTIFY_RETRY_INTERVAL", 2*time.Minute),

		AllowedOrigins: []string{envOrDefault("ALLOWED_ORIGIN", "http://localhost:5173")},
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

// envDuration accepts Go duration strings ("90s") or plain seconds ("90").
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
