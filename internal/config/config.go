package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
	Timezone    string

	// Public links are built as <PublicBaseURL>/<PublicPath>/<token>.
	PublicBaseURL string
	PublicPath    string

	SMSGatewayURL   string
	SMSGatewayToken string

	RedisAddr     string
	RedisPassword string

	CollationLang          string
	MetricsRefreshInterval time.Duration
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=stockcount port=5432 sslmode=disable"

func Load() *Config {
	// .env is optional; real deployments pass the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env")
	}

	cfg := &Config{
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:            getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		CORSOrigins:            getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		Timezone:               getEnv("TIMEZONE", "UTC"),
		PublicBaseURL:          strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:5173"), "/"),
		PublicPath:             strings.Trim(getEnv("PUBLIC_PATH", "count"), "/"),
		SMSGatewayURL:          getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayToken:        getEnv("SMS_GATEWAY_TOKEN", ""),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		CollationLang:          getEnv("COLLATION_LANG", "und"),
		MetricsRefreshInterval: getDuration("METRICS_REFRESH_INTERVAL", time.Minute),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters")
	}
	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN uses the default value, set your own Postgres DSN in production")
	}
	if cfg.SMSGatewayURL == "" {
		log.Println("[WARN] SMS_GATEWAY_URL is empty, count links will only be logged")
	}

	return cfg
}

// PublicURL builds the shareable link for a count token.
func (c *Config) PublicURL(token string) string {
	return c.PublicBaseURL + "/" + c.PublicPath + "/" + token
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[WARN] invalid %s (%q), using default %s", key, v, def)
		return def
	}
	return d
}
