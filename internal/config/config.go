// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServiceName string
	HTTPAddr    string
	LogLevel    string

	DB DBConfig

	RedisAddr      string
	AMQPURL        string
	AMQPQueue      string
	OTelEndpoint   string
	MetricsEnabled bool

	OutboundQueueSize     int
	LogQueueSize          int
	WebhookQueueSize      int
	WebhookEnqueueTimeout time.Duration
	SendWorkers           int
	WebhookWorkers        int

	RateLimitPerSecond float64
	RateLimitBurst     int
	IdempotencyTTL     time.Duration

	Meta     MetaConfig
	Pinnacle PinnacleConfig

	ProviderTimeout time.Duration
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

type MetaConfig struct {
	BaseURL     string
	APIVersion  string
	AccessToken string
	VerifyToken string
}

type PinnacleConfig struct {
	BaseURL string
	APIKey  string
}

// Load reads configuration from the environment. Call godotenv.Load first if
// a .env file should be honoured.
func Load() *Config {
	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "wa-dispatch"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		AMQPQueue:      getEnv("AMQP_QUEUE", "campaign_sends"),
		OTelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		OutboundQueueSize:     getEnvInt("OUTBOUND_QUEUE_SIZE", 10000),
		LogQueueSize:          getEnvInt("LOG_QUEUE_SIZE", 20000),
		WebhookQueueSize:      getEnvInt("WEBHOOK_QUEUE_SIZE", 5000),
		WebhookEnqueueTimeout: getEnvDuration("WEBHOOK_ENQUEUE_TIMEOUT", 2*time.Second),
		SendWorkers:           getEnvInt("SEND_WORKERS", 4),
		WebhookWorkers:        getEnvInt("WEBHOOK_WORKERS", 2),

		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		Meta: MetaConfig{
			BaseURL:     getEnv("META_BASE_URL", "https://graph.facebook.com"),
			APIVersion:  getEnv("META_API_VERSION", "v21.0"),
			AccessToken: os.Getenv("META_ACCESS_TOKEN"),
			VerifyToken: os.Getenv("META_VERIFY_TOKEN"),
		},
		Pinnacle: PinnacleConfig{
			BaseURL: getEnv("PINNACLE_BASE_URL", "https://partnersv1.pinbot.ai"),
			APIKey:  os.Getenv("PINNACLE_API_KEY"),
		},
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true"
}
