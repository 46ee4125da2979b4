package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr              string
	CRDBDSN           string
	MongoURI          string
	RedisAddr         string
	RabbitURL         string
	GatewayBaseURL    string
	GatewayAPIKey     string
	GatewayHMACSecret string
	ExpiryWindow      time.Duration
	SweepInterval     time.Duration
	IdempotencyTTL    time.Duration
	OTLPEndpoint      string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Addr:              getenv("ADDR", ":8080"),
		CRDBDSN:           os.Getenv("CRDB_DSN"),
		MongoURI:          os.Getenv("MONGO_URI"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RabbitURL:         os.Getenv("RABBIT_URL"),
		GatewayBaseURL:    os.Getenv("GATEWAY_BASE_URL"),
		GatewayAPIKey:     os.Getenv("GATEWAY_API_KEY"),
		GatewayHMACSecret: os.Getenv("GATEWAY_HMAC_SECRET"),
		ExpiryWindow:      duration("EXPIRY_WINDOW", 20*time.Minute),
		SweepInterval:     duration("SWEEP_INTERVAL", 5*time.Minute),
		IdempotencyTTL:    duration("IDEMPOTENCY_TTL", time.Hour),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
