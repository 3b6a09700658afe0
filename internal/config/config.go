package config

import (
	"os"
	"time"
)

type Config struct {
	ServerPort      string
	DatabaseDSN     string
	TemporalAddress string
	RedisAddr       string

	PaymentAPIURL  string
	PaymentAPIKey  string
	PaymentTimeout time.Duration

	EmailAPIURL  string
	EmailAPIKey  string
	EmailTimeout time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseDSN:     getEnv("DATABASE_DSN", "booking_user:booking_pass@tcp(localhost:3306)/tour_booking?parseTime=true"),
		TemporalAddress: getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		RedisAddr:       os.Getenv("REDIS_ADDR"), // empty disables the availability cache
		PaymentAPIURL:   getEnv("PAYMENT_API_URL", "http://localhost:9090"),
		PaymentAPIKey:   os.Getenv("PAYMENT_API_KEY"),
		PaymentTimeout:  parseDuration(getEnv("PAYMENT_TIMEOUT", "10s")),
		EmailAPIURL:     getEnv("EMAIL_API_URL", "http://localhost:9091"),
		EmailAPIKey:     os.Getenv("EMAIL_API_KEY"),
		EmailTimeout:    parseDuration(getEnv("EMAIL_TIMEOUT", "10s")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
