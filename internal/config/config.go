package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL         string `env:"RABBITMQ_URL,required=true"`
	RedisURL            string `env:"REDIS_URL,required=true"`
	MetaAccessToken     string `env:"META_ACCESS_TOKEN"`
	MetaBaseURL         string `env:"META_BASE_URL,default=https://graph.facebook.com"`
	MetaAPIVersion      string `env:"META_API_VERSION,default=v21.0"`
	WebhookVerifyToken  string `env:"WEBHOOK_VERIFY_TOKEN,required=true"`
	JWTSecret           string `env:"JWT_SECRET,required=true"`
	JWTExpiryMinutes    int    `env:"JWT_EXPIRE_MINUTES,default=720"`
	SendDelayMillis     int    `env:"SEND_DELAY_MS,default=200"`
	RateLimitPerSec     int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	DispatchConcurrency int    `env:"DISPATCH_CONCURRENCY,default=4"`
	APIPort             int    `env:"API_PORT,default=8080"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
