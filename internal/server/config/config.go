package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL" envDefault:"postgres://localhost/speakly?sslmode=disable"`
	Port        int    `env:"PORT" envDefault:"3567"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	// Redis holds verification codes and presence.
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Object storage for photo and voice attachments.
	S3Bucket       string `env:"S3_BUCKET" envDefault:"files"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3PublicURL    string `env:"S3_PUBLIC_URL"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`

	// Payment: YooKassa
	YooKassaShopID    string `env:"YOOKASSA_SHOP_ID"`
	YooKassaSecretKey string `env:"YOOKASSA_SECRET_KEY"`
	YooKassaURL       string `env:"YOOKASSA_API_URL" envDefault:"https://api.yookassa.ru/v3"`
	PaymentReturnURL  string `env:"PAYMENT_RETURN_URL" envDefault:"https://speakly.app"`

	// SMS delivery of verification codes
	SMSAPIKey     string `env:"SMS_API_KEY"`
	SMSURL        string `env:"SMS_API_URL" envDefault:"https://sms.ru/sms/send"`
	ExposeDevCode bool   `env:"EXPOSE_DEV_CODE" envDefault:"false"`

	// Rate limits
	MaxConnectionsPerIP int `env:"MAX_CONNECTIONS_PER_IP" envDefault:"10"`
	AuthAttemptsPerMin  int `env:"AUTH_ATTEMPTS_PER_MIN" envDefault:"5"`
	RequestsPerMin      int `env:"REQUESTS_PER_MIN" envDefault:"600"`

	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"*"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

func (c *Config) PaymentsEnabled() bool {
	return c.YooKassaShopID != "" && c.YooKassaSecretKey != ""
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
