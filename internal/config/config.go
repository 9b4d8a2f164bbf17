package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string `envconfig:"SERVER_PORT" default:"8080"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"showroom"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Database
	DBDriver    string `envconfig:"DB_DRIVER" default:"mysql"`
	DatabaseDSN string `envconfig:"DATABASE_DSN" default:"user:password@tcp(localhost:3306)/showroom?charset=utf8mb4&parseTime=True&loc=Local"`
	ResetDB     bool   `envconfig:"RESET_DB" default:"false"`

	// Redis
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	RedisPass string `envconfig:"REDIS_PASSWORD"`

	// Tokens
	JWTSecret       string        `envconfig:"JWT_SECRET" default:"change-me"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	ConfirmationTTL time.Duration `envconfig:"CONFIRMATION_TTL" default:"24h"`
	SecureCookies   bool          `envconfig:"SECURE_COOKIES" default:"false"`

	// Console
	PublicURL  string `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	ConsoleDir string `envconfig:"CONSOLE_DIR"`

	// Mail
	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	MailFrom     string `envconfig:"MAIL_FROM" default:"Showroom <no-reply@showroom.local>"`

	// Activity bus
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"showroom.activity"`

	// Tracing
	OTELEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Environment  string `envconfig:"ENV" default:"dev"`

	SwaggerHost string `envconfig:"SWAGGER_HOST"`
}

// ClientConfig configures the console client and CLI.
type ClientConfig struct {
	APIURL          string        `envconfig:"CONSOLE_API_URL" default:"http://localhost:8080"`
	RefreshInterval time.Duration `envconfig:"CONSOLE_REFRESH_INTERVAL" default:"10m"`
	Timeout         time.Duration `envconfig:"CONSOLE_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"warn"`
}

// Load builds Config from the environment, reading a .env file first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// LoadClient builds ClientConfig from the environment.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load client config: %w", err)
	}
	return &cfg, nil
}
