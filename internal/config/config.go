package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultWebhookURL is used when DOCADMIN_WEBHOOK_URL is unset.
const DefaultWebhookURL = "http://localhost:5678/webhook/documents"

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	WebhookURL        string        `envconfig:"WEBHOOK_URL"`
	WebhookMaxRetries int           `envconfig:"WEBHOOK_MAX_RETRIES" default:"3"`
	WebhookRetryDelay time.Duration `envconfig:"WEBHOOK_RETRY_DELAY" default:"1s"`
	WebhookTimeout    time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"2m"`

	// Background forwarding of pending documents; zero disables it
	ForwardSweepInterval time.Duration `envconfig:"FORWARD_SWEEP_INTERVAL" default:"0"`
	ForwardSweepBatch    int           `envconfig:"FORWARD_SWEEP_BATCH" default:"10"`

	OpenAIAPIKey         string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL        string `envconfig:"OPENAI_BASE_URL"`
	OpenAIEmbeddingModel string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-ada-002"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Bootstrap: create initial admin and API key on startup
	InitAdminEmail string `envconfig:"INIT_ADMIN_EMAIL"`
	InitAPIKey     string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCADMIN", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.WebhookURL == "" {
		cfg.WebhookURL = DefaultWebhookURL
	}
	if cfg.WebhookMaxRetries < 0 {
		return nil, fmt.Errorf("WEBHOOK_MAX_RETRIES must not be negative, got %d", cfg.WebhookMaxRetries)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
