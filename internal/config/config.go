package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Root string `env:"ROOT" envDefault:"./learning-backend-data"`
	Port int    `env:"PORT" envDefault:"8001"`

	// When set, postgres is used instead of the default sqlite database under Root.
	DatabaseURL string `env:"DATABASE_URL" envDefault:""`

	ModelBucket string `env:"MODEL_BUCKET" envDefault:"models"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL" envDefault:""`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" envDefault:""`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" envDefault:""`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	// Caps the number of samples the synthetic dataset loader materializes per
	// split so task execution stays bounded regardless of descriptor size.
	SampleCap int `env:"SAMPLE_CAP" envDefault:"512"`

	// "first-match" or "best-match"; selects how transfer tasks pick a source model.
	TransferSourcePolicy string `env:"TRANSFER_SOURCE_POLICY" envDefault:"first-match"`

	TargetAccuracy float64 `env:"TARGET_ACCURACY" envDefault:"0.8"`
}

func LoadConfig() (*Config, error) {
	// Load .env if present, useful for local development.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, continuing with environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	if cfg.S3EndpointURL != "" && (cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "") {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return &cfg, nil
}
