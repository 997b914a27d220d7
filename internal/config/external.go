package config

import "github.com/caarlos0/env/v11"

type LedgerConfig struct {
	BaseURL  string `env:"LEDGER_BASE_URL" envDefault:"http://localhost:9090"`
	APIToken string `env:"LEDGER_API_TOKEN"`
	PolicyID string `env:"LEDGER_POLICY_ID"`
}

func LoadLedger() (LedgerConfig, error) {
	var cfg LedgerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

type ContentConfig struct {
	Bucket          string `env:"CONTENT_BUCKET" envDefault:"trivia-metadata"`
	Endpoint        string `env:"CONTENT_ENDPOINT"`
	Region          string `env:"CONTENT_REGION" envDefault:"auto"`
	AccessKeyID     string `env:"CONTENT_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"CONTENT_SECRET_ACCESS_KEY"`
	PublicBaseURL   string `env:"CONTENT_PUBLIC_BASE_URL"`
	KeyPrefix       string `env:"CONTENT_KEY_PREFIX" envDefault:"metadata"`
}

func LoadContent() (ContentConfig, error) {
	var cfg ContentConfig
	err := env.Parse(&cfg)
	return cfg, err
}

type SeedConfig struct {
	File        string `env:"SEED_FILE" envDefault:"catalog.yaml"`
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
}

func LoadSeed() (SeedConfig, error) {
	var cfg SeedConfig
	err := env.Parse(&cfg)
	return cfg, err
}
