package config

import "github.com/caarlos0/env/v11"

type TestConfig struct {
	TestPostgresDSN string `env:"TEST_POSTGRES_DSN,required,notEmpty"`
}

func LoadTest() (TestConfig, error) {
	var cfg TestConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// TestCacheConfig is optional; cache tests fall back to an in-process server when
// TestRedisAddr is empty.
type TestCacheConfig struct {
	TestRedisAddr string `env:"TEST_REDIS_ADDR"`
}

func LoadTestCache() (TestCacheConfig, error) {
	var cfg TestCacheConfig
	err := env.Parse(&cfg)
	return cfg, err
}
