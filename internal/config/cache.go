package config

import "github.com/caarlos0/env/v11"

type CacheConfig struct {
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

func LoadCache() (CacheConfig, error) {
	var cfg CacheConfig
	err := env.Parse(&cfg)
	return cfg, err
}
