package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr       string        `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL      string        `env:"DATABASE_URL,required"`
	DraftPickTimeout time.Duration `env:"DRAFT_PICK_TIMEOUT" envDefault:"90s"`
	MatchRetention   time.Duration `env:"MATCH_RETENTION" envDefault:"4h"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
