// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is everything tunable from the environment. Defaults reproduce the
// game's standard pacing.
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	AdminPassword  string        `env:"ADMIN_PASSWORD" envDefault:"admin123"`
	MaxPlayers     int           `env:"MAX_PLAYERS" envDefault:"50"`
	RollDelay      time.Duration `env:"ROLL_DELAY" envDefault:"3s"`
	ResultsDelay   time.Duration `env:"RESULTS_DELAY" envDefault:"5s"`
	GraceWindow    time.Duration `env:"DISCONNECT_GRACE" envDefault:"30s"`
	ScorePerAnswer int           `env:"SCORE_PER_ANSWER" envDefault:"10"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.MaxPlayers <= 0 {
		return Config{}, fmt.Errorf("MAX_PLAYERS must be positive")
	}
	return cfg, nil
}
