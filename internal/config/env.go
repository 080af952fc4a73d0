package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Env holds the values that only come from the process environment.
type Env struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN, required"`
	BotUser  string `env:"TELEGRAM_BOT_USER, required"`
	LogLevel string `env:"HUBTRACK_LOG_LEVEL"`
}

// LoadEnv reads Env from the process environment.
func LoadEnv(ctx context.Context) (Env, error) {
	return loadEnv(ctx, envconfig.OsLookuper())
}

func loadEnv(ctx context.Context, l envconfig.Lookuper) (Env, error) {
	var env Env
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: l}); err != nil {
		if errors.Is(err, envconfig.ErrMissingRequired) {
			return Env{}, fmt.Errorf("%w: %v", ErrMissingEnv, err)
		}
		return Env{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	env.BotToken = strings.TrimSpace(env.BotToken)
	env.BotUser = strings.TrimSpace(env.BotUser)
	env.LogLevel = strings.TrimSpace(env.LogLevel)
	switch {
	case env.BotToken == "":
		return Env{}, fmt.Errorf("%w: TELEGRAM_BOT_TOKEN is blank", ErrMissingEnv)
	case env.BotUser == "":
		return Env{}, fmt.Errorf("%w: TELEGRAM_BOT_USER is blank", ErrMissingEnv)
	}
	return env, nil
}

// Apply overlays environment overrides onto cfg.
func (e Env) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if e.LogLevel != "" {
		cfg.Logging.Level = e.LogLevel
	}
}
