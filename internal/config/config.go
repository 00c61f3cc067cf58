// Package config loads service configuration from the environment via Viper.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for the card service, loaded from environment
// variables (optionally seeded from a .env file).
type Config struct {
	ServerAddr  string        `mapstructure:"SERVER_ADDR"`
	DatabaseURL string        `mapstructure:"DATABASE_URL"`
	JWTKey      string        `mapstructure:"JWT_KEY"`
	CardEncKey  string        `mapstructure:"CARD_ENC_KEY"` // base64, 32 bytes
	AccessTTL   time.Duration `mapstructure:"ACCESS_TTL"`

	LoginWindow   time.Duration `mapstructure:"LOGIN_FAIL_WINDOW"`
	LoginMaxFails int           `mapstructure:"LOGIN_MAX_FAILS"`
	LoginBlockFor time.Duration `mapstructure:"LOGIN_BLOCK_FOR"`
}

// Load reads configuration from the environment, with defaults for everything
// except the database URL and key material.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("ACCESS_TTL", "15m")
	v.SetDefault("LOGIN_FAIL_WINDOW", "15m")
	v.SetDefault("LOGIN_MAX_FAILS", 5)
	v.SetDefault("LOGIN_BLOCK_FOR", "15m")

	for _, key := range []string{
		"SERVER_ADDR", "DATABASE_URL", "JWT_KEY", "CARD_ENC_KEY",
		"ACCESS_TTL", "LOGIN_FAIL_WINDOW", "LOGIN_MAX_FAILS", "LOGIN_BLOCK_FOR",
	} {
		_ = v.BindEnv(key)
	}

	// The .env file is optional.
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTKey == "" {
		return Config{}, errors.New("JWT_KEY is required")
	}
	if _, err := cfg.CardKey(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CardKey decodes the base64 card encryption key and checks its length.
func (c Config) CardKey() ([]byte, error) {
	if c.CardEncKey == "" {
		return nil, errors.New("CARD_ENC_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.CardEncKey)
	if err != nil {
		return nil, fmt.Errorf("CARD_ENC_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("CARD_ENC_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
