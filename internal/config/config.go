// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

// Package config loads FleetPass configuration from a YAML file, command-line
// flags, and the environment.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environment variables honored when the corresponding key is not set in the
// file or flags. The signing secret in particular should come from the
// environment rather than a file on disk.
const (
	EnvDatabaseURL   = "DATABASE_URL"
	EnvSigningSecret = "AUTH_SECRET"
)

// Config is the FleetPass process configuration. The signing secret is read
// once at startup and injected into the token codec; nothing else holds it.
type Config struct {
	DatabaseURL          string        `koanf:"database-url"`
	ListenAddr           string        `koanf:"listen-addr"`
	ObservabilityAddr    string        `koanf:"observability-addr"`
	SigningSecret        string        `koanf:"signing-secret"`
	SessionTTL           time.Duration `koanf:"session-ttl"`
	BcryptCost           int           `koanf:"bcrypt-cost"`
	ResetPasswordLength  int           `koanf:"reset-password-length"`
	ResetPasswordCharset string        `koanf:"reset-password-charset"`
	SweepInterval        time.Duration `koanf:"sweep-interval"`
	LogFormat            string        `koanf:"log-format"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		ListenAddr:          ":8080",
		ObservabilityAddr:   "127.0.0.1:9100",
		SessionTTL:          7 * 24 * time.Hour,
		BcryptCost:          10,
		ResetPasswordLength: 12,
		SweepInterval:       time.Hour,
		LogFormat:           "json",
	}
}

// Load builds the configuration. Precedence, lowest to highest: defaults,
// YAML file (if path is non-empty), command-line flags, environment fallback
// for the database URL and signing secret.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "merge flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal").
			Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
	if cfg.SigningSecret == "" {
		cfg.SigningSecret = os.Getenv(EnvSigningSecret)
	}

	return cfg, nil
}

// Validate checks that required settings are present.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("database URL is required (set database-url or %s)", EnvDatabaseURL)
	}
	if c.SigningSecret == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("signing secret is required (set signing-secret or %s)", EnvSigningSecret)
	}
	if c.SessionTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session-ttl must be positive")
	}
	if c.SweepInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("sweep-interval must be positive")
	}
	return nil
}
