// Package config loads service configuration from the environment.
//
// Each section is read with its own prefix (SERVER_, MODEL_, DB_, LOG_).
// A .env file in the working directory is loaded first when present; it never
// overrides variables already set in the process environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the top-level service configuration
type Config struct {
	Server   ServerConfig
	Model    ModelConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `split_words:"true" default:"0.0.0.0"`
	Port         int           `split_words:"true" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `split_words:"true" default:"15s" validate:"gt=0"`
	WriteTimeout time.Duration `split_words:"true" default:"15s" validate:"gt=0"`
	IdleTimeout  time.Duration `split_words:"true" default:"60s" validate:"gt=0"`
}

// ModelConfig locates the model artifact and labels its output
type ModelConfig struct {
	Path      string `split_words:"true" default:"models/solar_power_generation_xgbr_model.json" validate:"required"`
	PowerUnit string `split_words:"true" default:"J"`
}

// DatabaseConfig holds the optional prediction history store settings
type DatabaseConfig struct {
	Enabled         bool          `split_words:"true" default:"false"`
	Host            string        `split_words:"true" default:"localhost" validate:"required_if=Enabled true"`
	Port            int           `split_words:"true" default:"5432" validate:"min=1,max=65535"`
	User            string        `split_words:"true" default:"solar" validate:"required_if=Enabled true"`
	Password        string        `split_words:"true"`
	Name            string        `split_words:"true" default:"solar" validate:"required_if=Enabled true"`
	SSLMode         string        `split_words:"true" default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `split_words:"true" default:"10" validate:"min=1"`
	MaxIdleConns    int           `split_words:"true" default:"5" validate:"min=0"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"30m"`
	ConnMaxIdleTime time.Duration `split_words:"true" default:"5m"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `split_words:"true" default:"info" validate:"oneof=debug info warn error"`
}

// LoadConfig reads the configuration from .env and the process environment
func LoadConfig() (*Config, error) {
	// Missing .env is the normal case outside local development
	_ = godotenv.Load()

	cfg := &Config{}
	sections := []struct {
		prefix string
		spec   interface{}
	}{
		{prefix: "server", spec: &cfg.Server},
		{prefix: "model", spec: &cfg.Model},
		{prefix: "db", spec: &cfg.Database},
		{prefix: "log", spec: &cfg.Logging},
	}

	for _, section := range sections {
		if err := envconfig.Process(section.prefix, section.spec); err != nil {
			return nil, fmt.Errorf("failed to process %s configuration: %w", section.prefix, err)
		}
	}

	return cfg, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
