// Package config provides configuration loading for the trip ledger
// server. It uses koanf to merge an optional YAML file with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DBPath string `koanf:"db_path"`

	// CORS origins allowed to call the API
	CORSOrigins []string `koanf:"cors_origins"`
}

// Default values.
const (
	DefaultPort   = 8080
	DefaultEnv    = "development"
	DefaultDBPath = "trips.db"
)

// Load reads configuration from an optional YAML file, then applies
// environment variable overrides (TRIPLEDGER_PORT, TRIPLEDGER_ENV,
// TRIPLEDGER_DB_PATH, TRIPLEDGER_CORS_ORIGINS as a comma-separated list).
// Environment variables take precedence over file values.
func Load(configFilePath string) (*Config, error) {
	k := koanf.New(".")

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFilePath, err)
		}
	}

	cfg := &Config{
		Port:   DefaultPort,
		Env:    DefaultEnv,
		DBPath: DefaultDBPath,
	}
	if k.Exists("port") {
		cfg.Port = k.Int("port")
	}
	if k.Exists("env") {
		cfg.Env = k.String("env")
	}
	if k.Exists("db_path") {
		cfg.DBPath = k.String("db_path")
	}
	if k.Exists("cors_origins") {
		cfg.CORSOrigins = k.Strings("cors_origins")
	}

	if v := os.Getenv("TRIPLEDGER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TRIPLEDGER_PORT must be an integer, got %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("TRIPLEDGER_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("TRIPLEDGER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TRIPLEDGER_CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		cfg.CORSOrigins = origins
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range", cfg.Port)
	}
	return cfg, nil
}
