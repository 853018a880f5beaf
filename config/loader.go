// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoaderOptions controls where Load looks for its config file.
type LoaderOptions struct {
	// Paths is an ordered list of candidate config files; the first one
	// that exists is used. Empty entries are skipped.
	Paths []string
	// DotEnvPath, when non-empty, is loaded into the process environment
	// before config-file parsing so $VAR substitution can see it. Missing
	// files are ignored (dev convenience only).
	DotEnvPath string
}

// DefaultLoaderOptions mirrors the fallback chain: environment-specific
// file, then a generic default, then a bare config.yaml.
func DefaultLoaderOptions() LoaderOptions {
	env := GetEnvironment()
	return LoaderOptions{
		Paths: []string{
			fmt.Sprintf("config/%s.yaml", env),
			"config/default.yaml",
			"config.yaml",
		},
		DotEnvPath: ".env",
	}
}

// Load reads and validates the configuration, applying environment
// variable overrides on top of whichever file was found.
func Load(opts ...LoaderOptions) (*Config, error) {
	o := DefaultLoaderOptions()
	if len(opts) > 0 {
		o = opts[0]
	}

	if o.DotEnvPath != "" {
		_ = godotenv.Load(o.DotEnvPath)
	}

	var cfg *Config
	var err error
	for _, path := range o.Paths {
		if path == "" {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err = loadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		break
	}

	if cfg == nil {
		cfg = &Config{}
	}

	setDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadConfigFile parses a YAML (or, for a .json extension, JSON) file into
// a Config, substituting $VAR/${VAR} references from the environment first.
func loadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	substituted := SubstituteEnvVars(string(raw))

	cfg := &Config{}
	if len(path) > 5 && path[len(path)-5:] == ".json" {
		if err := json.Unmarshal([]byte(substituted), cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal([]byte(substituted), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironmentOverrides lets a small set of deployment-time environment
// variables win over whatever the file said, without requiring a full
// config file in container deployments.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("HASHRAND_LISTEN_ADDR"); v != "" {
		if cfg.Server == nil {
			cfg.Server = &ServerConfig{}
		}
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("HASHRAND_STORAGE_DSN"); v != "" {
		if cfg.Storage == nil {
			cfg.Storage = &StorageConfig{}
		}
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("HASHRAND_STORAGE_DRIVER"); v != "" {
		if cfg.Storage == nil {
			cfg.Storage = &StorageConfig{}
		}
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("HASHRAND_LOG_LEVEL"); v != "" {
		if cfg.Logging == nil {
			cfg.Logging = &LoggingConfig{}
		}
		cfg.Logging.Level = v
	}
}

// setDefaults fills in values that are safe to ship without an explicit
// config entry. Master keys are never defaulted: Validate rejects a Config
// with any empty key field.
func setDefaults(cfg *Config) {
	if cfg.Tokens == nil {
		cfg.Tokens = &TokenConfig{}
	}
	if cfg.Tokens.AccessTokenDurationMinutes == 0 {
		cfg.Tokens.AccessTokenDurationMinutes = 15
	}
	if cfg.Tokens.RefreshTokenDurationMinutes == 0 {
		cfg.Tokens.RefreshTokenDurationMinutes = 3 * 24 * 60
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}

	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{}
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = 5 * time.Second
	}
	if cfg.Health.CacheTTL == 0 {
		cfg.Health.CacheTTL = 10 * time.Second
	}

	if cfg.RateLimit == nil {
		cfg.RateLimit = &RateLimitConfig{}
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 5
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 10
	}
	if cfg.RateLimit.SweepInterval == 0 {
		cfg.RateLimit.SweepInterval = time.Minute
	}

	if cfg.Environment == "" {
		cfg.Environment = GetEnvironment()
	}
}

// LoadForEnvironment loads the config file for a specific named
// environment, bypassing GetEnvironment()'s process-wide default.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{
		Paths: []string{
			fmt.Sprintf("config/%s.yaml", environment),
			"config/default.yaml",
		},
		DotEnvPath: ".env",
	})
}

// MustLoad calls Load and panics on error; used by cmd/hashrandd at
// process startup where there is no sensible recovery path.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}
