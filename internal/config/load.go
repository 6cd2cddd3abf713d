package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment overrides applied after the config file.
const (
	EnvBackendURL = "VETCHAT_BACKEND_URL"
	EnvLogLevel   = "VETCHAT_LOG_LEVEL"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}

		cfg, warnings, err := withEnv(base)
		if err != nil {
			return Loaded{}, err
		}
		return Loaded{
			Path:   resolvedPath,
			Config: cfg,
			Warnings: append([]Warning{{
				Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
			}}, warnings...),
			Exists: false,
		}, nil
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	cfg, envWarnings, err := withEnv(cfg)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: append(warnings, envWarnings...),
		Exists:   true,
	}, nil
}

func withEnv(cfg Config) (Config, []Warning, error) {
	var warnings []Warning

	if raw, ok := os.LookupEnv(EnvBackendURL); ok && strings.TrimSpace(raw) != "" {
		cfg.Backend.URL = strings.TrimSpace(raw)
		warnings = append(warnings, Warning{Message: fmt.Sprintf("backend.url overridden by %s", EnvBackendURL)})
	}
	if raw, ok := os.LookupEnv(EnvLogLevel); ok && strings.TrimSpace(raw) != "" {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw))
	}

	if _, err := Validate(cfg); err != nil {
		return Config{}, nil, fmt.Errorf("environment override: %w", err)
	}
	return cfg, warnings, nil
}
