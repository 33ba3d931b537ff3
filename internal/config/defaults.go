package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:           "http://127.0.0.1:8080",
			Timeout:       15 * time.Second,
			ReloadTimeout: 30 * time.Second,
		},
		Reconnect: ReconnectConfig{
			InitialDelay: 5 * time.Second,
			MaxDelay:     time.Minute,
			Multiplier:   2,
			Jitter:       0.2,
			MaxAttempts:  10,
		},
		Notifications: NotificationsConfig{
			TTL: 5 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		DevServer: DevServerConfig{
			Addr:   "127.0.0.1:8080",
			DBPath: filepath.Join(".projectsync", "dev.db"),
		},
	}
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories as needed.
func WriteDefault(path string) error {
	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
