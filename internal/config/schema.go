// Package config loads projectsync configuration from defaults, an optional
// YAML file and PROJECTSYNC_* environment variables, in that order.
package config

import "time"

// Config represents the full projectsync configuration
type Config struct {
	// Backend endpoints the client talks to
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Credentials for REST and channel
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Channel reconnection policy
	Reconnect ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`

	// Notification behaviour
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`

	// Log output
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Reference backend started by `projectsync serve`
	DevServer DevServerConfig `yaml:"devserver" mapstructure:"devserver"`
}

// ServerConfig locates the REST collaborator and the channel server
type ServerConfig struct {
	// REST base URL, e.g. http://localhost:8080
	URL string `yaml:"url" mapstructure:"url"`

	// Channel server root; derived from URL when empty
	ChannelURL string `yaml:"channel_url" mapstructure:"channel_url"`

	// Per-request timeout for REST calls
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Bound on each reconciliation reload
	ReloadTimeout time.Duration `yaml:"reload_timeout" mapstructure:"reload_timeout"`
}

// AuthConfig holds the bearer token or the file it is read from
type AuthConfig struct {
	Token     string `yaml:"token,omitempty" mapstructure:"token"`
	TokenFile string `yaml:"token_file,omitempty" mapstructure:"token_file"`
}

// ReconnectConfig configures channel reconnection backoff
type ReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter       float64       `yaml:"jitter" mapstructure:"jitter"`
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// NotificationsConfig configures transient notifications
type NotificationsConfig struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	JSON       bool   `yaml:"json" mapstructure:"json"`
}

// DevServerConfig configures the reference backend
type DevServerConfig struct {
	Addr   string `yaml:"addr" mapstructure:"addr"`
	DBPath string `yaml:"db_path" mapstructure:"db_path"`

	// Users maps user ids to their bearer tokens; empty accepts any token
	// as its own user id. Keyed by user because keys are case-folded.
	Users map[string]string `yaml:"users,omitempty" mapstructure:"users"`
}
