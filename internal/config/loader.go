package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/steveyegge/projectsync/internal/auth"
	"github.com/steveyegge/projectsync/internal/realtime/channel"
)

// EnvPrefix prefixes every environment override, e.g.
// PROJECTSYNC_SERVER_URL or PROJECTSYNC_RECONNECT_MAX_ATTEMPTS.
const EnvPrefix = "PROJECTSYNC"

// Load reads configuration. An explicit path must exist; with an empty path
// the project file (./.projectsync/config.yaml) is used if present, then
// the global one (~/.projectsync/config.yaml). Environment variables
// override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = discover()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.channel_url", d.Server.ChannelURL)
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("server.reload_timeout", d.Server.ReloadTimeout)

	v.SetDefault("auth.token", d.Auth.Token)
	v.SetDefault("auth.token_file", d.Auth.TokenFile)

	v.SetDefault("reconnect.initial_delay", d.Reconnect.InitialDelay)
	v.SetDefault("reconnect.max_delay", d.Reconnect.MaxDelay)
	v.SetDefault("reconnect.multiplier", d.Reconnect.Multiplier)
	v.SetDefault("reconnect.jitter", d.Reconnect.Jitter)
	v.SetDefault("reconnect.max_attempts", d.Reconnect.MaxAttempts)

	v.SetDefault("notifications.ttl", d.Notifications.TTL)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.json", d.Log.JSON)

	v.SetDefault("devserver.addr", d.DevServer.Addr)
	v.SetDefault("devserver.db_path", d.DevServer.DBPath)
}

func discover() string {
	candidates := []string{ProjectConfigPath()}
	if global := GlobalConfigPath(); global != "" {
		candidates = append(candidates, global)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ProjectConfigPath returns the path to the project config file
func ProjectConfigPath() string {
	return filepath.Join(".projectsync", "config.yaml")
}

// GlobalConfigPath returns the path to the global config file
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".projectsync", "config.yaml")
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Server.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.url must be an http(s) URL, got %q", c.Server.URL))
	}
	if c.Server.ChannelURL != "" {
		if u, err := url.Parse(c.Server.ChannelURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.channel_url must be a ws(s) URL, got %q", c.Server.ChannelURL))
		}
	}
	if c.Server.Timeout <= 0 {
		errs = append(errs, errors.New("server.timeout must be positive"))
	}
	if c.Server.ReloadTimeout <= 0 {
		errs = append(errs, errors.New("server.reload_timeout must be positive"))
	}

	if c.Auth.Token != "" && c.Auth.TokenFile != "" {
		errs = append(errs, errors.New("auth.token and auth.token_file are mutually exclusive"))
	}

	r := c.Reconnect
	if r.InitialDelay <= 0 {
		errs = append(errs, errors.New("reconnect.initial_delay must be positive"))
	}
	if r.MaxDelay < r.InitialDelay {
		errs = append(errs, errors.New("reconnect.max_delay must not be below initial_delay"))
	}
	if r.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("reconnect.multiplier must be at least 1, got %g", r.Multiplier))
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		errs = append(errs, fmt.Errorf("reconnect.jitter must be within [0, 1], got %g", r.Jitter))
	}
	if r.MaxAttempts < 0 {
		errs = append(errs, errors.New("reconnect.max_attempts must not be negative"))
	}

	if c.Notifications.TTL <= 0 {
		errs = append(errs, errors.New("notifications.ttl must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ChannelURL returns the channel server root, derived from the REST URL
// (http→ws, https→wss) unless set explicitly.
func (c *Config) ChannelURL() string {
	if c.Server.ChannelURL != "" {
		return c.Server.ChannelURL
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return strings.TrimRight(u.String(), "/")
}

// Tokens inverts Users into the token→user table the backend expects.
func (d DevServerConfig) Tokens() map[string]string {
	if len(d.Users) == 0 {
		return nil
	}
	out := make(map[string]string, len(d.Users))
	for user, token := range d.Users {
		out[token] = user
	}
	return out
}

// Backoff converts the reconnect section.
func (r ReconnectConfig) Backoff() channel.Backoff {
	return channel.Backoff{
		Initial:     r.InitialDelay,
		Max:         r.MaxDelay,
		Multiplier:  r.Multiplier,
		Jitter:      r.Jitter,
		MaxAttempts: r.MaxAttempts,
	}
}

// TokenSource returns a watched file source when token_file is set, else
// the static token. The caller closes a file source.
func (a AuthConfig) TokenSource(logger *zap.Logger) (auth.TokenSource, error) {
	if a.TokenFile != "" {
		src, err := auth.NewFileTokenSource(a.TokenFile, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return auth.StaticToken(a.Token), nil
}
