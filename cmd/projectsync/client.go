package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/core"
)

// openCore builds a synchronization core from the loaded config. The
// returned close func releases the core and any token watcher.
func openCore() (*core.Core, func(), error) {
	tokens, err := cfg.Auth.TokenSource(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load token: %w", err)
	}
	closeTokens := func() {
		if c, ok := tokens.(io.Closer); ok {
			_ = c.Close()
		}
	}

	clientID := uuid.NewString()
	client, err := api.NewHTTPClient(api.HTTPConfig{
		BaseURL:  cfg.Server.URL,
		Tokens:   tokens,
		Timeout:  cfg.Server.Timeout,
		ClientID: clientID,
		Logger:   logger,
	})
	if err != nil {
		closeTokens()
		return nil, nil, err
	}

	backoff := cfg.Reconnect.Backoff()
	c, err := core.New(core.Config{
		Client:          client,
		Transport:       &channel.WebSocketTransport{URL: cfg.ChannelURL()},
		Tokens:          tokens,
		Backoff:         &backoff,
		ClientID:        clientID,
		NotificationTTL: cfg.Notifications.TTL,
		ReloadTimeout:   cfg.Server.ReloadTimeout,
		Logger:          logger,
	})
	if err != nil {
		closeTokens()
		return nil, nil, err
	}

	return c, func() {
		c.Close()
		closeTokens()
	}, nil
}

// withProject opens a core, selects projectID and runs fn.
func withProject(ctx context.Context, projectID string, fn func(*core.Core) error) error {
	c, closeCore, err := openCore()
	if err != nil {
		return err
	}
	defer closeCore()

	if err := c.SelectProject(ctx, projectID); err != nil {
		return err
	}
	return fn(c)
}
