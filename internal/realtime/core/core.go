// Package core assembles the synchronization core: the store, connection
// manager, event router, reconciler, mutation pipeline and presence
// tracker, wired together for one client.
//
// Selecting a project tears down the previous channel, resets the
// per-project store fields, loads the project and its tasks, members and
// dashboard over REST and then opens a channel for it. The router is
// registered on every channel the manager opens.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/auth"
	"github.com/steveyegge/projectsync/internal/model"
	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/mutation"
	"github.com/steveyegge/projectsync/internal/realtime/notify"
	"github.com/steveyegge/projectsync/internal/realtime/presence"
	"github.com/steveyegge/projectsync/internal/realtime/reconcile"
	"github.com/steveyegge/projectsync/internal/realtime/router"
	"github.com/steveyegge/projectsync/internal/realtime/store"
)

// Config holds everything the core needs from outside.
type Config struct {
	// Client is the REST collaborator (required)
	Client api.Client

	// Transport opens notification channels (required)
	Transport channel.Transport

	// Tokens supplies the bearer token for each channel connection
	// (required). If it also implements OnChange(func(string)), the
	// channel is reopened whenever the token rotates.
	Tokens auth.TokenSource

	// Backoff for reconnection (default: channel.DefaultBackoff)
	Backoff *channel.Backoff

	// ClientID tags this client's broadcasts (default: random)
	ClientID string

	// NotificationTTL before a notification expires (default: notify.DefaultTTL)
	NotificationTTL time.Duration

	// ReloadTimeout bounds each reconciliation request (default: reconcile.DefaultTimeout)
	ReloadTimeout time.Duration

	// Logger for the whole core (default: no-op)
	Logger *zap.Logger
}

type tokenWatcher interface {
	OnChange(fn func(token string))
}

// Core is one client's synchronization core.
type Core struct {
	client api.Client
	tokens auth.TokenSource
	logger *zap.Logger

	store      *store.Store
	presence   *presence.Tracker
	notes      *notify.Center
	conn       *channel.Manager
	reconciler *reconcile.Reconciler
	router     *router.Router
	mutations  *mutation.Pipeline

	// serialises the disconnect/reset and connect halves of a selection
	selectMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New wires a Core. Nothing is loaded or connected until SelectProject.
func New(config Config) (*Core, error) {
	if config.Client == nil {
		return nil, errors.New("core: Client is required")
	}
	if config.Transport == nil {
		return nil, errors.New("core: Transport is required")
	}
	if config.Tokens == nil {
		return nil, errors.New("core: Tokens is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Core{
		client:   config.Client,
		tokens:   config.Tokens,
		logger:   logger,
		store:    store.New(),
		presence: presence.New(),
		notes:    notify.New(&notify.Config{TTL: config.NotificationTTL, Logger: logger}),
		ctx:      ctx,
		cancel:   cancel,
	}

	c.conn = channel.NewManager(config.Transport, &channel.Config{
		Backoff:  config.Backoff,
		ClientID: config.ClientID,
		Logger:   logger,
	})
	c.reconciler = reconcile.New(c.client, c.store, &reconcile.Config{
		Timeout: config.ReloadTimeout,
		Logger:  logger,
	})
	c.router = router.New(router.Config{
		Actions:       c.reconciler,
		Presence:      c.presence,
		Notifier:      c.notes,
		ActiveProject: c.store.ActiveProjectID,
		ProjectGone:   c.onProjectGone,
		Logger:        logger,
	})
	c.mutations = mutation.New(mutation.Config{
		Client:           c.client,
		Store:            c.store,
		Reloader:         c.reconciler,
		Channel:          c.conn,
		Notifier:         c.notes,
		OnProjectDeleted: func(string) { c.Deselect() },
		Logger:           logger,
	})

	c.conn.OnOpen(c.router.Register)
	c.conn.OnStateChange(c.onStateChange)
	c.unsubscribe = c.store.Subscribe(c.onStoreChange)

	if w, ok := config.Tokens.(tokenWatcher); ok {
		w.OnChange(c.onTokenChange)
	}
	return c, nil
}

// Store returns the state store.
func (c *Core) Store() *store.Store { return c.store }

// Presence returns the presence tracker.
func (c *Core) Presence() *presence.Tracker { return c.presence }

// Notifications returns the notification centre.
func (c *Core) Notifications() *notify.Center { return c.notes }

// Connection returns the connection manager.
func (c *Core) Connection() *channel.Manager { return c.conn }

// Mutations returns the mutation pipeline.
func (c *Core) Mutations() *mutation.Pipeline { return c.mutations }

// SelectProject switches the client to projectID. The previous channel is
// closed before anything is loaded; the new one is opened after the
// initial load. If another selection starts meanwhile, this one quietly
// gives up.
func (c *Core) SelectProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: project id is required", model.ErrInvalidInput)
	}

	c.selectMu.Lock()
	c.conn.Disconnect()
	c.presence.Clear()
	e := c.store.SelectProject(projectID)
	c.selectMu.Unlock()

	c.logger.Info("selecting project", zap.String("project", projectID))
	c.store.BeginLoad()
	defer c.store.EndLoad()

	p, err := c.client.GetProject(ctx, projectID)
	if err != nil {
		err = fmt.Errorf("failed to load project %s: %w", projectID, err)
		if c.store.Current(e) {
			c.store.SetError(err)
			c.notes.Error(err.Error())
		}
		return err
	}
	if !c.store.SetProject(e, p) {
		return nil
	}

	loadErr := c.loadCollections(ctx)
	if loadErr != nil {
		c.logger.Warn("initial load incomplete", zap.String("project", projectID), zap.Error(loadErr))
		if c.store.Current(e) {
			c.store.SetError(loadErr)
		}
	}

	token, err := c.tokens.Token()
	if err != nil {
		err = fmt.Errorf("failed to get channel token: %w", err)
		if c.store.Current(e) {
			c.store.SetError(err)
		}
		return err
	}

	c.selectMu.Lock()
	if c.store.Current(e) {
		c.conn.Connect(projectID, token)
	}
	c.selectMu.Unlock()

	return loadErr
}

// Deselect closes the channel and clears every per-project field.
func (c *Core) Deselect() {
	c.selectMu.Lock()
	defer c.selectMu.Unlock()
	c.deselect()
}

func (c *Core) deselect() {
	c.conn.Disconnect()
	c.presence.Clear()
	c.store.ClearProject()
}

// LoadProjects refreshes the project list.
func (c *Core) LoadProjects(ctx context.Context) error {
	return c.reconciler.ReloadProjects(ctx)
}

// ForceRefresh asks the loader to reload the selected project. The reload
// runs in the background.
func (c *Core) ForceRefresh() uint64 {
	return c.store.ForceRefresh()
}

// SetFilter validates and applies a task filter.
func (c *Core) SetFilter(f model.TaskFilter) error {
	f = f.Normalize()
	if f.Status != model.FilterAll && !model.ValidStatus(f.Status) {
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidInput, f.Status)
	}
	if f.Priority != model.FilterAll && !model.ValidPriority(f.Priority) {
		return fmt.Errorf("%w: unknown priority %q", model.ErrInvalidInput, f.Priority)
	}
	if err := model.ValidateDueFilter(f.DueDate, time.Now()); err != nil {
		return err
	}
	c.store.SetFilter(f)
	return nil
}

// Close disconnects and waits for background reloads.
func (c *Core) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.unsubscribe()
	c.Deselect()
	c.cancel()
	c.wg.Wait()
	c.notes.Close()
}

// loadCollections reloads tasks, members and dashboard concurrently.
func (c *Core) loadCollections(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.reconciler.ReloadTasks(gctx) })
	g.Go(func() error { return c.reconciler.ReloadMembers(gctx) })
	g.Go(func() error { return c.reconciler.ReloadDashboard(gctx) })
	return g.Wait()
}

func (c *Core) onStoreChange(change store.Change) {
	if change != store.ChangeRefresh {
		return
	}
	c.goBackground(func(ctx context.Context) {
		if !c.store.Epoch().Valid() {
			return
		}
		projectID := c.store.ActiveProjectID()
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return c.reconciler.ReloadProject(gctx) })
		g.Go(func() error { return c.loadCollections(gctx) })
		err := g.Wait()
		if errors.Is(err, api.ErrNotFound) {
			c.onProjectGone(projectID)
			c.notes.Info("This project was deleted")
			return
		}
		if err != nil {
			c.logger.Warn("refresh failed", zap.Error(err))
		}
	})
}

func (c *Core) onStateChange(s channel.State) {
	c.logger.Debug("channel state", zap.Stringer("state", s))
	c.store.SetSocketConnected(s == channel.Connected)

	switch s {
	case channel.Disconnected:
		c.presence.Clear()
	case channel.Failed:
		c.presence.Clear()
		c.notes.Warning("Live updates are unavailable; refresh to load changes")
	}
}

func (c *Core) onTokenChange(token string) {
	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	projectID := c.store.ActiveProjectID()
	if projectID == "" || c.conn.ProjectID() != projectID {
		return
	}
	c.logger.Info("token rotated, reconnecting", zap.String("project", projectID))
	c.conn.Connect(projectID, token)
}

// onProjectGone deselects projectID after the backend reported it deleted,
// unless another project has been selected since. It runs in the
// background because it may be called from a handler of the channel it
// closes.
func (c *Core) onProjectGone(projectID string) {
	c.goBackground(func(context.Context) {
		c.selectMu.Lock()
		defer c.selectMu.Unlock()
		if projectID == "" || c.store.ActiveProjectID() != projectID {
			return
		}
		c.logger.Info("project deleted remotely", zap.String("project", projectID))
		c.deselect()
	})
}

func (c *Core) goBackground(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}
