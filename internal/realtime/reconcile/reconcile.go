// Package reconcile reloads store collections from the REST collaborator.
//
// Every reload captures the store epoch when it starts and writes its
// result only if that epoch is still current when the response arrives.
// Identical reloads that overlap are coalesced, but never onto a request
// that was sent before they were asked for: requests arriving while one is
// in flight share a single follow-up request.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/realtime/store"
)

// DefaultTimeout bounds a single reload request.
const DefaultTimeout = 30 * time.Second

// Config holds Reconciler configuration.
type Config struct {
	// Timeout bounds each REST call (default: DefaultTimeout)
	Timeout time.Duration

	// Logger for reload activity (default: no-op)
	Logger *zap.Logger
}

// Reconciler implements the reconciliation actions.
type Reconciler struct {
	client  api.Client
	store   *store.Store
	timeout time.Duration
	logger  *zap.Logger

	group singleflight.Group

	mu       sync.Mutex
	requests map[string]uint64
}

// New creates a Reconciler writing into st.
func New(client api.Client, st *store.Store, config *Config) *Reconciler {
	if config == nil {
		config = &Config{}
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		client:   client,
		store:    st,
		timeout:  timeout,
		logger:   logger.Named("reconcile"),
		requests: make(map[string]uint64),
	}
}

// ReloadTasks replaces the selected project's task forest.
func (r *Reconciler) ReloadTasks(ctx context.Context) error {
	return r.reloadProject(ctx, "tasks", func(ctx context.Context, e store.Epoch) (bool, error) {
		tasks, err := r.client.ListTasks(ctx, e.ProjectID)
		if err != nil {
			return false, err
		}
		return r.store.ReplaceTasks(e, tasks), nil
	})
}

// ReloadMembers replaces the selected project's member list.
func (r *Reconciler) ReloadMembers(ctx context.Context) error {
	return r.reloadProject(ctx, "members", func(ctx context.Context, e store.Epoch) (bool, error) {
		members, err := r.client.ListMembers(ctx, e.ProjectID)
		if err != nil {
			return false, err
		}
		return r.store.ReplaceMembers(e, members), nil
	})
}

// ReloadDashboard replaces the selected project's dashboard.
func (r *Reconciler) ReloadDashboard(ctx context.Context) error {
	return r.reloadProject(ctx, "dashboard", func(ctx context.Context, e store.Epoch) (bool, error) {
		d, err := r.client.GetDashboard(ctx, e.ProjectID)
		if err != nil {
			return false, err
		}
		return r.store.SetDashboard(e, d), nil
	})
}

// ReloadProject replaces the selected project record.
func (r *Reconciler) ReloadProject(ctx context.Context) error {
	return r.reloadProject(ctx, "project", func(ctx context.Context, e store.Epoch) (bool, error) {
		p, err := r.client.GetProject(ctx, e.ProjectID)
		if err != nil {
			return false, err
		}
		return r.store.SetProject(e, p), nil
	})
}

// ReloadProjects replaces the project list. The list is not scoped to a
// project, so it is never stale.
func (r *Reconciler) ReloadProjects(ctx context.Context) error {
	return r.shared(ctx, "projects", func(ctx context.Context) error {
		projects, err := r.client.ListProjects(ctx)
		if err != nil {
			return fmt.Errorf("failed to reload projects: %w", err)
		}
		r.store.ReplaceProjects(projects)
		return nil
	})
}

// reloadProject runs load against the current epoch. With no project
// selected it does nothing.
func (r *Reconciler) reloadProject(ctx context.Context, what string, load func(context.Context, store.Epoch) (bool, error)) error {
	e := r.store.Epoch()
	if !e.Valid() {
		return nil
	}

	key := fmt.Sprintf("%s/%s/%d", what, e.ProjectID, e.Gen)
	return r.shared(ctx, key, func(ctx context.Context) error {
		applied, err := load(ctx, e)
		if err != nil {
			return fmt.Errorf("failed to reload %s for project %s: %w", what, e.ProjectID, err)
		}
		if !applied {
			r.logger.Debug("discarded stale reload",
				zap.String("what", what), zap.String("project", e.ProjectID))
		}
		return nil
	})
}

// shared coalesces overlapping calls with the same key. A call is only
// answered by a request that started after it was made, so a change the
// caller was told about is always visible in the result. The request is
// detached from any single caller so one caller giving up does not fail
// the others; each caller still stops waiting when its ctx ends.
func (r *Reconciler) shared(ctx context.Context, key string, fn func(context.Context) error) error {
	want := r.request(key)

	for {
		ch := r.group.DoChan(key, func() (any, error) {
			reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
			defer cancel()

			for {
				started := r.requested(key)
				if err := fn(reqCtx); err != nil {
					return started, err
				}
				// run once more for callers that joined mid-flight
				if r.requested(key) == started {
					return started, nil
				}
				r.logger.Debug("coalesced reload", zap.String("key", key))
			}
		})

		select {
		case res := <-ch:
			if res.Err != nil {
				return res.Err
			}
			if res.Val.(uint64) >= want {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reconciler) request(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[key]++
	return r.requests[key]
}

func (r *Reconciler) requested(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[key]
}
