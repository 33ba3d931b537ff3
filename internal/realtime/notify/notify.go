// Package notify holds the user-facing notifications raised by mutations
// and remote reconciliations. Notifications expire on their own.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// DefaultTTL is how long a notification stays active.
const DefaultTTL = 5 * time.Second

// Notification is one message shown to the user.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// Config holds Center configuration.
type Config struct {
	// TTL before a notification expires (default: DefaultTTL)
	TTL time.Duration

	// Logger receives every notification (default: no-op)
	Logger *zap.Logger
}

// Center keeps the active notifications and fans them out to subscribers.
// Push never blocks on subscribers beyond their own callback.
type Center struct {
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	active []Notification
	timers map[string]*time.Timer
	subs   map[int]func(Notification)
	nextID int
	closed bool
}

// New creates a Center.
func New(config *Config) *Center {
	if config == nil {
		config = &Config{}
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{
		ttl:    ttl,
		logger: logger.Named("notify"),
		timers: make(map[string]*time.Timer),
		subs:   make(map[int]func(Notification)),
	}
}

// Success raises a success notification.
func (c *Center) Success(message string) Notification { return c.Push(KindSuccess, message) }

// Error raises an error notification.
func (c *Center) Error(message string) Notification { return c.Push(KindError, message) }

// Info raises an informational notification.
func (c *Center) Info(message string) Notification { return c.Push(KindInfo, message) }

// Warning raises a warning notification.
func (c *Center) Warning(message string) Notification { return c.Push(KindWarning, message) }

// Push raises a notification of the given kind and schedules its expiry.
func (c *Center) Push(kind Kind, message string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
	}

	switch kind {
	case KindError:
		c.logger.Warn(message, zap.String("kind", string(kind)))
	default:
		c.logger.Debug(message, zap.String("kind", string(kind)))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n
	}
	c.active = append(c.active, n)
	c.timers[n.ID] = time.AfterFunc(c.ttl, func() { c.Dismiss(n.ID) })
	subs := make([]func(Notification), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
	return n
}

// Dismiss removes the notification with id. It reports whether it was
// still active.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, n := range c.active {
		if n.ID == id {
			c.active = append(c.active[:i], c.active[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the unexpired notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.active...)
}

// Subscribe registers fn for every future notification and returns a
// function that removes it.
func (c *Center) Subscribe(fn func(Notification)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close stops every expiry timer and drops later notifications.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.active = nil
}
