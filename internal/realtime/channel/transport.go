package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/steveyegge/projectsync/internal/realtime/events"
)

// Conn is one open channel connection.
type Conn interface {
	Read(ctx context.Context) (events.Envelope, error)
	Write(ctx context.Context, env events.Envelope) error
	Close() error
}

// Transport opens connections scoped to a project.
type Transport interface {
	Dial(ctx context.Context, projectID, token string) (Conn, error)
}

// WebSocketTransport dials {URL}/ws/projects/{projectID} and authenticates
// with a bearer token.
type WebSocketTransport struct {
	// URL is the channel server root, e.g. ws://localhost:8080
	URL string

	// DialTimeout bounds the handshake (default: 10s)
	DialTimeout time.Duration

	// ReadLimit caps a single inbound message (default: 1 MiB)
	ReadLimit int64
}

// ProjectURL returns the namespace URL for projectID.
func (t *WebSocketTransport) ProjectURL(projectID string) string {
	return strings.TrimRight(t.URL, "/") + "/ws/projects/" + url.PathEscape(projectID)
}

// Dial implements Transport.
func (t *WebSocketTransport) Dial(ctx context.Context, projectID, token string) (Conn, error) {
	timeout := t.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	c, _, err := websocket.Dial(dialCtx, t.ProjectURL(projectID), &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial project %s: %w", projectID, err)
	}

	limit := t.ReadLimit
	if limit <= 0 {
		limit = 1 << 20
	}
	c.SetReadLimit(limit)

	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) (events.Envelope, error) {
	var env events.Envelope
	if err := wsjson.Read(ctx, c.conn, &env); err != nil {
		return events.Envelope{}, err
	}
	return env, nil
}

func (c *wsConn) Write(ctx context.Context, env events.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, c.conn, env)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
