// Package hub is the reference channel server.
//
// Clients connect to /ws/projects/{projectId} with a bearer token. Each
// project is a room: an event a client sends is relayed to every other
// connection in the room, never back to the sender, and stamped with a
// sender id the hub assigns to the connection. The hub itself emits
// user_joined when a user's first connection to a room opens and
// user_left when their last one closes, and replays the room's current
// presence to each newcomer.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steveyegge/projectsync/internal/realtime/events"
)

// ServerSender is the sender id on events the hub originates.
const ServerSender = "server"

// ErrUnauthorized is returned by Authenticate for a bad token.
var ErrUnauthorized = errors.New("unauthorized")

// Config holds hub configuration.
type Config struct {
	// Authenticate maps a bearer token to a user id (required)
	Authenticate func(token string) (string, error)

	// QueueSize bounds pending broadcasts (default: 256)
	QueueSize int

	// Logger for hub activity (default: no-op)
	Logger *zap.Logger
}

type client struct {
	conn      *websocket.Conn
	userID    string
	projectID string

	// stamped on everything the connection sends; the claimed sender is
	// never relayed
	sender string
}

type outbound struct {
	projectID string
	except    *client
	env       events.Envelope
}

// Hub manages project rooms and relays events between their clients.
type Hub struct {
	authenticate func(string) (string, error)
	logger       *zap.Logger

	rooms   map[string]map[*client]bool
	roomsMu sync.RWMutex

	broadcast chan outbound

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Hub. Call Start before serving.
func New(config *Config) (*Hub, error) {
	if config == nil || config.Authenticate == nil {
		return nil, errors.New("hub: Authenticate is required")
	}
	size := config.QueueSize
	if size <= 0 {
		size = 256
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		authenticate: config.Authenticate,
		logger:       logger.Named("hub"),
		rooms:        make(map[string]map[*client]bool),
		broadcast:    make(chan outbound, size),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start runs the broadcast loop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.broadcastLoop()
}

// Stop closes every connection and waits for the hub's goroutines.
func (h *Hub) Stop() {
	h.logger.Info("stopping hub")
	h.cancel()

	h.roomsMu.Lock()
	var all []*client
	for _, room := range h.rooms {
		for c := range room {
			all = append(all, c)
		}
	}
	h.rooms = make(map[string]map[*client]bool)
	h.roomsMu.Unlock()

	for _, c := range all {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.wg.Wait()
}

// Handler serves /ws/projects/{projectId}.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/projects/{projectId}", func(w http.ResponseWriter, r *http.Request) {
		h.ServeProject(w, r, r.PathValue("projectId"))
	})
	return mux
}

// ServeProject authenticates the request and upgrades it to a channel
// connection in projectID's room.
func (h *Hub) ServeProject(w http.ResponseWriter, r *http.Request, projectID string) {
	if h.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if projectID == "" {
		http.Error(w, "project id is required", http.StatusBadRequest)
		return
	}

	userID, err := h.authenticate(BearerToken(r))
	if err != nil {
		h.logger.Debug("rejected channel connection", zap.String("project", projectID), zap.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, userID: userID, projectID: projectID, sender: uuid.NewString()}
	first, present := h.join(c)
	h.logger.Info("client joined",
		zap.String("project", projectID), zap.String("user", userID), zap.Int("clients", h.ClientCount(projectID)))

	for _, other := range present {
		h.sendTo(c, events.UserJoined{UserID: other})
	}
	if first {
		h.enqueue(projectID, c, events.UserJoined{UserID: userID})
	}

	h.wg.Add(1)
	go h.readLoop(c)
}

// Publish sends ev to every client of projectID. Used for changes made
// without a channel, e.g. by the REST handlers.
func (h *Hub) Publish(projectID string, ev events.Event) {
	h.enqueue(projectID, nil, ev)
}

// ClientCount returns the number of open connections in projectID's room.
func (h *Hub) ClientCount(projectID string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[projectID])
}

// Users returns the distinct users in projectID's room.
func (h *Hub) Users(projectID string) []string {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return h.usersLocked(projectID, nil)
}

func (h *Hub) usersLocked(projectID string, except *client) []string {
	seen := make(map[string]bool)
	var out []string
	for c := range h.rooms[projectID] {
		if c == except || seen[c.userID] {
			continue
		}
		seen[c.userID] = true
		out = append(out, c.userID)
	}
	return out
}

// join adds c to its room. It reports whether c is its user's first
// connection there and who else is present.
func (h *Hub) join(c *client) (bool, []string) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	room, ok := h.rooms[c.projectID]
	if !ok {
		room = make(map[*client]bool)
		h.rooms[c.projectID] = room
	}
	present := h.usersLocked(c.projectID, nil)
	first := true
	for other := range room {
		if other.userID == c.userID {
			first = false
		}
	}
	room[c] = true

	var others []string
	for _, u := range present {
		if u != c.userID {
			others = append(others, u)
		}
	}
	return first, others
}

// leave removes c. It reports whether c was its user's last connection.
func (h *Hub) leave(c *client) (removed, last bool) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	room := h.rooms[c.projectID]
	if !room[c] {
		return false, false
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.projectID)
	}
	for other := range room {
		if other.userID == c.userID {
			return true, false
		}
	}
	return true, true
}

func (h *Hub) removeClient(c *client) {
	removed, last := h.leave(c)
	if !removed {
		return
	}
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("client left", zap.String("project", c.projectID), zap.String("user", c.userID))
	if last && h.ctx.Err() == nil {
		h.enqueue(c.projectID, nil, events.UserLeft{UserID: c.userID})
	}
}

// readLoop relays every valid event c sends to the rest of its room.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.removeClient(c)

	for {
		var env events.Envelope
		if err := wsjson.Read(h.ctx, c.conn, &env); err != nil {
			return
		}
		if !events.Known(env.Event) {
			h.logger.Debug("dropping unknown event", zap.String("event", string(env.Event)))
			continue
		}
		if env.Timestamp.IsZero() {
			env.Timestamp = time.Now()
		}
		env.Sender = c.sender
		h.queue(outbound{projectID: c.projectID, except: c, env: env})
	}
}

func (h *Hub) enqueue(projectID string, except *client, ev events.Event) {
	env, err := events.Encode(ServerSender, ev)
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return
	}
	h.queue(outbound{projectID: projectID, except: except, env: env})
}

func (h *Hub) queue(msg outbound) {
	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
	default:
		h.logger.Warn("broadcast queue full, dropping event", zap.String("event", string(msg.env.Event)))
	}
}

// broadcastLoop delivers queued events in order.
func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case msg := <-h.broadcast:
			h.roomsMu.RLock()
			targets := make([]*client, 0, len(h.rooms[msg.projectID]))
			for c := range h.rooms[msg.projectID] {
				if c != msg.except {
					targets = append(targets, c)
				}
			}
			h.roomsMu.RUnlock()

			for _, c := range targets {
				if err := h.write(c, msg.env); err != nil {
					h.logger.Debug("failed to send to client", zap.String("user", c.userID), zap.Error(err))
					h.removeClient(c)
				}
			}
		}
	}
}

func (h *Hub) sendTo(c *client, ev events.Event) {
	env, err := events.Encode(ServerSender, ev)
	if err != nil {
		return
	}
	if err := h.write(c, env); err != nil {
		h.logger.Debug("failed to replay presence", zap.Error(err))
	}
}

func (h *Hub) write(c *client, env events.Envelope) error {
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, c.conn, env)
}

// BearerToken extracts the token from the Authorization header or the
// token query parameter.
func BearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// StaticTokens authenticates against a fixed token→user table.
func StaticTokens(tokens map[string]string) func(string) (string, error) {
	return func(token string) (string, error) {
		if user, ok := tokens[token]; ok && token != "" {
			return user, nil
		}
		return "", fmt.Errorf("%w: unknown token", ErrUnauthorized)
	}
}
