// Package presence tracks which users are currently viewing the active
// project. The set is derived only from user_joined and user_left events.
package presence

import (
	"sort"
	"sync"
)

// Tracker is an unordered set of active user ids.
type Tracker struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{users: make(map[string]struct{})}
}

// Add records userID as active. It reports whether the user was new;
// adding a present user is a no-op.
func (t *Tracker) Add(userID string) bool {
	if userID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.users[userID]; ok {
		return false
	}
	t.users[userID] = struct{}{}
	return true
}

// Remove drops userID. Removing an absent user is a no-op.
func (t *Tracker) Remove(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.users[userID]; !ok {
		return false
	}
	delete(t.users, userID)
	return true
}

// Clear forgets every user. Called on project change and disconnect.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.users = make(map[string]struct{})
	t.mu.Unlock()
}

// Contains reports whether userID is active.
func (t *Tracker) Contains(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.users[userID]
	return ok
}

// Len returns the number of active users.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}

// Users returns the active user ids in sorted order.
func (t *Tracker) Users() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.users))
	for id := range t.users {
		out = append(out, id)
	}
	t.mu.RUnlock()

	sort.Strings(out)
	return out
}
