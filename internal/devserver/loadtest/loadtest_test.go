package loadtest

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/auth"
	"github.com/steveyegge/projectsync/internal/devserver/db"
	"github.com/steveyegge/projectsync/internal/devserver/rest"
	"github.com/steveyegge/projectsync/internal/realtime/channel"
	"github.com/steveyegge/projectsync/internal/realtime/core"
)

func startBackend(t *testing.T) string {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "load.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	srv, err := rest.New(store, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		ts.Close()
		_ = store.Close()
	})
	return ts.URL
}

func httpClient(t *testing.T, baseURL, user, clientID string) *api.HTTPClient {
	t.Helper()
	c, err := api.NewHTTPClient(api.HTTPConfig{BaseURL: baseURL, Tokens: auth.StaticToken(user), ClientID: clientID})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

// TestSeed verifies the seeded project has the requested shape.
func TestSeed(t *testing.T) {
	baseURL := startBackend(t)
	client := httpClient(t, baseURL, "seeder", "")

	f, err := Seed(context.Background(), client, 50, 0.3)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if len(f.TaskIDs) != 50 {
		t.Errorf("Expected 50 tasks, got %d", len(f.TaskIDs))
	}
	if len(f.SubtaskIDs) == 0 || len(f.SubtaskIDs) > 30 {
		t.Errorf("Expected roughly 30%% subtasks, got %d/50", len(f.SubtaskIDs))
	}

	tasks, err := client.ListTasks(context.Background(), f.Project.ID)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 50 {
		t.Errorf("Expected 50 stored tasks, got %d", len(tasks))
	}
}

// TestRunConverges drives several clients at once and expects every store
// to end up with every task.
func TestRunConverges(t *testing.T) {
	baseURL := startBackend(t)
	f, err := Seed(context.Background(), httpClient(t, baseURL, "seeder", ""), 20, 0.2)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http")
	backoff := channel.FixedBackoff(50 * time.Millisecond)
	newCore := func(i int) (*core.Core, error) {
		user := fmt.Sprintf("user%d", i)
		clientID := user + "-client"
		return core.New(core.Config{
			Client:    httpClient(t, baseURL, user, clientID),
			Transport: &channel.WebSocketTransport{URL: wsURL},
			Tokens:    auth.StaticToken(user),
			Backoff:   &backoff,
			ClientID:  clientID,
		})
	}

	report, err := Run(context.Background(), f.Project.ID, len(f.TaskIDs), newCore, Options{
		Clients:            4,
		MutationsPerClient: 3,
		ConvergeTimeout:    15 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Expected != 32 {
		t.Errorf("Expected 32 tasks, got %d", report.Expected)
	}
	if report.Mutations.Count != 12 {
		t.Errorf("Expected 12 mutations, got %d", report.Mutations.Count)
	}

	var buf bytes.Buffer
	report.Print(&buf)
	if !strings.Contains(buf.String(), "Converged in:") {
		t.Errorf("report output missing convergence line:\n%s", buf.String())
	}
}

func TestComputeLatencyStats(t *testing.T) {
	var durations []time.Duration
	for i := 100; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}

	s := computeLatencyStats(durations)
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("unexpected bounds: min=%v max=%v", s.Min, s.Max)
	}
	if s.P50 != 51*time.Millisecond {
		t.Errorf("Expected P50 51ms, got %v", s.P50)
	}
	if s.Count != 100 {
		t.Errorf("Expected count 100, got %d", s.Count)
	}

	if empty := computeLatencyStats(nil); empty.Count != 0 {
		t.Errorf("Expected empty stats, got %+v", empty)
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	_, err := Run(context.Background(), "p", 0, nil, Options{})
	if err == nil {
		t.Fatal("Expected error for zero clients")
	}
}
