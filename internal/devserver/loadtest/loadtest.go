// Package loadtest drives many synchronization cores against one backend
// to check that they converge.
//
// A run seeds a project, connects N clients to it, has every client create
// tasks concurrently through its mutation pipeline and then waits until
// every client's store holds the full task list. Mutation latency and
// time-to-convergence are reported.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/projectsync/internal/api"
	"github.com/steveyegge/projectsync/internal/model"
	"github.com/steveyegge/projectsync/internal/realtime/core"
)

// Fixture is a seeded project.
type Fixture struct {
	Project    *model.Project
	TaskIDs    []string
	SubtaskIDs []string
}

// Seed creates a project with numTasks tasks. About subtaskPct of them are
// nested under an earlier task. The layout is deterministic.
func Seed(ctx context.Context, client api.Client, numTasks int, subtaskPct float64) (*Fixture, error) {
	p, err := client.CreateProject(ctx, model.ProjectInput{Title: fmt.Sprintf("loadtest %d", numTasks)})
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	inputs := generateTasks(numTasks)
	f := &Fixture{Project: p}
	rng := rand.New(rand.NewPCG(42, 0))

	for i, in := range inputs {
		if i > 0 && rng.Float64() < subtaskPct {
			in.ParentID = f.TaskIDs[rng.IntN(i)]
		}
		t, err := client.CreateTask(ctx, p.ID, in)
		if err != nil {
			return nil, fmt.Errorf("failed to seed task %d: %w", i, err)
		}
		f.TaskIDs = append(f.TaskIDs, t.ID)
		if t.HasParent() {
			f.SubtaskIDs = append(f.SubtaskIDs, t.ID)
		}
	}
	return f, nil
}

// generateTasks returns count inputs with priorities weighted toward medium
// and statuses spread over the board.
func generateTasks(count int) []model.TaskInput {
	priorities := []string{
		model.PriorityUrgent, model.PriorityHigh, model.PriorityHigh,
		model.PriorityMedium, model.PriorityMedium, model.PriorityMedium, model.PriorityMedium,
		model.PriorityLow, model.PriorityLow, model.PriorityLow,
	}
	statuses := []string{model.StatusTodo, model.StatusTodo, model.StatusInProgress, model.StatusReview, model.StatusDone}

	out := make([]model.TaskInput, count)
	for i := range out {
		out[i] = model.TaskInput{
			Title:       fmt.Sprintf("Task %d", i),
			Description: fmt.Sprintf("seeded for load testing (batch %d)", i/100),
			Status:      statuses[i%len(statuses)],
			Priority:    priorities[i%len(priorities)],
		}
	}
	return out
}

// Options configures a run.
type Options struct {
	// Clients is the number of concurrent cores
	Clients int

	// MutationsPerClient is how many tasks each client creates
	MutationsPerClient int

	// ConnectTimeout bounds waiting for every channel to open (default: 10s)
	ConnectTimeout time.Duration

	// ConvergeTimeout bounds waiting for every store to catch up (default: 30s)
	ConvergeTimeout time.Duration
}

// Report is the outcome of a run.
type Report struct {
	Clients     int
	Mutations   *LatencyStats
	Convergence time.Duration
	Expected    int
}

// ErrNotConverged is returned when some client never saw every task.
var ErrNotConverged = errors.New("clients did not converge")

// Run connects opts.Clients cores built by newCore to projectID, creates
// tasks from all of them at once and waits for every store to hold
// expected tasks in total, where expected is the seeded count plus the
// tasks created here. The cores are closed before Run returns.
func Run(ctx context.Context, projectID string, seeded int, newCore func(i int) (*core.Core, error), opts Options) (*Report, error) {
	if opts.Clients <= 0 || opts.MutationsPerClient < 0 {
		return nil, fmt.Errorf("invalid options: %d clients, %d mutations", opts.Clients, opts.MutationsPerClient)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ConvergeTimeout <= 0 {
		opts.ConvergeTimeout = 30 * time.Second
	}

	cores := make([]*core.Core, 0, opts.Clients)
	defer func() {
		for _, c := range cores {
			c.Close()
		}
	}()
	for i := 0; i < opts.Clients; i++ {
		c, err := newCore(i)
		if err != nil {
			return nil, fmt.Errorf("failed to create client %d: %w", i, err)
		}
		cores = append(cores, c)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range cores {
		g.Go(func() error { return c.SelectProject(gctx, projectID) })
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to select project: %w", err)
	}
	if err := waitFor(ctx, opts.ConnectTimeout, func() bool {
		for _, c := range cores {
			if !c.Store().SocketConnected() {
				return false
			}
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("channels did not open: %w", err)
	}

	var (
		mu        sync.Mutex
		durations []time.Duration
	)
	start := time.Now()
	g, gctx = errgroup.WithContext(ctx)
	for i, c := range cores {
		g.Go(func() error {
			for j := 0; j < opts.MutationsPerClient; j++ {
				begin := time.Now()
				_, err := c.Mutations().CreateTask(gctx, model.TaskInput{
					Title:    fmt.Sprintf("client %d task %d", i, j),
					Priority: model.PriorityMedium,
				})
				if err != nil {
					return fmt.Errorf("client %d mutation %d failed: %w", i, j, err)
				}
				mu.Lock()
				durations = append(durations, time.Since(begin))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	expected := seeded + opts.Clients*opts.MutationsPerClient
	if err := waitFor(ctx, opts.ConvergeTimeout, func() bool {
		for _, c := range cores {
			if len(c.Store().Tasks()) != expected {
				return false
			}
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}

	return &Report{
		Clients:     opts.Clients,
		Mutations:   computeLatencyStats(durations),
		Convergence: time.Since(start),
		Expected:    expected,
	}, nil
}

func waitFor(ctx context.Context, timeout time.Duration, cond func() bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LatencyStats summarizes a set of durations.
type LatencyStats struct {
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Count int
}

func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return &LatencyStats{
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
		Count: len(sorted),
	}
}

// Print writes the report in a human-readable form.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Clients:       %d\n", r.Clients)
	fmt.Fprintf(w, "Tasks:         %d\n", r.Expected)
	fmt.Fprintf(w, "Converged in:  %v\n", r.Convergence.Round(time.Millisecond))
	fmt.Fprintf(w, "Mutation latency (%d):\n", r.Mutations.Count)
	fmt.Fprintf(w, "  Min:  %v\n", r.Mutations.Min)
	fmt.Fprintf(w, "  P50:  %v\n", r.Mutations.P50)
	fmt.Fprintf(w, "  Mean: %v\n", r.Mutations.Mean)
	fmt.Fprintf(w, "  P95:  %v\n", r.Mutations.P95)
	fmt.Fprintf(w, "  P99:  %v\n", r.Mutations.P99)
	fmt.Fprintf(w, "  Max:  %v\n", r.Mutations.Max)
}
