// Package store is the single source of truth for what the client shows:
// the project list, the selected project with its tasks, members and
// dashboard, plus flags for in-flight work, errors and connectivity.
//
// Each field has one writer. The core writes project selection, the
// reconciler and mutation pipeline write collections, the connection
// observer writes connectivity and the filter operation writes the filter.
// Everyone reads.
//
// Per-project writes take an Epoch. A write whose epoch is no longer
// current is discarded, so a reload that started for project A can never
// overwrite state loaded for project B.
package store

import (
	"sync"
	"time"

	"github.com/steveyegge/projectsync/internal/model"
)

// Epoch identifies one selection of one project.
type Epoch struct {
	ProjectID string
	Gen       uint64
}

// Valid reports whether e refers to a selected project.
func (e Epoch) Valid() bool {
	return e.ProjectID != ""
}

// Change names the field a subscriber is being told about.
type Change int

const (
	ChangeProjects Change = iota
	ChangeProject
	ChangeTasks
	ChangeMembers
	ChangeDashboard
	ChangeSuggestions
	ChangeLoading
	ChangeMutating
	ChangeError
	ChangeConnection
	ChangeFilter
	ChangeRefresh
)

// Store holds client state. The zero value is not usable; call New.
type Store struct {
	now func() time.Time

	mu          sync.RWMutex
	gen         uint64
	activeID    string
	projects    []model.Project
	project     *model.Project
	tasks       []model.Task
	members     []model.Member
	dashboard   *model.Dashboard
	suggestions []model.TaskInput
	loading     int
	mutating    int
	err         error
	connected   bool
	filter      model.TaskFilter
	refresh     uint64

	subsMu  sync.RWMutex
	subs    map[int]func(Change)
	nextSub int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		now:    time.Now,
		filter: model.DefaultTaskFilter(),
		subs:   make(map[int]func(Change)),
	}
}

// Subscribe registers fn for every change and returns a function that
// removes it. fn runs on the writer's goroutine after the write.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify(changes ...Change) {
	s.subsMu.RLock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.RUnlock()

	for _, c := range changes {
		for _, fn := range subs {
			fn(c)
		}
	}
}

// update runs fn under the write lock if e is current and notifies on
// success.
func (s *Store) update(e Epoch, change Change, fn func()) bool {
	s.mu.Lock()
	if !s.currentLocked(e) {
		s.mu.Unlock()
		return false
	}
	fn()
	s.mu.Unlock()

	s.notify(change)
	return true
}

func (s *Store) currentLocked(e Epoch) bool {
	return e.Valid() && e.Gen == s.gen && e.ProjectID == s.activeID
}

// --- Project selection ---

// SelectProject starts a new epoch for projectID and clears every
// per-project field.
func (s *Store) SelectProject(projectID string) Epoch {
	s.mu.Lock()
	s.gen++
	s.activeID = projectID
	s.clearProjectLocked()
	e := Epoch{ProjectID: projectID, Gen: s.gen}
	s.mu.Unlock()

	s.notify(ChangeProject, ChangeTasks, ChangeMembers, ChangeDashboard, ChangeSuggestions, ChangeError)
	return e
}

// ClearProject deselects the current project.
func (s *Store) ClearProject() {
	s.mu.Lock()
	s.gen++
	s.activeID = ""
	s.clearProjectLocked()
	s.mu.Unlock()

	s.notify(ChangeProject, ChangeTasks, ChangeMembers, ChangeDashboard, ChangeSuggestions, ChangeError)
}

func (s *Store) clearProjectLocked() {
	s.project = nil
	s.tasks = nil
	s.members = nil
	s.dashboard = nil
	s.suggestions = nil
	s.err = nil
}

// Epoch returns the current epoch.
func (s *Store) Epoch() Epoch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Epoch{ProjectID: s.activeID, Gen: s.gen}
}

// Current reports whether e is still the current epoch.
func (s *Store) Current(e Epoch) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked(e)
}

// ActiveProjectID returns the selected project id, or "".
func (s *Store) ActiveProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// SetProject replaces the selected project record.
func (s *Store) SetProject(e Epoch, p *model.Project) bool {
	cp := *p
	return s.update(e, ChangeProject, func() {
		s.project = &cp
		s.upsertProjectLocked(cp)
	})
}

// Project returns a copy of the selected project record.
func (s *Store) Project() (model.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return model.Project{}, false
	}
	return *s.project, true
}

// --- Project list ---

// ReplaceProjects replaces the project list.
func (s *Store) ReplaceProjects(projects []model.Project) {
	s.mu.Lock()
	s.projects = append([]model.Project(nil), projects...)
	s.mu.Unlock()
	s.notify(ChangeProjects)
}

// UpsertProject inserts or replaces p in the project list, and the
// selected project record if p is selected.
func (s *Store) UpsertProject(p model.Project) {
	s.mu.Lock()
	s.upsertProjectLocked(p)
	selected := s.project != nil && s.project.ID == p.ID
	if selected {
		cp := p
		s.project = &cp
	}
	s.mu.Unlock()

	if selected {
		s.notify(ChangeProjects, ChangeProject)
		return
	}
	s.notify(ChangeProjects)
}

func (s *Store) upsertProjectLocked(p model.Project) {
	for i := range s.projects {
		if s.projects[i].ID == p.ID {
			s.projects[i] = p
			return
		}
	}
	s.projects = append(s.projects, p)
}

// RemoveProject drops id from the project list.
func (s *Store) RemoveProject(id string) {
	s.mu.Lock()
	out := s.projects[:0]
	for _, p := range s.projects {
		if p.ID != id {
			out = append(out, p)
		}
	}
	s.projects = out
	s.mu.Unlock()
	s.notify(ChangeProjects)
}

// Projects returns a copy of the project list.
func (s *Store) Projects() []model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Project(nil), s.projects...)
}

// --- Tasks ---

// ReplaceTasks replaces the task forest of the selected project.
func (s *Store) ReplaceTasks(e Epoch, tasks []model.Task) bool {
	cp := append([]model.Task(nil), tasks...)
	return s.update(e, ChangeTasks, func() { s.tasks = cp })
}

// UpsertTask inserts or replaces one task.
func (s *Store) UpsertTask(e Epoch, t model.Task) bool {
	return s.update(e, ChangeTasks, func() {
		for i := range s.tasks {
			if s.tasks[i].ID == t.ID {
				s.tasks[i] = t
				return
			}
		}
		s.tasks = append(s.tasks, t)
	})
}

// RemoveTask drops a task and all of its descendants.
func (s *Store) RemoveTask(e Epoch, id string) bool {
	return s.update(e, ChangeTasks, func() {
		gone := map[string]bool{id: true}
		for _, d := range model.Descendants(s.tasks, id) {
			gone[d] = true
		}
		out := make([]model.Task, 0, len(s.tasks))
		for _, t := range s.tasks {
			if !gone[t.ID] {
				out = append(out, t)
			}
		}
		s.tasks = out
	})
}

// Tasks returns a copy of the task list.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Task(nil), s.tasks...)
}

// Task looks up a task by id.
func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// FilteredTasks returns the tasks that pass the current filter.
func (s *Store) FilteredTasks() []model.Task {
	s.mu.RLock()
	tasks := append([]model.Task(nil), s.tasks...)
	f := s.filter
	s.mu.RUnlock()
	return f.Apply(tasks, s.now())
}

// --- Members ---

// ReplaceMembers replaces the member list of the selected project.
func (s *Store) ReplaceMembers(e Epoch, members []model.Member) bool {
	cp := append([]model.Member(nil), members...)
	return s.update(e, ChangeMembers, func() { s.members = cp })
}

// UpsertMember inserts or replaces one member.
func (s *Store) UpsertMember(e Epoch, m model.Member) bool {
	return s.update(e, ChangeMembers, func() {
		for i := range s.members {
			if s.members[i].ID == m.ID {
				s.members[i] = m
				return
			}
		}
		s.members = append(s.members, m)
	})
}

// RemoveMember drops one member.
func (s *Store) RemoveMember(e Epoch, id string) bool {
	return s.update(e, ChangeMembers, func() {
		out := make([]model.Member, 0, len(s.members))
		for _, m := range s.members {
			if m.ID != id {
				out = append(out, m)
			}
		}
		s.members = out
	})
}

// Members returns a copy of the member list.
func (s *Store) Members() []model.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Member(nil), s.members...)
}

// --- Dashboard ---

// SetDashboard replaces the dashboard of the selected project.
func (s *Store) SetDashboard(e Epoch, d *model.Dashboard) bool {
	cp := *d
	return s.update(e, ChangeDashboard, func() { s.dashboard = &cp })
}

// Dashboard returns a copy of the dashboard.
func (s *Store) Dashboard() (model.Dashboard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dashboard == nil {
		return model.Dashboard{}, false
	}
	return *s.dashboard, true
}

// --- Generated suggestions ---

// SetSuggestions holds generated task suggestions for review.
func (s *Store) SetSuggestions(e Epoch, in []model.TaskInput) bool {
	cp := append([]model.TaskInput(nil), in...)
	return s.update(e, ChangeSuggestions, func() { s.suggestions = cp })
}

// Suggestions returns the pending generated suggestions.
func (s *Store) Suggestions() []model.TaskInput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TaskInput(nil), s.suggestions...)
}

// --- Flags ---

// BeginLoad marks a project load as in progress.
func (s *Store) BeginLoad() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	s.notify(ChangeLoading)
}

// EndLoad balances BeginLoad.
func (s *Store) EndLoad() {
	s.mu.Lock()
	if s.loading > 0 {
		s.loading--
	}
	s.mu.Unlock()
	s.notify(ChangeLoading)
}

// Loading reports whether a project load is in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// BeginMutation marks a mutation as in flight.
func (s *Store) BeginMutation() {
	s.mu.Lock()
	s.mutating++
	s.mu.Unlock()
	s.notify(ChangeMutating)
}

// EndMutation balances BeginMutation.
func (s *Store) EndMutation() {
	s.mu.Lock()
	if s.mutating > 0 {
		s.mutating--
	}
	s.mu.Unlock()
	s.notify(ChangeMutating)
}

// Mutating reports whether any mutation is in flight.
func (s *Store) Mutating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mutating > 0
}

// SetError records the last user-visible failure; nil clears it.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.notify(ChangeError)
}

// Err returns the last recorded failure.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// SetSocketConnected records whether the channel is Connected.
func (s *Store) SetSocketConnected(connected bool) {
	s.mu.Lock()
	changed := s.connected != connected
	s.connected = connected
	s.mu.Unlock()
	if changed {
		s.notify(ChangeConnection)
	}
}

// SocketConnected reports whether the channel is Connected.
func (s *Store) SocketConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetFilter replaces the task filter. Empty fields mean "all".
func (s *Store) SetFilter(f model.TaskFilter) {
	s.mu.Lock()
	s.filter = f.Normalize()
	s.mu.Unlock()
	s.notify(ChangeFilter)
}

// Filter returns the current task filter.
func (s *Store) Filter() model.TaskFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// ForceRefresh bumps the refresh counter. The project loader observes
// ChangeRefresh and reloads the selected project.
func (s *Store) ForceRefresh() uint64 {
	s.mu.Lock()
	s.refresh++
	n := s.refresh
	s.mu.Unlock()
	s.notify(ChangeRefresh)
	return n
}

// RefreshCount returns the refresh counter.
func (s *Store) RefreshCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}
