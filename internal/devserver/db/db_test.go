package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/steveyegge/projectsync/internal/model"
)

// testDB opens a fresh database in a temp dir.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustProject(t *testing.T, db *DB, title string) *model.Project {
	t.Helper()
	p, err := db.CreateProject(context.Background(), model.ProjectInput{Title: title}, "owner")
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	return p
}

func TestOpenCreatesSchema(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"projects", "tasks", "members", "comments"} {
		var count int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}

	if err := db.InitSchema(); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}
}

func TestProjectCRUD(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := mustProject(t, db, "Launch")
	if p.Status != model.ProjectActive || p.Priority != model.PriorityMedium {
		t.Errorf("defaults = %q/%q, want active/medium", p.Status, p.Priority)
	}
	if p.OwnerID != "owner" {
		t.Errorf("OwnerID = %q, want owner", p.OwnerID)
	}

	members, err := db.ListMembers(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListMembers() failed: %v", err)
	}
	if len(members) != 1 || members[0].Role != model.RoleAdmin {
		t.Errorf("owner membership = %+v, want one Admin", members)
	}

	updated, err := db.UpdateProject(ctx, p.ID, model.ProjectInput{Title: "Launch v2", Status: model.ProjectOnHold})
	if err != nil {
		t.Fatalf("UpdateProject() failed: %v", err)
	}
	if updated.Title != "Launch v2" || updated.Status != model.ProjectOnHold {
		t.Errorf("updated = %+v", updated)
	}

	if err := db.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() failed: %v", err)
	}
	if _, err := db.GetProject(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject() after delete error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteProject(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteProject() error = %v, want ErrNotFound", err)
	}
}

func TestTaskForest(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Forest")

	root, err := db.CreateTask(ctx, p.ID, model.TaskInput{Title: "Root", Assignees: []string{"ann"}})
	if err != nil {
		t.Fatalf("CreateTask(root) failed: %v", err)
	}
	child, err := db.CreateTask(ctx, p.ID, model.TaskInput{Title: "Child", ParentID: root.ID})
	if err != nil {
		t.Fatalf("CreateTask(child) failed: %v", err)
	}
	if child.ParentID != root.ID {
		t.Errorf("child.ParentID = %q, want %q", child.ParentID, root.ID)
	}

	other := mustProject(t, db, "Other")
	if _, err := db.CreateTask(ctx, other.ID, model.TaskInput{Title: "Cross", ParentID: root.ID}); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-project parent error = %v, want ErrNotFound", err)
	}

	tasks, err := db.ListTasks(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListTasks() failed: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != root.ID {
		t.Fatalf("ListTasks() = %+v", tasks)
	}
	if len(tasks[0].Assignees) != 1 || tasks[0].Assignees[0] != "ann" {
		t.Errorf("assignees = %v, want [ann]", tasks[0].Assignees)
	}

	if err := db.DeleteTask(ctx, root.ID); err != nil {
		t.Fatalf("DeleteTask() failed: %v", err)
	}
	tasks, _ = db.ListTasks(ctx, p.ID)
	if len(tasks) != 0 {
		t.Errorf("subtask survived parent deletion: %+v", tasks)
	}
}

func TestUpdateAssignAndComment(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Work")

	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	task, err := db.CreateTask(ctx, p.ID, model.TaskInput{Title: "Write", DueDate: &due})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	if task.DueDate == nil || !task.DueDate.Equal(due) {
		t.Errorf("DueDate = %v, want %v", task.DueDate, due)
	}

	in := task.Input()
	in.Status = model.StatusDone
	updated, err := db.UpdateTask(ctx, task.ID, in)
	if err != nil {
		t.Fatalf("UpdateTask() failed: %v", err)
	}
	if updated.Status != model.StatusDone {
		t.Errorf("Status = %q, want done", updated.Status)
	}

	assigned, err := db.AssignTask(ctx, task.ID, []string{"bob", "cy"})
	if err != nil {
		t.Fatalf("AssignTask() failed: %v", err)
	}
	if len(assigned.Assignees) != 2 {
		t.Errorf("Assignees = %v", assigned.Assignees)
	}

	if _, err := db.AddComment(ctx, task.ID, "bob", "done?"); err != nil {
		t.Fatalf("AddComment() failed: %v", err)
	}
	got, _ := db.GetTask(ctx, task.ID)
	if got.CommentCount != 1 {
		t.Errorf("CommentCount = %d, want 1", got.CommentCount)
	}
	if _, err := db.AddComment(ctx, "missing", "bob", "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddComment(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := db.UpdateTask(ctx, "missing", in); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTask(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCreateTasksIsAtomic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Batch")

	_, err := db.CreateTasks(ctx, p.ID, []model.TaskInput{{Title: "ok"}, {Title: ""}})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("CreateTasks() error = %v, want ErrInvalidInput", err)
	}
	tasks, _ := db.ListTasks(ctx, p.ID)
	if len(tasks) != 0 {
		t.Errorf("partial batch persisted: %+v", tasks)
	}

	created, err := db.CreateTasks(ctx, p.ID, []model.TaskInput{{Title: "a"}, {Title: "b"}, {Title: "c"}})
	if err != nil {
		t.Fatalf("CreateTasks() failed: %v", err)
	}
	if len(created) != 3 || created[2].Title != "c" {
		t.Errorf("created = %+v", created)
	}
}

func TestMembers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := mustProject(t, db, "Team")

	m, err := db.AddMember(ctx, p.ID, "Dana@Example.com", "viewer")
	if err != nil {
		t.Fatalf("AddMember() failed: %v", err)
	}
	if m.Email != "dana@example.com" || m.UserID != "dana" || m.Role != model.RoleViewer {
		t.Errorf("member = %+v", m)
	}
	if _, err := db.AddMember(ctx, p.ID, "dana@example.com", model.RoleAdmin); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate AddMember() error = %v, want ErrConflict", err)
	}

	updated, err := db.UpdateMemberRole(ctx, p.ID, m.ID, model.RoleContributor)
	if err != nil {
		t.Fatalf("UpdateMemberRole() failed: %v", err)
	}
	if updated.Role != model.RoleContributor {
		t.Errorf("Role = %q, want Contributor", updated.Role)
	}

	if err := db.RemoveMember(ctx, p.ID, m.ID); err != nil {
		t.Fatalf("RemoveMember() failed: %v", err)
	}
	if err := db.RemoveMember(ctx, p.ID, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveMember() error = %v, want ErrNotFound", err)
	}
}

func TestDashboard(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }
	p := mustProject(t, db, "Metrics")

	past := now.Add(-48 * time.Hour)
	inputs := []model.TaskInput{
		{Title: "done", Status: model.StatusDone, Priority: model.PriorityHigh},
		{Title: "late", DueDate: &past},
		{Title: "fresh", Priority: model.PriorityHigh},
	}
	for _, in := range inputs {
		if _, err := db.CreateTask(ctx, p.ID, in); err != nil {
			t.Fatalf("CreateTask(%s) failed: %v", in.Title, err)
		}
	}

	d, err := db.Dashboard(ctx, p.ID)
	if err != nil {
		t.Fatalf("Dashboard() failed: %v", err)
	}
	if d.TotalTasks != 3 || d.CompletedTasks != 1 || d.OverdueTasks != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/1/1", d.TotalTasks, d.CompletedTasks, d.OverdueTasks)
	}
	if d.ByPriority[model.PriorityHigh] != 2 || d.ByStatus[model.StatusTodo] != 2 {
		t.Errorf("breakdown = %v / %v", d.ByPriority, d.ByStatus)
	}
	if d.MemberCount != 1 {
		t.Errorf("MemberCount = %d, want 1", d.MemberCount)
	}
}
