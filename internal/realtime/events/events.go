// Package events defines the named events exchanged over a project channel.
//
// On the wire every event is an Envelope carrying the event name and a JSON
// payload. In process every event is one of the concrete variant types below,
// all implementing Event, so consumers can switch over them exhaustively.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Name identifies an event on the wire.
type Name string

const (
	// NameUserJoined announces that a user started viewing the project
	NameUserJoined Name = "user_joined"

	// NameUserLeft announces that a user stopped viewing the project
	NameUserLeft Name = "user_left"

	// NameTaskUpdate indicates a task's fields changed
	NameTaskUpdate Name = "task_update"

	// NameTaskAssigned indicates a task's assignees changed
	NameTaskAssigned Name = "task_assigned"

	// NameNewComment indicates a comment was added to a task
	NameNewComment Name = "new_comment"

	// NameNewTask indicates one or more tasks were created
	NameNewTask Name = "new_task"

	// NameTaskDeleted indicates a task (and its subtasks) was deleted
	NameTaskDeleted Name = "task_deleted"

	// NameStatusChange indicates a task moved to another status
	NameStatusChange Name = "status_change"

	// NameProjectUpdate indicates the project record changed
	NameProjectUpdate Name = "project_update"

	// NameMemberAdded indicates a member joined the project
	NameMemberAdded Name = "member_added"

	// NameMemberRemoved indicates a member was removed from the project
	NameMemberRemoved Name = "member_removed"

	// NameMemberRoleUpdated indicates a member's role changed
	NameMemberRoleUpdated Name = "member_role_updated"
)

// ErrUnknownEvent is returned by Decode for names outside the catalogue.
var ErrUnknownEvent = errors.New("unknown event")

// Envelope is the wire form of an event.
type Envelope struct {
	Event     Name            `json:"event"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event is implemented by every event variant.
type Event interface {
	EventName() Name
	isEvent()
}

// UserJoined is sent by the channel server when a user opens the project.
type UserJoined struct {
	UserID string `json:"userId"`
}

// UserLeft is sent by the channel server when a user's last channel closes.
type UserLeft struct {
	UserID string `json:"userId"`
}

// TaskUpdated carries the changed task, if known.
type TaskUpdated struct {
	TaskID string `json:"taskId,omitempty"`
}

// TaskAssigned carries the task and its new assignees.
type TaskAssigned struct {
	TaskID    string   `json:"taskId,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// NewComment carries the commented task.
type NewComment struct {
	TaskID    string `json:"taskId,omitempty"`
	CommentID string `json:"commentId,omitempty"`
}

// NewTask carries the created task. Count is set when several tasks were
// created at once.
type NewTask struct {
	TaskID   string `json:"taskId,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// TaskDeleted carries the deleted task.
type TaskDeleted struct {
	TaskID string `json:"taskId,omitempty"`
}

// StatusChanged carries the task and its new status.
type StatusChanged struct {
	TaskID string `json:"taskId,omitempty"`
	Status string `json:"status"`
}

// ProjectUpdated carries the changed project.
type ProjectUpdated struct {
	ProjectID string `json:"projectId"`
}

// MemberAdded carries the project and the invited email.
type MemberAdded struct {
	ProjectID string `json:"projectId"`
	Email     string `json:"email"`
}

// MemberRemoved carries the project and the removed member.
type MemberRemoved struct {
	ProjectID string `json:"projectId"`
	MemberID  string `json:"memberId"`
}

// MemberRoleUpdated carries the project, the member and the new role.
type MemberRoleUpdated struct {
	ProjectID string `json:"projectId"`
	MemberID  string `json:"memberId"`
	Role      string `json:"role"`
}

func (UserJoined) EventName() Name        { return NameUserJoined }
func (UserLeft) EventName() Name          { return NameUserLeft }
func (TaskUpdated) EventName() Name       { return NameTaskUpdate }
func (TaskAssigned) EventName() Name      { return NameTaskAssigned }
func (NewComment) EventName() Name        { return NameNewComment }
func (NewTask) EventName() Name           { return NameNewTask }
func (TaskDeleted) EventName() Name       { return NameTaskDeleted }
func (StatusChanged) EventName() Name     { return NameStatusChange }
func (ProjectUpdated) EventName() Name    { return NameProjectUpdate }
func (MemberAdded) EventName() Name       { return NameMemberAdded }
func (MemberRemoved) EventName() Name     { return NameMemberRemoved }
func (MemberRoleUpdated) EventName() Name { return NameMemberRoleUpdated }

func (UserJoined) isEvent()        {}
func (UserLeft) isEvent()          {}
func (TaskUpdated) isEvent()       {}
func (TaskAssigned) isEvent()      {}
func (NewComment) isEvent()        {}
func (NewTask) isEvent()           {}
func (TaskDeleted) isEvent()       {}
func (StatusChanged) isEvent()     {}
func (ProjectUpdated) isEvent()    {}
func (MemberAdded) isEvent()       {}
func (MemberRemoved) isEvent()     {}
func (MemberRoleUpdated) isEvent() {}

// All returns every event name in the catalogue.
func All() []Name {
	return []Name{
		NameUserJoined,
		NameUserLeft,
		NameTaskUpdate,
		NameTaskAssigned,
		NameNewComment,
		NameNewTask,
		NameTaskDeleted,
		NameStatusChange,
		NameProjectUpdate,
		NameMemberAdded,
		NameMemberRemoved,
		NameMemberRoleUpdated,
	}
}

// Known reports whether n is in the catalogue.
func Known(n Name) bool {
	for _, k := range All() {
		if k == n {
			return true
		}
	}
	return false
}

// Encode wraps ev in an Envelope stamped with sender and the current time.
func Encode(sender string, ev Event) (Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s: %w", ev.EventName(), err)
	}
	return Envelope{
		Event:     ev.EventName(),
		Sender:    sender,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// Decode turns an Envelope into its typed variant.
func Decode(env Envelope) (Event, error) {
	var ev Event
	switch env.Event {
	case NameUserJoined:
		ev = &UserJoined{}
	case NameUserLeft:
		ev = &UserLeft{}
	case NameTaskUpdate:
		ev = &TaskUpdated{}
	case NameTaskAssigned:
		ev = &TaskAssigned{}
	case NameNewComment:
		ev = &NewComment{}
	case NameNewTask:
		ev = &NewTask{}
	case NameTaskDeleted:
		ev = &TaskDeleted{}
	case NameStatusChange:
		ev = &StatusChanged{}
	case NameProjectUpdate:
		ev = &ProjectUpdated{}
	case NameMemberAdded:
		ev = &MemberAdded{}
	case NameMemberRemoved:
		ev = &MemberRemoved{}
	case NameMemberRoleUpdated:
		ev = &MemberRoleUpdated{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", env.Event, err)
		}
	}
	return deref(ev), nil
}

// deref returns the value form of a decoded variant so that consumers only
// ever see value types.
func deref(ev Event) Event {
	switch e := ev.(type) {
	case *UserJoined:
		return *e
	case *UserLeft:
		return *e
	case *TaskUpdated:
		return *e
	case *TaskAssigned:
		return *e
	case *NewComment:
		return *e
	case *NewTask:
		return *e
	case *TaskDeleted:
		return *e
	case *StatusChanged:
		return *e
	case *ProjectUpdated:
		return *e
	case *MemberAdded:
		return *e
	case *MemberRemoved:
		return *e
	case *MemberRoleUpdated:
		return *e
	}
	return ev
}
