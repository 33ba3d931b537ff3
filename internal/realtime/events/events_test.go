package events

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_AllVariants(t *testing.T) {
	variants := []Event{
		UserJoined{UserID: "u1"},
		UserLeft{UserID: "u1"},
		TaskUpdated{TaskID: "t1"},
		TaskAssigned{TaskID: "t1", Assignees: []string{"u1", "u2"}},
		NewComment{TaskID: "t1", CommentID: "c1"},
		NewTask{TaskID: "t2", ParentID: "t1"},
		TaskDeleted{TaskID: "t1"},
		StatusChanged{TaskID: "t1", Status: "done"},
		ProjectUpdated{ProjectID: "p1"},
		MemberAdded{ProjectID: "p1", Email: "ada@example.com"},
		MemberRemoved{ProjectID: "p1", MemberID: "m1"},
		MemberRoleUpdated{ProjectID: "p1", MemberID: "m1", Role: "Admin"},
	}
	require.Len(t, variants, len(All()), "every catalogue entry has a variant")

	for _, ev := range variants {
		t.Run(string(ev.EventName()), func(t *testing.T) {
			env, err := Encode("client-a", ev)
			require.NoError(t, err)
			assert.Equal(t, ev.EventName(), env.Event)
			assert.Equal(t, "client-a", env.Sender)
			assert.False(t, env.Timestamp.IsZero())

			// Through the wire and back.
			raw, err := json.Marshal(env)
			require.NoError(t, err)
			var wire Envelope
			require.NoError(t, json.Unmarshal(raw, &wire))

			got, err := Decode(wire)
			require.NoError(t, err)
			if diff := cmp.Diff(ev, got); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_WireNames(t *testing.T) {
	raw := `{"event":"member_role_updated","data":{"projectId":"P","memberId":"M","role":"Admin"}}`
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	ev, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, MemberRoleUpdated{ProjectID: "P", MemberID: "M", Role: "Admin"}, ev)
}

func TestDecode_EmptyPayload(t *testing.T) {
	ev, err := Decode(Envelope{Event: NameTaskUpdate})
	require.NoError(t, err)
	assert.Equal(t, TaskUpdated{}, ev)

	ev, err = Decode(Envelope{Event: NameNewTask, Data: json.RawMessage("null")})
	require.NoError(t, err)
	assert.Equal(t, NewTask{}, ev)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(Envelope{Event: "task_exploded"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = Decode(Envelope{Event: NameStatusChange, Data: json.RawMessage(`{"status":42}`)})
	assert.Error(t, err)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(NameUserLeft))
	assert.False(t, Known("ping"))
}
