package board

import (
	"errors"
	"testing"
)

func TestDecodeMessageKinds(t *testing.T) {
	tests := []struct {
		name  string
		env   Envelope
		check func(t *testing.T, msg Message)
	}{
		{
			name: "task create",
			env:  Envelope{Event: EventTaskCreate, Data: []byte(`{"id":"t1","title":"Ship it","status":"todo","projectId":"p1"}`)},
			check: func(t *testing.T, msg Message) {
				m, ok := msg.(TaskCreated)
				if !ok {
					t.Fatalf("wrong type %T", msg)
				}
				if m.Task.ID != "t1" || m.Task.Status != "todo" || m.Task.ProjectID != "p1" {
					t.Fatalf("bad payload: %+v", m.Task)
				}
			},
		},
		{
			name: "task update with full task decodes as patch",
			env:  Envelope{Event: EventTaskUpdate, Data: []byte(`{"id":"t1","title":"New","status":"done","priority":"high"}`)},
			check: func(t *testing.T, msg Message) {
				m, ok := msg.(TaskUpdated)
				if !ok {
					t.Fatalf("wrong type %T", msg)
				}
				if m.Patch.ID != "t1" || m.Patch.Status == nil || *m.Patch.Status != "done" {
					t.Fatalf("bad patch: %+v", m.Patch)
				}
				if m.Patch.Title == nil || *m.Patch.Title != "New" {
					t.Fatalf("full-task fields must decode into the patch: %+v", m.Patch)
				}
			},
		},
		{
			name: "task update with status only",
			env:  Envelope{Event: EventTaskUpdate, Data: []byte(`{"id":"t1","status":"done"}`)},
			check: func(t *testing.T, msg Message) {
				m := msg.(TaskUpdated)
				if m.Patch.Title != nil {
					t.Fatalf("absent fields must stay nil: %+v", m.Patch)
				}
			},
		},
		{
			name: "task delete",
			env:  Envelope{Event: EventTaskDelete, Data: []byte(`{"taskId":"t1"}`)},
			check: func(t *testing.T, msg Message) {
				if m := msg.(TaskDeleted); m.TaskID != "t1" {
					t.Fatalf("bad payload: %+v", m)
				}
			},
		},
		{
			name: "columns update",
			env:  Envelope{Event: EventColumnsUpdate, Data: []byte(`{"projectId":"p1","columns":[{"name":"todo","order":0},{"name":"done","order":1}]}`)},
			check: func(t *testing.T, msg Message) {
				m := msg.(ColumnsUpdated)
				if m.ProjectID != "p1" || len(m.Columns) != 2 {
					t.Fatalf("bad payload: %+v", m)
				}
			},
		},
		{
			name: "join",
			env:  Envelope{Event: EventProjectJoin, Data: []byte(`{"projectId":"p1"}`)},
			check: func(t *testing.T, msg Message) {
				if m := msg.(JoinProject); m.ProjectID != "p1" {
					t.Fatalf("bad payload: %+v", m)
				}
			},
		},
		{
			name: "leave",
			env:  Envelope{Event: EventProjectLeave, Data: []byte(`{"projectId":"p1"}`)},
			check: func(t *testing.T, msg Message) {
				if m := msg.(LeaveProject); m.ProjectID != "p1" {
					t.Fatalf("bad payload: %+v", m)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage(tt.env)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			tt.check(t, msg)
		})
	}
}

func TestDecodeMessageUnknownEvent(t *testing.T) {
	_, err := DecodeMessage(Envelope{Event: "task:rename", Data: []byte(`{}`)})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestEncodeEnvelopeRoundTrip(t *testing.T) {
	env, err := EncodeEnvelope(EventTaskUpdate, StatusChange{TaskID: "t1", Status: "done"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if env.Event != EventTaskUpdate {
		t.Fatalf("bad event %q", env.Event)
	}
	msg, err := DecodeMessage(env)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := msg.(TaskUpdated)
	if m.Patch.Status == nil || *m.Patch.Status != "done" {
		t.Fatalf("round trip lost the status: %+v", m.Patch)
	}
}
