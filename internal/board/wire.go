package board

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Wire event names. These are the full vocabulary of the sync protocol;
// anything else on the wire is rejected by DecodeMessage.
const (
	EventProjectJoin   = "project:join"
	EventProjectLeave  = "project:leave"
	EventTaskCreate    = "task:create"
	EventTaskUpdate    = "task:update"
	EventTaskDelete    = "task:delete"
	EventColumnsUpdate = "columns:update"
)

// ErrUnknownEvent is returned for envelopes whose event name is not part
// of the protocol.
var ErrUnknownEvent = errors.New("unknown wire event")

// Envelope is the framing shared by every wire message. ID, ProjectID and
// Origin are stamped by the gateway on broadcast frames: ID deduplicates
// at-least-once delivery between gateway instances, Origin identifies the
// connection the event came from so it is not echoed back.
type Envelope struct {
	Event     string          `json:"event"`
	ID        string          `json:"id,omitempty"`
	ProjectID string          `json:"projectId,omitempty"`
	Origin    string          `json:"origin,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Message is the closed union of decoded wire messages.
type Message interface{ isMessage() }

// JoinProject asks the gateway to add the connection to a project room.
type JoinProject struct {
	ProjectID string `json:"projectId"`
}

// LeaveProject asks the gateway to remove the connection from a room.
type LeaveProject struct {
	ProjectID string `json:"projectId"`
}

// TaskCreated announces a new task to room members.
type TaskCreated struct {
	Task Task
}

// TaskUpdated carries a task change. Inbound frames published by the CRUD
// service hold the full task; frames relayed from a peer's drag gesture
// hold only the id and status. Both decode into the patch.
type TaskUpdated struct {
	Patch TaskPatch
}

// TaskDeleted announces removal of a task.
type TaskDeleted struct {
	TaskID string `json:"taskId"`
}

// ColumnsUpdated replaces a project's column set wholesale.
type ColumnsUpdated struct {
	ProjectID string   `json:"projectId"`
	Columns   []Column `json:"columns"`
}

// StatusChange is the outbound payload of a locally originated task:update.
type StatusChange struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

func (JoinProject) isMessage()    {}
func (LeaveProject) isMessage()   {}
func (TaskCreated) isMessage()    {}
func (TaskUpdated) isMessage()    {}
func (TaskDeleted) isMessage()    {}
func (ColumnsUpdated) isMessage() {}

// DecodeMessage parses an envelope's payload into its concrete message
// type based on the event name.
func DecodeMessage(env Envelope) (Message, error) {
	switch env.Event {
	case EventProjectJoin:
		var m JoinProject
		if err := sonic.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return m, nil
	case EventProjectLeave:
		var m LeaveProject
		if err := sonic.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return m, nil
	case EventTaskCreate:
		var m TaskCreated
		if err := sonic.Unmarshal(env.Data, &m.Task); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return m, nil
	case EventTaskUpdate:
		var m TaskUpdated
		if err := sonic.Unmarshal(env.Data, &m.Patch); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return m, nil
	case EventTaskDelete:
		var m TaskDeleted
		if err := sonic.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return m, nil
	case EventColumnsUpdate:
		var m ColumnsUpdated
		if err := sonic.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

// EncodeEnvelope builds a wire envelope around the given payload.
func EncodeEnvelope(event string, payload any) (Envelope, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}
