package client

import (
	"sync"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

// Bus is the typed listener registry for inbound wire events. Views
// register handlers on mount and tear everything down with RemoveAll on
// unmount; re-registering on every mount keeps the blanket removal safe.
type Bus struct {
	mu             sync.Mutex
	taskCreated    []func(board.Task)
	taskUpdated    []func(board.TaskPatch)
	taskDeleted    []func(taskID string)
	columnsUpdated []func(projectID string, cols []board.Column)
}

// NewBus creates an empty registry.
func NewBus() *Bus {
	return &Bus{}
}

// OnTaskCreated registers a listener for task:create events.
func (b *Bus) OnTaskCreated(fn func(board.Task)) {
	b.mu.Lock()
	b.taskCreated = append(b.taskCreated, fn)
	b.mu.Unlock()
}

// OnTaskUpdated registers a listener for task:update events.
func (b *Bus) OnTaskUpdated(fn func(board.TaskPatch)) {
	b.mu.Lock()
	b.taskUpdated = append(b.taskUpdated, fn)
	b.mu.Unlock()
}

// OnTaskDeleted registers a listener for task:delete events.
func (b *Bus) OnTaskDeleted(fn func(taskID string)) {
	b.mu.Lock()
	b.taskDeleted = append(b.taskDeleted, fn)
	b.mu.Unlock()
}

// OnColumnsUpdated registers a listener for columns:update events.
func (b *Bus) OnColumnsUpdated(fn func(projectID string, cols []board.Column)) {
	b.mu.Lock()
	b.columnsUpdated = append(b.columnsUpdated, fn)
	b.mu.Unlock()
}

// RemoveAll drops every registered listener. Idempotent.
func (b *Bus) RemoveAll() {
	b.mu.Lock()
	b.taskCreated = nil
	b.taskUpdated = nil
	b.taskDeleted = nil
	b.columnsUpdated = nil
	b.mu.Unlock()
}

// Dispatch routes a decoded wire message to the listeners registered for
// its kind. Join/leave messages are control frames the client never
// receives; they fall through to the no-op default.
func (b *Bus) Dispatch(msg board.Message) {
	switch m := msg.(type) {
	case board.TaskCreated:
		for _, fn := range b.snapshotTaskCreated() {
			fn(m.Task)
		}
	case board.TaskUpdated:
		for _, fn := range b.snapshotTaskUpdated() {
			fn(m.Patch)
		}
	case board.TaskDeleted:
		for _, fn := range b.snapshotTaskDeleted() {
			fn(m.TaskID)
		}
	case board.ColumnsUpdated:
		for _, fn := range b.snapshotColumnsUpdated() {
			fn(m.ProjectID, m.Columns)
		}
	}
}

func (b *Bus) snapshotTaskCreated() []func(board.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(board.Task){}, b.taskCreated...)
}

func (b *Bus) snapshotTaskUpdated() []func(board.TaskPatch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(board.TaskPatch){}, b.taskUpdated...)
}

func (b *Bus) snapshotTaskDeleted() []func(string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(string){}, b.taskDeleted...)
}

func (b *Bus) snapshotColumnsUpdated() []func(string, []board.Column) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]func(string, []board.Column){}, b.columnsUpdated...)
}
