package client

import (
	"sync"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

// Origin tags every store action with where the mutation came from. Only
// locally originated status changes are eligible for outbound emission;
// remote-originated applies must never be re-broadcast.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

// ActionType enumerates the store's reducer actions.
type ActionType int

const (
	ActionSetTasks ActionType = iota
	ActionAddTask
	ActionUpdateTask
	ActionDeleteTask
	ActionSetColumns
)

// Action is one reducer input. Exactly one of Tasks/Task/Patch/TaskID/
// Columns is meaningful depending on Type.
type Action struct {
	Type    ActionType
	Origin  Origin
	Tasks   []board.Task
	Task    board.Task
	Patch   board.TaskPatch
	TaskID  string
	Columns []board.Column
}

// Store is the client-held cache of tasks and columns for one mounted
// view. It is a read-through, optimistically mutated mirror of the server
// state: rehydrated wholesale from a REST fetch, then kept live by
// reducer applications from UI callbacks and inbound wire events.
//
// Applications are serialized by a mutex, which stands in for the
// single-threaded event loop the reducer semantics assume. The store is a
// pure function of the action log; on conflicting fields the later
// application wins.
type Store struct {
	mu       sync.Mutex
	tasks    map[string]board.Task
	columns  []board.Column
	onChange func()
}

// NewStore creates an empty store. onChange, if non-nil, is invoked after
// every state-changing apply so the embedding view can re-render; it runs
// with the store unlocked.
func NewStore(onChange func()) *Store {
	return &Store{
		tasks:    make(map[string]board.Task),
		onChange: onChange,
	}
}

// Apply runs one reducer action against the cache.
func (s *Store) Apply(a Action) {
	s.mu.Lock()
	switch a.Type {
	case ActionSetTasks:
		s.tasks = make(map[string]board.Task, len(a.Tasks))
		for _, t := range a.Tasks {
			s.tasks[t.ID] = t
		}
	case ActionAddTask:
		// Last-write-wins upsert keeps the apply idempotent under
		// at-least-once delivery.
		s.tasks[a.Task.ID] = a.Task
	case ActionUpdateTask:
		t, ok := s.tasks[a.Patch.ID]
		if !ok {
			// Stale or out-of-room update; ignore rather than crash.
			s.mu.Unlock()
			return
		}
		a.Patch.Apply(&t)
		s.tasks[a.Patch.ID] = t
	case ActionDeleteTask:
		if _, ok := s.tasks[a.TaskID]; !ok {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, a.TaskID)
	case ActionSetColumns:
		cols := append([]board.Column(nil), a.Columns...)
		board.SortColumns(cols)
		s.columns = cols
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange()
	}
}

// Task returns the cached task with the given id.
func (s *Store) Task(id string) (board.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Tasks returns a snapshot of every cached task, in no particular order.
func (s *Store) Tasks() []board.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]board.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

// Columns returns the cached column set ordered left to right.
func (s *Store) Columns() []board.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]board.Column(nil), s.columns...)
}

// Len reports the number of cached tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
