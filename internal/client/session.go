package client

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

var (
	errNotMounted    = errors.New("session not mounted")
	errUnknownStatus = errors.New("status is not a column of the active board")
)

// Emitter is the slice of Conn the session's emission stage needs,
// split out so tests can observe outbound traffic.
type Emitter interface {
	EmitStatusChange(taskID, status string)
}

// SessionOptions tune a board session.
type SessionOptions struct {
	// DebounceWindow overrides the emission coalescing interval.
	// Zero means DefaultDebounceWindow.
	DebounceWindow time.Duration
	// Emitter overrides where guarded emissions go. Nil means the
	// session's Conn.
	Emitter Emitter
	Logger  *log.Logger
	// OnChange is invoked after every cache mutation (re-render hook).
	OnChange func()
}

// Session is one mounted board view's protocol participant. It owns the
// task/column cache for the view, wires inbound events into it, and runs
// the optimistic-update, debounce and loop-guard protocol between local
// UI gestures and the wire.
//
// Lifecycle: NewSession -> Mount -> [gestures, inbound events]* ->
// Unmount. A project switch is a fresh Mount on a fresh Session; the
// cache is replaced wholesale, never migrated.
type Session struct {
	conn    *Conn
	rest    TaskAPI
	store   *Store
	deb     *Debouncer
	emitter Emitter
	window  time.Duration
	logger  *log.Logger

	mu        sync.Mutex
	mounted   bool
	projectID string            // "" means client-scoped ("all projects") view
	baseline  map[string]string // task id -> status before the gesture began
	filter    Filter
	orgTasks  []board.Task // populated only for the assignee-subset view
}

// NewSession creates an unmounted session over the given connection and
// REST collaborator.
func NewSession(conn *Conn, rest TaskAPI, opts SessionOptions) *Session {
	window := opts.DebounceWindow
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Session{
		conn:     conn,
		rest:     rest,
		store:    NewStore(opts.OnChange),
		deb:      NewDebouncer(),
		window:   window,
		logger:   logger,
		baseline: make(map[string]string),
	}
	if opts.Emitter != nil {
		s.emitter = opts.Emitter
	} else {
		s.emitter = conn
	}
	return s
}

// Store exposes the session's task cache for rendering.
func (s *Session) Store() *Store { return s.store }

// ProjectID returns the active project scope, empty in all-projects mode.
func (s *Session) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// Mount hydrates the cache over REST and then attaches the realtime
// layer: joins the project room (when a project is selected) and
// registers the inbound event listeners. When the initial load fails the
// realtime layer is not started, so no event can arrive for a view that
// never initialized; the error is surfaced for the embedding UI to
// notify with.
func (s *Session) Mount(ctx context.Context, projectID string) error {
	tasks, err := s.rest.FetchTasks(ctx, projectID)
	if err != nil {
		return err
	}
	cols, err := s.rest.FetchColumns(ctx, projectID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.projectID = projectID
	s.mounted = true
	s.mu.Unlock()

	s.store.Apply(Action{Type: ActionSetTasks, Origin: OriginRemote, Tasks: tasks})
	s.store.Apply(Action{Type: ActionSetColumns, Origin: OriginRemote, Columns: cols})

	bus := s.conn.Bus()
	bus.OnTaskCreated(s.handleTaskCreated)
	bus.OnTaskUpdated(s.handleTaskUpdated)
	bus.OnTaskDeleted(s.handleTaskDeleted)
	bus.OnColumnsUpdated(s.handleColumnsUpdated)

	if projectID != "" {
		s.conn.JoinProject(projectID)
	}
	return nil
}

// Unmount tears the view down: pending debounced emissions are cancelled
// so nothing fires after the project context changed, the room is left,
// and every listener this view registered is removed.
func (s *Session) Unmount() {
	s.deb.Stop()

	s.mu.Lock()
	projectID := s.projectID
	mounted := s.mounted
	s.mounted = false
	s.baseline = make(map[string]string)
	s.mu.Unlock()

	if !mounted {
		return
	}
	if projectID != "" {
		s.conn.LeaveProject(projectID)
	}
	s.conn.RemoveAllListeners()
}

// MoveTask is the drag-and-drop path: the status change is applied to
// the cache immediately (optimistic) and a guarded, debounced emission
// is scheduled. Intermediate hover states within the window supersede
// each other so only the final status is transmitted, and a change back
// to the pre-gesture status produces no emission at all. The target
// status must name a column of the active board.
func (s *Session) MoveTask(taskID, status string) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return errNotMounted
	}
	s.mu.Unlock()

	if _, ok := board.ColumnNames(s.store.Columns())[status]; !ok {
		return errUnknownStatus
	}

	now := time.Now()
	return s.apply(Action{
		Type:   ActionUpdateTask,
		Origin: OriginLocal,
		Patch:  board.TaskPatch{ID: taskID, Status: &status, UpdatedAt: &now},
	})
}

// UpdateTask applies a locally originated partial edit. Non-status edits
// are not emitted over the socket; they reach peers through the CRUD
// service's own broadcast.
func (s *Session) UpdateTask(patch board.TaskPatch) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return errNotMounted
	}
	s.mu.Unlock()
	return s.apply(Action{Type: ActionUpdateTask, Origin: OriginLocal, Patch: patch})
}

// apply is the single funnel every mutation goes through. The emission
// stage inspects the action's provenance here, once, instead of each
// call site threading a skip flag: only local status changes schedule an
// outbound emission.
func (s *Session) apply(a Action) error {
	emit := a.Origin == OriginLocal &&
		a.Type == ActionUpdateTask &&
		a.Patch.Status != nil

	if emit {
		s.recordBaseline(a.Patch.ID)
	}

	s.store.Apply(a)

	if emit {
		taskID := a.Patch.ID
		s.deb.Schedule(debounceKey(taskID), s.window, func() {
			s.flushStatus(taskID)
		})
	}
	return nil
}

// recordBaseline captures the task's status as it was before the first
// local change of the gesture. Re-arms within the window keep the
// original baseline so A->B->A collapses to nothing.
func (s *Session) recordBaseline(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.baseline[taskID]; ok {
		return
	}
	if t, ok := s.store.Task(taskID); ok {
		s.baseline[taskID] = t.Status
	}
}

func (s *Session) flushStatus(taskID string) {
	s.mu.Lock()
	before, hadBaseline := s.baseline[taskID]
	delete(s.baseline, taskID)
	s.mu.Unlock()

	t, ok := s.store.Task(taskID)
	if !ok || !hadBaseline {
		return
	}
	if t.Status == before {
		// The gesture ended where it started; nothing to tell the server.
		return
	}
	s.emitter.EmitStatusChange(taskID, t.Status)
}

func debounceKey(taskID string) string { return "status:" + taskID }

// SetFilter replaces the ad hoc display filter.
func (s *Session) SetFilter(f Filter) {
	s.mu.Lock()
	s.filter = f
	if !f.NeedsOrgFetch() {
		s.orgTasks = nil
	}
	s.mu.Unlock()
}

// Visible produces the ordered task subset to render. In the
// assignee-subset mode the org-wide task set is fetched once per filter
// change and reconciled instead of the project cache; every other mode
// reconciles the cache directly.
func (s *Session) Visible(ctx context.Context) ([]board.Task, error) {
	s.mu.Lock()
	f := s.filter
	f.AllProjects = s.projectID == ""
	org := s.orgTasks
	s.mu.Unlock()

	if f.NeedsOrgFetch() {
		if org == nil {
			fetched, err := s.rest.FetchOrgTasks(ctx)
			if err != nil {
				return nil, err
			}
			s.mu.Lock()
			s.orgTasks = fetched
			s.mu.Unlock()
			org = fetched
		}
		return Reconcile(org, s.store.Columns(), f), nil
	}
	return Reconcile(s.store.Tasks(), s.store.Columns(), f), nil
}

func (s *Session) handleTaskCreated(t board.Task) {
	if s.ignoreProject(t.ProjectID) {
		return
	}
	_ = s.apply(Action{Type: ActionAddTask, Origin: OriginRemote, Task: t})
}

func (s *Session) handleTaskUpdated(p board.TaskPatch) {
	// Project scoping is enforced by cache membership: a server-scoped
	// cache never contains foreign tasks, so the merge no-ops on them.
	_ = s.apply(Action{Type: ActionUpdateTask, Origin: OriginRemote, Patch: p})
}

func (s *Session) handleTaskDeleted(taskID string) {
	_ = s.apply(Action{Type: ActionDeleteTask, Origin: OriginRemote, TaskID: taskID})
}

func (s *Session) handleColumnsUpdated(projectID string, cols []board.Column) {
	if s.ignoreProject(projectID) {
		return
	}
	_ = s.apply(Action{Type: ActionSetColumns, Origin: OriginRemote, Columns: cols})
}

// ignoreProject implements the server-scoped isolation rule: when a
// specific project is mounted, events tagged for any other project are
// dropped before they can touch the cache. Client-scoped sessions accept
// everything and leave scoping to the reconciler.
func (s *Session) ignoreProject(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return true
	}
	return s.projectID != "" && projectID != s.projectID
}
