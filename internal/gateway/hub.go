package gateway

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

const sendBufferSize = 64

// member is one websocket connection's presence in the hub.
type member struct {
	connID string
	userID string
	send   chan board.Envelope
	room   string

	closeOnce sync.Once
}

func newMember(connID, userID string) *member {
	return &member{
		connID: connID,
		userID: userID,
		send:   make(chan board.Envelope, sendBufferSize),
	}
}

func (m *member) close() {
	m.closeOnce.Do(func() { close(m.send) })
}

// Hub is the in-process room registry: projectID -> set of members.
// Broadcast never blocks on a member; a member whose send buffer is full
// is disconnected so one slow reader cannot stall a room.
type Hub struct {
	logger *log.Logger

	mu      sync.Mutex
	rooms   map[string]map[*member]struct{}
	members map[string]*member // conn id -> member
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Hub{
		logger:  logger,
		rooms:   make(map[string]map[*member]struct{}),
		members: make(map[string]*member),
	}
}

// Register adds a connection to the hub, initially in no room.
func (h *Hub) Register(m *member) {
	h.mu.Lock()
	h.members[m.connID] = m
	h.mu.Unlock()
}

// Unregister removes a connection entirely, leaving any joined room.
func (h *Hub) Unregister(m *member) {
	h.mu.Lock()
	h.leaveLocked(m)
	delete(h.members, m.connID)
	h.mu.Unlock()
	m.close()
}

// Join moves the member into the given project room. Membership is
// exclusive: joining implies leaving the previous room, so a client that
// switched projects abruptly can never receive two rooms' broadcasts.
func (h *Hub) Join(m *member, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m.room == projectID {
		return
	}
	h.leaveLocked(m)
	room, ok := h.rooms[projectID]
	if !ok {
		room = make(map[*member]struct{})
		h.rooms[projectID] = room
	}
	room[m] = struct{}{}
	m.room = projectID
}

// Leave removes the member from projectID if it is currently joined to
// it. Leaving a room the member is not in is a no-op.
func (h *Hub) Leave(m *member, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m.room != projectID {
		return
	}
	h.leaveLocked(m)
}

func (h *Hub) leaveLocked(m *member) {
	if m.room == "" {
		return
	}
	if room, ok := h.rooms[m.room]; ok {
		delete(room, m)
		if len(room) == 0 {
			delete(h.rooms, m.room)
		}
	}
	m.room = ""
}

// Broadcast fans the envelope out to every member of its project room,
// skipping the originating connection. It returns the number of members
// the frame was queued for. Sends happen under the hub lock: a member's
// channel is only ever closed after it has been removed from its room
// under the same lock, so a concurrent disconnect cannot close a channel
// a broadcast is about to send on.
func (h *Hub) Broadcast(env board.Envelope) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for m := range h.rooms[env.ProjectID] {
		if m.connID == env.Origin {
			continue
		}
		select {
		case m.send <- env:
			delivered++
		default:
			h.logger.Warnf("gateway: dropping slow consumer conn=%s user=%s", m.connID, m.userID)
			h.leaveLocked(m)
			delete(h.members, m.connID)
			m.close()
		}
	}
	return delivered
}

// RoomOf returns the project room the member is currently joined to.
func (h *Hub) RoomOf(m *member) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return m.room
}

// RoomSize reports how many members the given project room has.
func (h *Hub) RoomSize(projectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[projectID])
}
