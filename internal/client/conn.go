package client

import (
	"context"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

// Conn owns the shared bidirectional connection to the sync gateway. It
// is constructed explicitly and passed by reference to every consumer;
// lifecycle is Open -> [join/leave rooms, emit]* -> Close, with
// RemoveAllListeners called by each view on teardown.
//
// Transport failure is surfaced only through Connected: no outbound
// queue is kept, emissions while disconnected are dropped, and recovery
// is the next full REST reload after a successful reopen.
type Conn struct {
	gatewayURL string
	logger     *log.Logger
	bus        *Bus

	mu     sync.Mutex // guards ws, open/close transitions and writes
	ws     *websocket.Conn
	readWG sync.WaitGroup

	roomMu sync.Mutex
	room   string // currently joined project room, "" when none

	connected bool
	connMu    sync.Mutex
}

// NewConn creates a connection manager targeting the gateway websocket
// endpoint (ws:// or wss:// URL).
func NewConn(gatewayURL string, logger *log.Logger) *Conn {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Conn{gatewayURL: gatewayURL, logger: logger, bus: NewBus()}
}

// Bus exposes the typed listener registry backing this connection.
func (c *Conn) Bus() *Bus { return c.bus }

// Open establishes the connection authenticated with the bearer token.
// It is idempotent: an already-open connection is kept. A missing token
// leaves the manager disconnected without error; callers observe the
// state through Connected.
func (c *Conn) Open(ctx context.Context, token string) error {
	if token == "" {
		c.logger.Debug("sync: no token, staying disconnected")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws != nil {
		return nil
	}

	u, err := url.Parse(c.gatewayURL)
	if err != nil {
		return err
	}
	q := u.Query()
	// Browsers cannot set headers on websocket handshakes, so the token
	// rides in the query string; the gateway accepts either form.
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.logger.Debugf("sync: dial failed: %v", err)
		return err
	}
	c.ws = ws
	c.setConnected(true)

	c.readWG.Add(1)
	go c.readLoop(ws)
	return nil
}

// Connected reports whether the transport is currently up.
func (c *Conn) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected
}

func (c *Conn) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// JoinProject subscribes the connection to a project's broadcast room.
// At most one room is active at a time: joining implicitly leaves the
// previous room, so an abrupt project switch cannot leave the client
// subscribed to two rooms' broadcasts. The gateway enforces the same
// rule as a backstop.
func (c *Conn) JoinProject(projectID string) {
	c.roomMu.Lock()
	prev := c.room
	c.room = projectID
	c.roomMu.Unlock()
	if prev != "" && prev != projectID {
		c.emit(board.EventProjectLeave, board.LeaveProject{ProjectID: prev})
	}
	c.emit(board.EventProjectJoin, board.JoinProject{ProjectID: projectID})
}

// LeaveProject unsubscribes the connection from a project's room.
func (c *Conn) LeaveProject(projectID string) {
	c.roomMu.Lock()
	if c.room == projectID {
		c.room = ""
	}
	c.roomMu.Unlock()
	c.emit(board.EventProjectLeave, board.LeaveProject{ProjectID: projectID})
}

// Room returns the currently joined project room, if any.
func (c *Conn) Room() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.room
}

// EmitStatusChange sends a locally originated task:update upstream.
func (c *Conn) EmitStatusChange(taskID, status string) {
	c.emit(board.EventTaskUpdate, board.StatusChange{TaskID: taskID, Status: status})
}

func (c *Conn) emit(event string, payload any) {
	env, err := board.EncodeEnvelope(event, payload)
	if err != nil {
		c.logger.Errorf("sync: %v", err)
		return
	}

	c.mu.Lock()
	ws := c.ws
	if ws == nil {
		c.mu.Unlock()
		c.logger.Debugf("sync: dropped %s while disconnected", event)
		return
	}
	err = ws.WriteJSON(env)
	c.mu.Unlock()
	if err != nil {
		// Dropped on the floor; the next full reload reconciles.
		c.logger.Debugf("sync: emit %s failed: %v", event, err)
	}
}

// RemoveAllListeners clears every registered event listener. Each
// mounting view calls this on teardown so handlers do not accumulate
// across remounts.
func (c *Conn) RemoveAllListeners() {
	c.bus.RemoveAll()
}

// Close shuts the connection down and waits for the read loop to exit.
func (c *Conn) Close() {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
	c.readWG.Wait()
	c.setConnected(false)
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	defer c.readWG.Done()
	for {
		var env board.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			c.setConnected(false)
			c.mu.Lock()
			if c.ws == ws {
				c.ws = nil
			}
			c.mu.Unlock()
			c.logger.Debugf("sync: read loop ended: %v", err)
			return
		}
		msg, err := board.DecodeMessage(env)
		if err != nil {
			c.logger.Debugf("sync: ignoring frame: %v", err)
			continue
		}
		c.bus.Dispatch(msg)
	}
}
