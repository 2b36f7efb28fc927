package gateway

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  8 * 1024,
	WriteBufferSize: 8 * 1024,
	// The handshake is authenticated by bearer token, not origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsReadLimit = 64 * 1024 // 64 KiB

// Register wires the gateway endpoints onto the given Echo instance.
func Register(e *echo.Echo, hub *Hub, fanout *Fanout, auth Authenticator, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.GET("/ws", handleWS(hub, fanout, auth, logger))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
}

func handleWS(hub *Hub, fanout *Fanout, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var userID string
		var err error
		if token := c.QueryParam("token"); token != "" {
			userID, err = auth.UserIDFromToken(token)
		} else {
			// Non-browser clients may still use the header form.
			userID, err = auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		}
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return c.String(http.StatusBadRequest, "websocket upgrade failed")
		}
		defer ws.Close()
		ws.SetReadLimit(wsReadLimit)

		m := newMember(uuid.NewString(), userID)
		hub.Register(m)
		defer hub.Unregister(m)

		logger.WithFields(log.Fields{"conn": m.connID, "user": userID}).Debug("gateway: connected")

		go writePump(ws, m)
		readLoop(c.Request().Context(), ws, m, hub, fanout, logger)
		return nil
	}
}

func writePump(ws *websocket.Conn, m *member) {
	for env := range m.send {
		if err := ws.WriteJSON(env); err != nil {
			// Reader side observes the broken conn and unregisters.
			return
		}
	}
	// Hub closed the send channel (slow consumer or shutdown).
	_ = ws.Close()
}

func readLoop(ctx context.Context, ws *websocket.Conn, m *member, hub *Hub, fanout *Fanout, logger *log.Logger) {
	for {
		var env board.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			logger.WithField("conn", m.connID).Debugf("gateway: read ended: %v", err)
			return
		}

		switch env.Event {
		case board.EventProjectJoin:
			var msg board.JoinProject
			if err := sonic.Unmarshal(env.Data, &msg); err != nil || msg.ProjectID == "" {
				continue
			}
			hub.Join(m, msg.ProjectID)
		case board.EventProjectLeave:
			var msg board.LeaveProject
			if err := sonic.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			hub.Leave(m, msg.ProjectID)
		case board.EventTaskUpdate:
			relayStatusChange(ctx, env, m, hub, fanout, logger)
		default:
			// Clients only ever send membership and status frames;
			// anything else is dropped.
			logger.WithField("conn", m.connID).Debugf("gateway: ignoring client event %q", env.Event)
		}
	}
}

// relayStatusChange turns a client's outbound {taskId, status} frame into
// a room-scoped patch broadcast, published through the events channel so
// every gateway instance delivers it.
func relayStatusChange(ctx context.Context, env board.Envelope, m *member, hub *Hub, fanout *Fanout, logger *log.Logger) {
	var sc board.StatusChange
	if err := sonic.Unmarshal(env.Data, &sc); err != nil || sc.TaskID == "" {
		return
	}
	room := hub.RoomOf(m)
	if room == "" {
		// Status changes outside a room have no audience.
		return
	}

	patch := board.TaskPatch{ID: sc.TaskID, Status: &sc.Status}
	data, err := sonic.Marshal(patch)
	if err != nil {
		logger.Errorf("gateway: encode patch: %v", err)
		return
	}
	out := board.Envelope{
		Event:     board.EventTaskUpdate,
		ID:        uuid.NewString(),
		ProjectID: room,
		Origin:    m.connID,
		Data:      data,
	}
	if err := fanout.Publish(ctx, out); err != nil {
		logger.Errorf("gateway: publish failed: %v", err)
	}
}
