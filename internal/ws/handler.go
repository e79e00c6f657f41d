package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/midi-monitor/backend/internal/bus"
)

// Handler upgrades HTTP requests and runs one Session per connection.
type Handler struct {
	bus      *bus.Bus
	log      *zap.Logger
	origin   string
	sessions *xsync.MapOf[string, *Session]
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler subscribing its sessions to b. Browser
// requests are admitted only from origin; requests without an Origin
// header (non-browser clients) are always admitted.
func NewHandler(b *bus.Bus, origin string, log *zap.Logger) *Handler {
	h := &Handler{
		bus:      b,
		log:      log,
		origin:   origin,
		sessions: xsync.NewMapOf[string, *Session](),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origin == h.origin
}

// HandleConnection upgrades the request and blocks until the session ends.
// ctx bounds the session's lifetime; cancelling it closes every open
// stream. The returned error is non-nil only when the upgrade itself
// failed, in which case the upgrader has already written the HTTP error.
func (h *Handler) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	session := NewSession(conn, h.bus.Subscribe(), h.log)
	h.sessions.Store(session.ID(), session)
	h.log.Info("client connected",
		zap.String("session_id", session.ID()),
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("subscribers", h.bus.Subscribers()))

	session.Run(ctx)

	h.sessions.Delete(session.ID())
	h.log.Info("client disconnected",
		zap.String("session_id", session.ID()),
		zap.Int("subscribers", h.bus.Subscribers()))
	return nil
}

// SessionCount returns the number of sessions currently streaming.
func (h *Handler) SessionCount() int {
	return h.sessions.Size()
}
