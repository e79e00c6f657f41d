package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/midi-monitor/backend/internal/bus"
)

const (
	// Time allowed to write an event frame to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Session streams bus events to one WebSocket client. It lives from the
// upgrade until either side closes the connection or the server shuts
// down; there is no idle timeout.
type Session struct {
	id   string
	conn *websocket.Conn
	sub  *bus.Subscription
	log  *zap.Logger
}

// NewSession wraps an upgraded connection and a fresh bus subscription.
func NewSession(conn *websocket.Conn, sub *bus.Subscription, log *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:   id,
		conn: conn,
		sub:  sub,
		log:  log.With(zap.String("session_id", id)),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run drives both directions of the session until the client disconnects,
// a write fails, or ctx is cancelled. Whichever side finishes first takes
// the whole session down. The subscription and the connection are released
// before Run returns.
func (s *Session) Run(ctx context.Context) {
	defer s.sub.Close()
	defer s.conn.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.forwardEvents(gctx) })
	g.Go(func() error { return s.drainClient() })
	g.Go(func() error {
		// drainClient blocks in ReadMessage; closing the connection is
		// the only way to unblock it when the other side finishes first.
		<-gctx.Done()
		s.conn.Close()
		return gctx.Err()
	})

	err := g.Wait()
	switch {
	case ctx.Err() != nil:
		s.log.Info("session closed", zap.String("reason", "shutdown"))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		s.log.Info("session closed", zap.String("reason", "client disconnected"))
	default:
		s.log.Warn("session ended", zap.Error(err))
	}
}

// forwardEvents pumps bus events to the client as JSON text frames. A
// lagging subscription is logged and resumed; a failed write ends the
// session.
func (s *Session) forwardEvents(ctx context.Context) error {
	for {
		ev, err := s.sub.Receive(ctx)
		if err != nil {
			var lagged *bus.LaggedError
			if errors.As(err, &lagged) {
				s.log.Warn("client lagging, events dropped", zap.Uint64("missed", lagged.Missed))
				continue
			}
			return err
		}

		data, err := json.Marshal(NewMessage(ev))
		if err != nil {
			return err
		}

		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
	}
}

// drainClient reads frames from the client so close handshakes are
// processed. Incoming text is accepted and ignored; the stream is one-way.
func (s *Session) drainClient() error {
	s.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		s.log.Debug("ignoring client message", zap.Int("bytes", len(data)))
	}
}
