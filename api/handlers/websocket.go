// Package handlers provides HTTP API request handlers.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/midi-monitor/backend/internal/ws"
)

// WebSocketHandler exposes the live event stream over WebSocket.
type WebSocketHandler struct {
	stream *ws.Handler
	log    *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(stream *ws.Handler, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		stream: stream,
		log:    log,
	}
}

// Stream returns the GET /ws handler. ctx bounds every accepted session:
// http.Server.Shutdown does not close hijacked connections, so cancelling
// ctx is what ends open streams.
func (h *WebSocketHandler) Stream(ctx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.stream.HandleConnection(ctx, c.Writer, c.Request); err != nil {
			// The upgrader has already written the handshake error response.
			h.log.Warn("websocket upgrade failed",
				zap.String("remote", c.Request.RemoteAddr),
				zap.Error(err))
		}
	}
}

// RegisterRoutes registers the stream route on the router.
func (h *WebSocketHandler) RegisterRoutes(ctx context.Context, r *gin.Engine) {
	r.GET("/ws", h.Stream(ctx))
}
