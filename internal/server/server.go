// Package server wires the event bus, the active source, and the HTTP
// surface into one runnable service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/midi-monitor/backend/api/handlers"
	"github.com/midi-monitor/backend/internal/bus"
	"github.com/midi-monitor/backend/internal/registry"
	"github.com/midi-monitor/backend/internal/source"
	"github.com/midi-monitor/backend/internal/ws"
)

const (
	// Addr is the fixed listen address the paired frontend expects.
	Addr = "0.0.0.0:3000"

	// UIOrigin is the only browser origin allowed to call the service.
	UIOrigin = "http://localhost:3001"

	shutdownTimeout = 5 * time.Second
)

// Server owns the event bus, the active source, and the HTTP listener.
type Server struct {
	addr      string
	origin    string
	log       *zap.Logger
	bus       *bus.Bus
	registry  *registry.Registry
	listPorts func() []string
	hwOpts    []source.HardwareOption
	synthOpts []source.SyntheticOption
}

// Option configures a Server.
type Option func(*Server)

// WithAddr overrides the listen address. Tests bind to an ephemeral port.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithPortLister replaces the driver-backed port enumeration.
func WithPortLister(list func() []string) Option {
	return func(s *Server) {
		s.listPorts = list
	}
}

// WithHardwareOptions forwards options to the hardware source.
func WithHardwareOptions(opts ...source.HardwareOption) Option {
	return func(s *Server) {
		s.hwOpts = opts
	}
}

// WithSyntheticOptions forwards options to the synthetic source.
func WithSyntheticOptions(opts ...source.SyntheticOption) Option {
	return func(s *Server) {
		s.synthOpts = opts
	}
}

// New creates a Server. reg may be nil, which disables port history
// persistence.
func New(reg *registry.Registry, log *zap.Logger, opts ...Option) *Server {
	s := &Server{
		addr:      Addr,
		origin:    UIOrigin,
		log:       log,
		bus:       bus.New(bus.DefaultCapacity),
		registry:  reg,
		listPorts: source.ListPorts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the source and the HTTP listener and blocks until ctx is
// cancelled or either of them fails. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	s.recordPorts(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runSource(gctx) })
	g.Go(func() error { return s.runHTTP(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runSource prefers a hardware device and falls back to the synthetic
// scale when none can be opened.
func (s *Server) runSource(ctx context.Context) error {
	hw := source.NewHardware(s.bus, s.log.Named("hardware"), s.hwOpts...)
	err := hw.Start()
	if err == nil {
		defer hw.Close()
		<-ctx.Done()
		return ctx.Err()
	}

	if errors.Is(err, source.ErrNoDevice) {
		s.log.Info("no MIDI input devices found, falling back to synthetic source")
	} else {
		s.log.Warn("failed to open MIDI input, falling back to synthetic source", zap.Error(err))
	}

	return source.NewSynthetic(s.bus, s.log.Named("synthetic"), s.synthOpts...).Run(ctx)
}

// runHTTP serves the API until ctx is cancelled, then drains connections
// within the shutdown timeout.
func (s *Server) runHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.router(ctx),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http server shutdown incomplete", zap.Error(err))
	}
	return ctx.Err()
}

// router assembles the gin engine. ctx is handed to the stream handler so
// open WebSocket sessions end with the server.
func (s *Server) router(ctx context.Context) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(s.origin))

	handlers.NewHealthHandler().RegisterRoutes(r)

	stream := ws.NewHandler(s.bus, s.origin, s.log.Named("ws"))
	handlers.NewWebSocketHandler(stream, s.log.Named("http")).RegisterRoutes(ctx, r)

	return r
}

// corsMiddleware admits only the paired UI: one origin, the GET method,
// and the content-type header.
func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Header.Get("Origin") == origin {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// recordPorts stores a sighting for every currently connected input port.
func (s *Server) recordPorts(ctx context.Context) {
	if s.registry == nil {
		return
	}

	now := time.Now()
	for _, name := range s.listPorts() {
		if err := s.registry.RecordSighting(ctx, name, now); err != nil {
			s.log.Warn("failed to record port sighting",
				zap.String("port", name),
				zap.Error(err))
		}
	}
}
