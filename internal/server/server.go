package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	assistant "github.com/koscakluka/pixel-core/core"
	"github.com/koscakluka/pixel-core/core/events"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const scopeName = "github.com/koscakluka/pixel-core/internal/server"

// Assistant is what the control API drives.
type Assistant interface {
	State() assistant.State
	Muted() bool
	MuteBackgroundListening() bool
	Resume() bool
	ToggleMute() bool
	SubmitTypedCommand(ctx context.Context, text string) assistant.Reply
	Speak(text string) bool
	ClearHistory() error
	Subscribe(fn func(events.Event)) (remove func())
}

// Server is the local HTTP control API used by a GUI running next to the
// assistant: state, mute controls, typed commands and a websocket stream of
// assistant events.
type Server struct {
	assistant    Assistant
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	eventBuffer  int
	writeTimeout time.Duration
	pingInterval time.Duration
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPingInterval sets how often idle event streams are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) { s.pingInterval = d }
}

func New(a Assistant, opts ...Option) *Server {
	s := &Server{
		assistant:    a,
		logger:       otelslog.NewLogger(scopeName),
		eventBuffer:  64,
		writeTimeout: 5 * time.Second,
		pingInterval: 30 * time.Second,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: localOrigin}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.logRequests())

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/state", s.handleState)
	engine.POST("/mute", s.handleMute)
	engine.POST("/resume", s.handleResume)
	engine.POST("/toggle", s.handleToggle)
	engine.POST("/command", s.handleCommand)
	engine.POST("/speak", s.handleSpeak)
	engine.DELETE("/history", s.handleClearHistory)
	engine.GET("/events", s.handleEvents)

	return otelhttp.NewHandler(engine, "pixel-api")
}

// Run serves the API on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Control API listening", "address", listener.Addr().String())
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control API stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down control API: %w", err)
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Handled request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// localOrigin only lets pages served from this machine open the event
// stream. Clients that send no Origin, like native GUIs, are allowed.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
