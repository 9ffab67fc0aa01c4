package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/jcarrell/galaxia/internal/config"
	"github.com/jcarrell/galaxia/internal/presence"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context, timeout time.Duration) error
}

// Server exposes the presence gateway over WebSocket, plus a health
// endpoint. It implements the lifecycle Service contract.
type Server struct {
	cfg     config.Config
	gateway *presence.Gateway
	health  HealthChecker
	logger  *zap.Logger
	http    *http.Server

	mu    sync.Mutex
	conns map[*Connection]struct{}
}

// NewServer creates the WebSocket server.
//
// Precondition: gateway must be fully wired (publisher set); health
// may be nil, in which case /healthz always reports ok.
// Postcondition: Returns a Server ready for Start.
func NewServer(cfg config.Config, gateway *presence.Gateway, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		gateway: gateway,
		health:  health,
		logger:  logger,
		conns:   make(map[*Connection]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP listener. It blocks until Stop is called or the
// listener fails.
//
// Postcondition: Returns nil on graceful shutdown, the listener error
// otherwise.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("websocket server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts down the listener, closes every live WebSocket
// connection, and disconnects every session. Hijacked connections are
// not covered by http.Shutdown, so they are closed explicitly;
// without that their upgrade goroutines would block until process
// exit.
//
// Postcondition: All sessions are disconnected and their rooms vacated.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}

	s.mu.Lock()
	open := make([]*Connection, 0, len(s.conns))
	for conn := range s.conns {
		open = append(open, conn)
	}
	s.mu.Unlock()
	for _, conn := range open {
		conn.Close(nil)
	}

	s.gateway.CloseAll(ctx)
}

// handleUpgrade authenticates the request, upgrades it to a WebSocket
// connection, and binds it to a new gateway session.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	accountID, err := VerifySessionToken(s.cfg.Server.SessionSecret, tokenFromRequest(r))
	if err != nil {
		s.logger.Warn("rejected unauthenticated connection",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	wsConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	connLogger := s.logger.With(zap.String("account_id", accountID))

	// The session is bound before Run starts the pumps, so the
	// handlers below never observe a nil session.
	var sess *presence.Session
	conn := NewConnection(r.Context(), wsConn, ConnectionConfig{
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		SendBuffer:   s.cfg.Presence.SendBuffer,
	}, func(ctx context.Context, raw []byte) {
		if err := s.gateway.HandleEvent(ctx, sess.ID(), raw); err != nil {
			connLogger.Debug("event rejected", zap.Error(err))
		}
	}, func(err error) {
		s.gateway.Disconnect(context.Background(), sess.ID())
	}, connLogger)

	sess = s.gateway.Connect(conn, accountID)
	connLogger.Info("session connected", zap.String("session_id", sess.ID()))

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	conn.Run()
	<-conn.Done()

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// handleHealth reports process and store health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Health(r.Context(), 2*time.Second); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
