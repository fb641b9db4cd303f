package net

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Resolver turns a session token into an identity. Implemented by the
// Postgres-backed session repository and by the in-memory map used in
// development.
type Resolver interface {
	Resolve(ctx context.Context, token string) (identity string, ok bool)
}

// Server upgrades HTTP requests to WebSocket sessions. New sessions are
// handed to the game loop via a channel; the game loop owns all further
// session lifecycle.
type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	resolver   Resolver
	sessCfg    SessionConfig

	nextID      atomic.Uint64
	newConns    chan *Session
	deadCh      chan uint64 // session IDs of dead sessions
	allowGuests bool

	log *zap.Logger
}

type ServerConfig struct {
	BindAddress      string
	HandshakeTimeout time.Duration
	AllowGuests      bool
	Session          SessionConfig
}

func NewServer(cfg ServerConfig, resolver Resolver, log *zap.Logger) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		resolver:    resolver,
		sessCfg:     cfg.Session,
		newConns:    make(chan *Session, 64),
		deadCh:      make(chan uint64, 64),
		allowGuests: cfg.AllowGuests,
		log:         log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpServer = &http.Server{
		Addr:    cfg.BindAddress,
		Handler: mux,
	}
	return s
}

// ListenAndServe blocks serving WebSocket upgrades until Shutdown.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// handleWS resolves the session token, upgrades the connection, and hands
// the session to the game loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := clientToken(r)

	identity, ok := "", false
	if token != "" && s.resolver != nil {
		identity, ok = s.resolver.Resolve(r.Context(), token)
	}
	if !ok && !s.allowGuests {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("upgrade failed", zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, s.sessCfg, s.log)
	sess.Token = token
	sess.Identity = identity // empty = guest, assigned by the game loop
	sess.Start()

	s.log.Info("client connected",
		zap.Uint64("session", id),
		zap.String("identity", identity),
		zap.String("ip", sess.IP),
	)

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("connection queue full, rejecting new connection")
		sess.Close()
	}
}

// clientToken extracts the session token from the query string or cookie.
func clientToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting new connections and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
