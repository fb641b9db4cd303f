package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
	"github.com/pibolib/cs375-multi-dungeon/internal/world"
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the game loop.
type Session struct {
	ID   uint64
	conn *websocket.Conn

	// Resolved once at connect time, before the session reaches the game loop.
	Token    string
	Identity string
	IP       string

	state    atomic.Int32  // protocol.SessionState stored as int32
	pending  atomic.Int32  // world.Action, last-write-wins cell
	viewport atomic.Uint64 // client viewport, width<<32 | height

	InQueue  chan []byte // game loop reads frames from here
	OutQueue chan []byte // writer goroutine reads from here

	outBuf [][]byte // buffered frames, flushed once per tick (game loop only)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// Per-second frame rate limiter (readPump goroutine only, no lock needed)
	framesPerSec int   // max frames/sec (0 = unlimited)
	frameCount   int   // frames received this second
	frameResetAt int64 // unix second of last counter reset

	maxFrameBytes int64
	writeTimeout  time.Duration
	pongTimeout   time.Duration

	log *zap.Logger
}

// SessionConfig carries the per-connection limits from the network config.
type SessionConfig struct {
	InQueueSize     int
	OutQueueSize    int
	FramesPerSecond int
	MaxFrameBytes   int64
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
}

func NewSession(conn *websocket.Conn, id uint64, cfg SessionConfig, log *zap.Logger) *Session {
	s := &Session{
		ID:            id,
		conn:          conn,
		InQueue:       make(chan []byte, cfg.InQueueSize),
		OutQueue:      make(chan []byte, cfg.OutQueueSize),
		closeCh:       make(chan struct{}),
		framesPerSec:  cfg.FramesPerSecond,
		maxFrameBytes: cfg.MaxFrameBytes,
		writeTimeout:  cfg.WriteTimeout,
		pongTimeout:   cfg.PongTimeout,
		log:           log.With(zap.Uint64("session", id)),
	}
	if conn != nil {
		s.IP = conn.RemoteAddr().String()
	}
	s.state.Store(int32(protocol.StateJoining))
	s.viewport.Store(0)
	return s
}

func (s *Session) State() protocol.SessionState {
	return protocol.SessionState(s.state.Load())
}

func (s *Session) SetState(st protocol.SessionState) {
	s.state.Store(int32(st))
}

// SetAction overwrites the pending action cell. Actions arriving between
// ticks coalesce; only the latest survives.
func (s *Session) SetAction(a world.Action) {
	s.pending.Store(int32(a))
}

// TakeAction returns the pending action and resets the cell to none.
func (s *Session) TakeAction() world.Action {
	return world.Action(s.pending.Swap(int32(world.ActionNone)))
}

// SetViewport records the client-reported viewport size in pixels.
func (s *Session) SetViewport(width, height int) {
	s.viewport.Store(uint64(uint32(width))<<32 | uint64(uint32(height)))
}

// Viewport returns the last reported viewport, or (0,0) if never reported.
func (s *Session) Viewport() (width, height int) {
	v := s.viewport.Load()
	return int(uint32(v >> 32)), int(uint32(v))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readPump()
	go s.writePump()
}

// Send buffers a frame for sending. The frame is not written to the socket
// until FlushOutput is called at the end of the tick.
// Called only from the game loop goroutine — no lock needed on outBuf.
func (s *Session) Send(frame []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, frame)
}

// FlushOutput drains the output buffer to OutQueue for the writePump
// goroutine. Non-blocking: if OutQueue is full, the session is disconnected
// (backpressure — a slow consumer must not stall the tick).
func (s *Session) FlushOutput() {
	for _, frame := range s.outBuf {
		select {
		case s.OutQueue <- frame:
		default:
			s.log.Warn("output queue full, dropping slow connection")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close shuts down the session. Safe to call from any goroutine, any number
// of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(protocol.StateDisconnecting)
		close(s.closeCh)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readPump runs in its own goroutine. It reads frames from the WebSocket
// and pushes them onto InQueue for the game loop to consume.
func (s *Session) readPump() {
	defer s.Close()

	s.conn.SetReadLimit(s.maxFrameBytes)
	s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		// Per-second frame rate limiter
		if s.framesPerSec > 0 {
			now := time.Now().Unix()
			if now != s.frameResetAt {
				s.frameCount = 0
				s.frameResetAt = now
			}
			s.frameCount++
			if s.frameCount > s.framesPerSec {
				s.log.Warn("frame rate exceeded, dropping connection", zap.Int("fps", s.frameCount))
				return
			}
		}

		// Block until InQueue has space or the session closes. The readPump
		// goroutine is per-session, so this only stalls this client.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writePump runs in its own goroutine. It reads frames from OutQueue and
// writes them as text messages, pinging on idle to keep the read deadline
// alive on the peer.
func (s *Session) writePump() {
	defer s.Close()

	pingInterval := s.pongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.OutQueue:
			if !s.writeOneFrame(frame) {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeOneFrame(frame []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
