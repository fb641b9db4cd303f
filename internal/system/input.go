package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/pibolib/cs375-multi-dungeon/internal/core/system"
	"github.com/pibolib/cs375-multi-dungeon/internal/handler"
	"github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
)

// InputSystem accepts new sessions, retires dead ones, and drains frame
// queues through the message registry. Phase 0 (Input).
type InputSystem struct {
	netServer  *net.Server
	registry   *protocol.Registry
	store      *net.SessionStore
	deps       *handler.Deps
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(
	netServer *net.Server,
	registry *protocol.Registry,
	store *net.SessionStore,
	deps *handler.Deps,
	maxPerTick int,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		netServer:  netServer,
		registry:   registry,
		store:      store,
		deps:       deps,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	// Accept new sessions. Connect handling runs here so all world
	// mutation stays on the game loop goroutine.
	for {
		select {
		case sess := <-s.netServer.NewSessions():
			handler.HandleConnect(sess, s.deps)
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	// Retire sessions reported dead in earlier ticks.
	for {
		select {
		case id := <-s.netServer.DeadSessions():
			s.store.Remove(id)
		default:
			goto doneDead
		}
	}
doneDead:

	// Drain frames from each session (up to maxPerTick per session).
	for id, sess := range s.store.Raw() {
		if sess.IsClosed() {
			// Pending frames from a closing session are discarded; the
			// action cell coalesces anyway.
			s.drainDiscard(sess)
			handler.HandleDisconnect(sess, s.deps)
			s.netServer.NotifyDead(id)
			s.store.Remove(id)
			continue
		}

	drain:
		for i := 0; i < s.maxPerTick; i++ {
			select {
			case frame := <-sess.InQueue:
				if err := s.registry.Dispatch(sess, sess.State(), frame); err != nil {
					s.log.Debug("frame dispatch error",
						zap.Uint64("session", sess.ID),
						zap.Error(err),
					)
				}
			default:
				break drain
			}
		}
	}
}

func (s *InputSystem) drainDiscard(sess *net.Session) {
	for {
		select {
		case <-sess.InQueue:
		default:
			return
		}
	}
}
