package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/pibolib/cs375-multi-dungeon/internal/core/system"
	"github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
	"github.com/pibolib/cs375-multi-dungeon/internal/world"
)

// BroadcastSystem flushes each room's event queue to exactly that room's
// connections, serves full snapshots to refresh-flagged rooms, and drains
// every session's output buffer to its writer. Phase 2 (Output).
type BroadcastSystem struct {
	store *net.SessionStore
	world *world.State
	log   *zap.Logger
}

func NewBroadcastSystem(store *net.SessionStore, w *world.State, log *zap.Logger) *BroadcastSystem {
	return &BroadcastSystem{store: store, world: w, log: log}
}

func (s *BroadcastSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *BroadcastSystem) Update(_ time.Duration) {
	s.world.Rooms(func(room *world.Room) {
		s.flush(room)
	})

	// Hand buffered frames to the writer goroutines. Slow consumers are
	// disconnected here, never blocked on.
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

// flush delivers queued events in order, then a full snapshot if the room
// was refresh-flagged this tick.
func (s *BroadcastSystem) flush(room *world.Room) {
	frames := room.DrainQueue()
	if len(frames) > 0 {
		room.Sessions(func(sid uint64) {
			sess := s.store.Get(sid)
			if sess == nil {
				return
			}
			for _, frame := range frames {
				sess.Send(frame)
			}
		})
	}

	if !room.NeedsRefresh() {
		return
	}
	room.ClearRefresh()

	frame, err := protocol.Refresh(room.ID, room.Background, s.world.RoomEntities(room.ID))
	if err != nil {
		s.log.Error("encode refresh", zap.Error(err))
		return
	}
	room.Sessions(func(sid uint64) {
		if sess := s.store.Get(sid); sess != nil {
			sess.Send(frame)
		}
	})
}
