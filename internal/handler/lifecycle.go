package handler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
	"github.com/pibolib/cs375-multi-dungeon/internal/world"
)

// HandleConnect spawns an entity for a newly accepted session, or rebinds
// the identity's existing entity on reconnect. Called from the game loop
// when the input system picks the session up.
func HandleConnect(sess *net.Session, deps *Deps) {
	identity := sess.Identity
	if identity == "" {
		// Unresolved token. The server already rejected this connection
		// unless guests are allowed.
		identity = fmt.Sprintf("guest-%d", sess.ID)
		sess.Identity = identity
	}

	// Reconnect: the identity already has a live entity. The new transport
	// replaces the stale one; no duplicate entity.
	if old := deps.Sessions.GetByIdentity(identity); old != nil && old != sess {
		deps.Log.Info("reconnect, replacing stale transport",
			zap.String("identity", identity),
			zap.Uint64("old", old.ID),
			zap.Uint64("new", sess.ID),
		)
		old.Close()
		deps.World.ReplaceSession(identity, old.ID, sess.ID)
		deps.Sessions.Rebind(identity, sess)
		sess.SetState(protocol.StateInWorld)
		sendRoomSnapshot(sess, deps)
		return
	}

	e := world.NewEntity(identity, deps.World.DefaultRoom().ID,
		deps.Config.Game.SpawnRangeX, deps.Config.Game.SpawnRangeY)
	deps.World.AddEntity(e, sess.ID)
	sess.SetState(protocol.StateInWorld)

	if frame, err := protocol.Spawn(e); err != nil {
		deps.Log.Error("encode spawn", zap.Error(err))
	} else {
		deps.World.Room(e.RoomID).Enqueue(frame)
	}

	// The joining client needs the full room state before incremental
	// events make sense.
	sendRoomSnapshot(sess, deps)

	deps.Log.Info("entity spawned",
		zap.String("identity", identity),
		zap.String("room", e.RoomID),
		zap.Int("x", e.PosX),
		zap.Int("y", e.PosY),
	)
}

// HandleDisconnect removes the session's entity from its room and queues a
// despawn event there. Idempotent: a session that never spawned, or whose
// identity has been rebound to a newer transport, is a no-op.
func HandleDisconnect(sess *net.Session, deps *Deps) {
	if sess.Identity == "" {
		return
	}
	if owner := deps.Sessions.GetByIdentity(sess.Identity); owner != nil && owner != sess {
		return // stale transport, entity now belongs to a newer session
	}

	e := deps.World.RemoveEntity(sess.Identity, sess.ID)
	if e == nil {
		return
	}

	if frame, err := protocol.Despawn(e.Identity); err != nil {
		deps.Log.Error("encode despawn", zap.Error(err))
	} else {
		deps.World.Room(e.RoomID).Enqueue(frame)
	}

	deps.Log.Info("entity despawned",
		zap.String("identity", e.Identity),
		zap.String("room", e.RoomID),
	)
}

func sendRoomSnapshot(sess *net.Session, deps *Deps) {
	e := deps.World.Entity(sess.Identity)
	if e == nil {
		return
	}
	room := deps.World.Room(e.RoomID)
	if room == nil {
		return
	}
	frame, err := protocol.Refresh(room.ID, room.Background, deps.World.RoomEntities(room.ID))
	if err != nil {
		deps.Log.Error("encode refresh", zap.Error(err))
		return
	}
	sess.Send(frame)
}
