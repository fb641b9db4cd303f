package system

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/pibolib/cs375-multi-dungeon/internal/config"
	coresys "github.com/pibolib/cs375-multi-dungeon/internal/core/system"
	"github.com/pibolib/cs375-multi-dungeon/internal/handler"
	"github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
	"github.com/pibolib/cs375-multi-dungeon/internal/scripting"
	"github.com/pibolib/cs375-multi-dungeon/internal/world"
)

// ResolveSystem is the per-tick action resolver: movement, combat on
// collision, and room transitions. Phase 1 (Update). At most one action is
// resolved per entity per tick; the session's action cell coalesces the
// rest.
type ResolveSystem struct {
	store *net.SessionStore
	deps  *handler.Deps
	game  config.GameConfig
	log   *zap.Logger
}

func NewResolveSystem(store *net.SessionStore, deps *handler.Deps, log *zap.Logger) *ResolveSystem {
	return &ResolveSystem{
		store: store,
		deps:  deps,
		game:  deps.Config.Game,
		log:   log,
	}
}

func (s *ResolveSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ResolveSystem) Update(_ time.Duration) {
	for _, sess := range s.store.Raw() {
		if sess.IsClosed() {
			continue
		}
		action := sess.TakeAction()
		if action == world.ActionNone {
			continue
		}
		s.resolveAction(sess, action)
	}
}

// resolveAction applies one session's pending action. Iteration order
// across sessions is undefined; each resolution is atomic with respect to
// the structures it mutates.
func (s *ResolveSystem) resolveAction(sess *net.Session, action world.Action) {
	w := s.deps.World
	e := w.Entity(sess.Identity)
	if e == nil {
		return
	}

	dx, dy := action.Delta()
	tx, ty := e.PosX+dx, e.PosY+dy

	// Collision always means attack, never blocked movement.
	if targetID := w.OccupantAt(e.RoomID, tx, ty, e.Identity); targetID != "" {
		s.resolveCombat(e, targetID)
		s.enqueueStatus(e.RoomID, e, nil)
		return
	}

	boundW, boundH := s.roomBounds(sess)
	nx, ny, dir := tx, ty, world.DirNone
	if tx < 0 {
		dir, nx = world.DirWest, boundW
	} else if tx > boundW {
		dir, nx = world.DirEast, 0
	}
	// Y checked second: on a double crossing it overwrites the direction.
	if ty < 0 {
		dir, ny = world.DirNorth, boundH
	} else if ty > boundH {
		dir, ny = world.DirSouth, 0
	}

	if dir == world.DirNone {
		w.MoveEntity(e.Identity, tx, ty)
		s.enqueueStatus(e.RoomID, e, nil)
		return
	}

	dest := w.Room(e.RoomID).Neighbor(dir)
	if dest == "" {
		// Edge of the world: clamp instead of crossing.
		w.MoveEntity(e.Identity, clamp(tx, 0, boundW), clamp(ty, 0, boundH))
		s.enqueueStatus(e.RoomID, e, nil)
		return
	}

	w.Transition(e.Identity, sess.ID, dest, nx, ny)
	destRoom := w.Room(dest)
	s.enqueueStatus(dest, e, &protocol.RoomInfo{ID: destRoom.ID, Background: destRoom.Background})

	s.log.Debug("room transition",
		zap.String("identity", e.Identity),
		zap.String("dir", dir.String()),
		zap.String("to", dest),
	)
}

// resolveCombat applies one hit from attacker to the occupant of the
// contested cell. The target despawning in the same tick makes the attack
// a no-op.
func (s *ResolveSystem) resolveCombat(attacker *world.Entity, targetID string) {
	w := s.deps.World
	target := w.Entity(targetID)
	if target == nil {
		return
	}
	room := w.Room(attacker.RoomID)

	res := s.deps.Scripting.CalcAttack(scripting.CombatContext{
		AttackerStr: attacker.Str,
		AttackerLvl: attacker.Lvl,
		TargetHP:    target.HP,
		TargetMHP:   target.MHP,
		TargetLvl:   target.Lvl,
	})

	target.HP -= res.Damage
	attacker.XP += res.XPGain
	s.narrate(room, fmt.Sprintf("%s hits %s for %d damage.",
		attacker.Identity, target.Identity, res.Damage))

	if target.HP <= 0 {
		// Respawn in place: new random position, full heal, same room.
		w.MoveEntity(target.Identity,
			rand.Intn(s.game.SpawnRangeX), rand.Intn(s.game.SpawnRangeY))
		target.HP = target.MHP
		s.narrate(room, fmt.Sprintf("%s has died.", target.Identity))
	}
	s.enqueueStatus(target.RoomID, target, nil)

	if attacker.XP >= attacker.MXP {
		s.narrate(room, fmt.Sprintf("%s has reached level %d!",
			attacker.Identity, attacker.Lvl+1))
		lv := s.deps.Scripting.CalcLevelUp(scripting.ProgressContext{
			XP:  attacker.XP,
			MXP: attacker.MXP,
			Str: attacker.Str,
			Lvl: attacker.Lvl,
			MHP: attacker.MHP,
		})
		// One threshold crossing per hit; leftover xp carries to the next.
		attacker.XP -= attacker.MXP
		attacker.MXP = lv.MXP
		attacker.Str = lv.Str
		attacker.Lvl = lv.Lvl
		attacker.MHP = lv.MHP
		attacker.HP = attacker.MHP // full heal on level-up
		s.enqueueStatus(attacker.RoomID, attacker, nil)
	}
}

// roomBounds derives the room's grid bounds from the session's viewport,
// falling back to the configured default viewport.
func (s *ResolveSystem) roomBounds(sess *net.Session) (int, int) {
	vw, vh := sess.Viewport()
	if vw <= 0 || vh <= 0 {
		vw, vh = s.game.DefaultViewportWidth, s.game.DefaultViewportHeight
	}
	return vw / s.game.CellSize, vh / s.game.CellSize
}

func (s *ResolveSystem) enqueueStatus(roomID string, e *world.Entity, info *protocol.RoomInfo) {
	frame, err := protocol.UpdateStatus(e, info)
	if err != nil {
		s.log.Error("encode updateStatus", zap.Error(err))
		return
	}
	s.deps.World.Room(roomID).Enqueue(frame)
}

func (s *ResolveSystem) narrate(room *world.Room, text string) {
	frame, err := protocol.Chat("Server: " + text)
	if err != nil {
		s.log.Error("encode narration", zap.Error(err))
		return
	}
	room.Enqueue(frame)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
