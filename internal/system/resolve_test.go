package system

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pibolib/cs375-multi-dungeon/internal/config"
	"github.com/pibolib/cs375-multi-dungeon/internal/data"
	"github.com/pibolib/cs375-multi-dungeon/internal/handler"
	"github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
	"github.com/pibolib/cs375-multi-dungeon/internal/scripting"
	"github.com/pibolib/cs375-multi-dungeon/internal/world"
)

// fixture wires a world, session store, and systems with no network. Rooms:
// room1 and room2, fully adjacent (every direction of one leads to the
// other).
type fixture struct {
	t         *testing.T
	cfg       *config.Config
	world     *world.State
	store     *net.SessionStore
	deps      *handler.Deps
	resolve   *ResolveSystem
	broadcast *BroadcastSystem
	nextSID   uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rooms.yaml")
	body := `
rooms:
  - id: room1
    background: stone
    north: room2
    south: room2
    east: room2
    west: room2
  - id: room2
    background: moss
    north: room1
    south: room1
    east: room1
    west: room1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	topo, err := data.LoadTopology(path)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	engine, err := scripting.NewEngine("", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(engine.Close)

	w := world.NewState(topo, cfg.Game.ChatLogLimit)
	store := net.NewSessionStore()
	deps := &handler.Deps{
		Config:    cfg,
		Log:       zap.NewNop(),
		World:     w,
		Topology:  topo,
		Scripting: engine,
		Sessions:  store,
	}

	return &fixture{
		t:         t,
		cfg:       cfg,
		world:     w,
		store:     store,
		deps:      deps,
		resolve:   NewResolveSystem(store, deps, zap.NewNop()),
		broadcast: NewBroadcastSystem(store, w, zap.NewNop()),
	}
}

// spawn places an entity at a fixed position and binds a session to it.
func (f *fixture) spawn(identity, roomID string, x, y int) (*net.Session, *world.Entity) {
	f.t.Helper()
	f.nextSID++
	sess := net.NewSession(nil, f.nextSID, net.SessionConfig{
		InQueueSize:  f.cfg.Network.InQueueSize,
		OutQueueSize: f.cfg.Network.OutQueueSize,
		WriteTimeout: time.Second,
		PongTimeout:  time.Minute,
	}, zap.NewNop())
	sess.Identity = identity
	sess.SetState(protocol.StateInWorld)

	e := world.NewEntity(identity, roomID, f.cfg.Game.SpawnRangeX, f.cfg.Game.SpawnRangeY)
	e.PosX, e.PosY = x, y
	f.world.AddEntity(e, sess.ID)
	f.store.Add(sess)
	return sess, e
}

// tick runs one resolution pass without the broadcast flush, so tests can
// inspect room queues directly.
func (f *fixture) tick() {
	f.resolve.Update(f.cfg.Network.TickInterval)
}

// drainFrames decodes and clears a room's event queue.
func (f *fixture) drainFrames(roomID string) []*protocol.Envelope {
	f.t.Helper()
	var out []*protocol.Envelope
	for _, raw := range f.world.Room(roomID).DrainQueue() {
		env, err := protocol.Decode(raw)
		if err != nil {
			f.t.Fatalf("queued frame does not decode: %v", err)
		}
		out = append(out, env)
	}
	return out
}

func countNarrations(envs []*protocol.Envelope, substr string) int {
	n := 0
	for _, env := range envs {
		if env.MessageType != protocol.MsgChat {
			continue
		}
		var text string
		if json.Unmarshal(env.MessageBody, &text) != nil {
			continue
		}
		if strings.HasPrefix(text, "Server: ") && strings.Contains(text, substr) {
			n++
		}
	}
	return n
}

func countType(envs []*protocol.Envelope, msgType string) int {
	n := 0
	for _, env := range envs {
		if env.MessageType == msgType {
			n++
		}
	}
	return n
}

// checkInvariants asserts the §-independent end-of-tick consistency rules:
// hp within [0,mhp] and room membership mirroring RoomID.
func (f *fixture) checkInvariants() {
	f.t.Helper()
	f.world.AllEntities(func(e *world.Entity) {
		if e.HP < 0 || e.HP > e.MHP {
			f.t.Errorf("entity %s hp %d outside [0,%d]", e.Identity, e.HP, e.MHP)
		}
	})
	seen := make(map[string]string)
	f.world.Rooms(func(r *world.Room) {
		r.Entities(func(id string) {
			if prev, dup := seen[id]; dup {
				f.t.Errorf("entity %s in both %s and %s", id, prev, r.ID)
			}
			seen[id] = r.ID
			e := f.world.Entity(id)
			if e == nil || e.RoomID != r.ID {
				f.t.Errorf("room %s membership out of sync for %s", r.ID, id)
			}
		})
	})
	f.world.AllEntities(func(e *world.Entity) {
		if seen[e.Identity] != e.RoomID {
			f.t.Errorf("entity %s not in any room set (RoomID %s)", e.Identity, e.RoomID)
		}
	})
}

func TestMoveResolvesOncePerTick(t *testing.T) {
	f := newFixture(t)
	sess, e := f.spawn("alice", "room1", 2, 2)

	// Later writes in the same tick window overwrite earlier ones.
	sess.SetAction(world.ActionMoveLeft)
	sess.SetAction(world.ActionMoveRight)
	f.tick()

	if e.PosX != 3 || e.PosY != 2 {
		t.Fatalf("position = (%d,%d), want (3,2)", e.PosX, e.PosY)
	}
	envs := f.drainFrames("room1")
	if got := countType(envs, protocol.MsgUpdateStatus); got != 1 {
		t.Errorf("updateStatus count = %d, want 1", got)
	}

	// The cell was reset: an empty tick resolves nothing.
	f.tick()
	if e.PosX != 3 || e.PosY != 2 {
		t.Errorf("position moved on an empty tick: (%d,%d)", e.PosX, e.PosY)
	}
	if left := len(f.drainFrames("room1")); left != 0 {
		t.Errorf("empty tick produced %d frames", left)
	}
	f.checkInvariants()
}

func TestCollisionAttacksNeverMoves(t *testing.T) {
	f := newFixture(t)
	atkSess, atk := f.spawn("alice", "room1", 2, 2)
	_, tgt := f.spawn("bob", "room1", 3, 2)

	wantHP := []int{8, 6, 4}
	for i, want := range wantHP {
		atkSess.SetAction(world.ActionMoveRight)
		f.tick()

		if tgt.HP != want {
			t.Fatalf("hit %d: target hp = %d, want %d", i+1, tgt.HP, want)
		}
		if atk.PosX != 2 || atk.PosY != 2 {
			t.Fatalf("hit %d: attacker moved to (%d,%d)", i+1, atk.PosX, atk.PosY)
		}

		envs := f.drainFrames("room1")
		if got := countNarrations(envs, "hits bob"); got != 1 {
			t.Errorf("hit %d: combat narrations = %d, want 1", i+1, got)
		}
		if got := countNarrations(envs, "has died"); got != 0 {
			t.Errorf("hit %d: unexpected death narration", i+1)
		}
		// one for the target, one for the actor
		if got := countType(envs, protocol.MsgUpdateStatus); got != 2 {
			t.Errorf("hit %d: updateStatus count = %d, want 2", i+1, got)
		}
	}
	if atk.XP != 6 {
		t.Errorf("attacker xp = %d, want 6", atk.XP)
	}
	f.checkInvariants()
}

func TestLevelUpCarriesExcessXP(t *testing.T) {
	f := newFixture(t)
	atkSess, atk := f.spawn("alice", "room1", 2, 2)
	f.spawn("bob", "room1", 3, 2)
	atk.XP = 9

	atkSess.SetAction(world.ActionMoveRight)
	f.tick()

	if atk.XP != 1 {
		t.Errorf("xp = %d, want 1 (11 - 10)", atk.XP)
	}
	if atk.MXP != 12 {
		t.Errorf("mxp = %d, want 12", atk.MXP)
	}
	if atk.Str != 3 || atk.Lvl != 2 || atk.MHP != 12 {
		t.Errorf("stats = str %d lvl %d mhp %d, want 3/2/12", atk.Str, atk.Lvl, atk.MHP)
	}
	if atk.HP != atk.MHP {
		t.Errorf("hp = %d, want full heal to %d", atk.HP, atk.MHP)
	}

	envs := f.drainFrames("room1")
	if got := countNarrations(envs, "reached level"); got != 1 {
		t.Errorf("level-up narrations = %d, want exactly 1", got)
	}
	f.checkInvariants()
}

func TestDeathRespawnsInPlace(t *testing.T) {
	f := newFixture(t)
	atkSess, _ := f.spawn("alice", "room1", 2, 2)
	_, tgt := f.spawn("bob", "room1", 3, 2)
	tgt.HP = 2

	atkSess.SetAction(world.ActionMoveRight)
	f.tick()

	if tgt.HP != tgt.MHP {
		t.Errorf("target hp = %d, want respawned to %d", tgt.HP, tgt.MHP)
	}
	if tgt.RoomID != "room1" {
		t.Errorf("death must not change room, got %s", tgt.RoomID)
	}
	if tgt.PosX < 0 || tgt.PosX >= f.cfg.Game.SpawnRangeX ||
		tgt.PosY < 0 || tgt.PosY >= f.cfg.Game.SpawnRangeY {
		t.Errorf("respawn position (%d,%d) outside bounds", tgt.PosX, tgt.PosY)
	}

	envs := f.drainFrames("room1")
	if got := countNarrations(envs, "has died"); got != 1 {
		t.Errorf("death narrations = %d, want 1", got)
	}
	f.checkInvariants()
}

func TestWestWrapTransition(t *testing.T) {
	f := newFixture(t)
	sess, e := f.spawn("alice", "room1", 0, 3)
	obsRoom2, _ := f.spawn("carol", "room2", 5, 5)
	f.drainFrames("room2") // discard carol's spawn-time noise, none expected

	sess.SetAction(world.ActionMoveLeft)
	f.tick()

	boundW := f.cfg.Game.DefaultViewportWidth / f.cfg.Game.CellSize
	if e.RoomID != "room2" {
		t.Fatalf("room = %s, want room2", e.RoomID)
	}
	if e.PosX != boundW || e.PosY != 3 {
		t.Fatalf("position = (%d,%d), want (%d,3)", e.PosX, e.PosY, boundW)
	}
	if !f.world.Room("room1").NeedsRefresh() || !f.world.Room("room2").NeedsRefresh() {
		t.Error("both rooms must be refresh-flagged")
	}

	// The updateStatus lands in the destination room's queue and carries
	// the room descriptor.
	envs := f.drainFrames("room2")
	if got := countType(envs, protocol.MsgUpdateStatus); got != 1 {
		t.Fatalf("room2 updateStatus count = %d, want 1", got)
	}
	for _, env := range envs {
		if env.MessageType != protocol.MsgUpdateStatus {
			continue
		}
		var body protocol.StatusBody
		if err := json.Unmarshal(env.MessageBody, &body); err != nil {
			t.Fatal(err)
		}
		if body.Room == nil || body.Room.ID != "room2" || body.Room.Background != "moss" {
			t.Errorf("updateStatus room descriptor = %+v", body.Room)
		}
	}
	if got := len(f.drainFrames("room1")); got != 0 {
		t.Errorf("room1 queue has %d frames, want 0 (refresh covers it)", got)
	}

	// Broadcast: refresh snapshots reach both rooms' sessions.
	f.broadcast.Update(0)
	if !hasFrameOfType(t, sess, protocol.MsgRefresh) {
		t.Error("transitioned session received no refresh")
	}
	if !hasFrameOfType(t, obsRoom2, protocol.MsgRefresh) {
		t.Error("destination room observer received no refresh")
	}
	if f.world.Room("room1").NeedsRefresh() || f.world.Room("room2").NeedsRefresh() {
		t.Error("refresh flags not cleared after flush")
	}
	f.checkInvariants()
}

func TestDoubleCrossingFavorsY(t *testing.T) {
	f := newFixture(t)
	boundW := f.cfg.Game.DefaultViewportWidth / f.cfg.Game.CellSize
	boundH := f.cfg.Game.DefaultViewportHeight / f.cfg.Game.CellSize

	// Standing past the east bound (viewport shrank), moving up crosses
	// both axes in one resolution. Y wins: the entity goes north.
	sess, e := f.spawn("alice", "room1", boundW+1, 0)
	sess.SetAction(world.ActionMoveUp)
	f.tick()

	if e.RoomID != "room2" {
		t.Fatalf("room = %s, want room2 (north)", e.RoomID)
	}
	if e.PosX != 0 || e.PosY != boundH {
		t.Errorf("position = (%d,%d), want (0,%d)", e.PosX, e.PosY, boundH)
	}
	f.checkInvariants()
}

func TestAttackRacingDespawnIsNoop(t *testing.T) {
	f := newFixture(t)
	atkSess, atk := f.spawn("alice", "room1", 2, 2)
	bobSess, _ := f.spawn("bob", "room1", 3, 2)

	atkSess.SetAction(world.ActionMoveRight)

	// bob disconnects before the tick resolves
	bobSess.Close()
	handler.HandleDisconnect(bobSess, f.deps)
	f.store.Remove(bobSess.ID)

	f.tick()

	// the contested cell is free now, so the move goes through
	if atk.PosX != 3 || atk.PosY != 2 {
		t.Fatalf("attacker position = (%d,%d), want (3,2)", atk.PosX, atk.PosY)
	}
	if atk.XP != 0 {
		t.Errorf("attacker gained xp from a despawned target")
	}
	f.checkInvariants()
}

func hasFrameOfType(t *testing.T, sess *net.Session, msgType string) bool {
	t.Helper()
	found := false
	for {
		select {
		case raw := <-sess.OutQueue:
			env, err := protocol.Decode(raw)
			if err != nil {
				t.Fatalf("outbound frame does not decode: %v", err)
			}
			if env.MessageType == msgType {
				found = true
			}
		default:
			return found
		}
	}
}
