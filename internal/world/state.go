package world

import (
	"github.com/pibolib/cs375-multi-dungeon/internal/data"
)

// cellKey uniquely identifies a grid cell within a room.
type cellKey struct {
	room string
	x, y int
}

// entityGrid is a cell occupancy index for O(1) collision checks. Multiple
// occupants per cell are possible (random respawns may land on an occupied
// cell); movement into such a cell still resolves as combat.
type entityGrid struct {
	cells map[cellKey]map[string]struct{}
}

func newEntityGrid() *entityGrid {
	return &entityGrid{cells: make(map[cellKey]map[string]struct{})}
}

func (g *entityGrid) occupy(room string, x, y int, identity string) {
	k := cellKey{room: room, x: x, y: y}
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[string]struct{}, 1)
		g.cells[k] = cell
	}
	cell[identity] = struct{}{}
}

func (g *entityGrid) vacate(room string, x, y int, identity string) {
	k := cellKey{room: room, x: x, y: y}
	cell := g.cells[k]
	if cell != nil {
		delete(cell, identity)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// occupantAt returns any occupant of the cell other than exclude, or "".
func (g *entityGrid) occupantAt(room string, x, y int, exclude string) string {
	for id := range g.cells[cellKey{room: room, x: x, y: y}] {
		if id != exclude {
			return id
		}
	}
	return ""
}

// State is the authoritative entity store and room table. Single-goroutine
// access only (game loop); the tick scheduler exclusively owns writes.
type State struct {
	entities map[string]*Entity
	rooms    map[string]*Room
	grid     *entityGrid

	defaultRoom string
}

// NewState builds the room table from a validated topology. chatLimit caps
// each room's chat log (0 = unbounded).
func NewState(topo *data.Topology, chatLimit int) *State {
	s := &State{
		entities:    make(map[string]*Entity),
		rooms:       make(map[string]*Room, topo.Count()),
		grid:        newEntityGrid(),
		defaultRoom: topo.DefaultRoom(),
	}
	topo.All(func(def *data.RoomDef) {
		r := newRoom(def.ID, def.Background, chatLimit)
		r.neighbors[DirNorth] = def.North
		r.neighbors[DirSouth] = def.South
		r.neighbors[DirEast] = def.East
		r.neighbors[DirWest] = def.West
		s.rooms[def.ID] = r
	})
	return s
}

// Room returns the room for id, or nil if none.
func (s *State) Room(id string) *Room {
	return s.rooms[id]
}

// DefaultRoom returns the spawn room.
func (s *State) DefaultRoom() *Room {
	return s.rooms[s.defaultRoom]
}

// Rooms calls fn for every room.
func (s *State) Rooms(fn func(*Room)) {
	for _, r := range s.rooms {
		fn(r)
	}
}

// Entity returns the entity for identity, or nil if none.
func (s *State) Entity(identity string) *Entity {
	return s.entities[identity]
}

// EntityCount returns the number of live entities.
func (s *State) EntityCount() int {
	return len(s.entities)
}

// AllEntities iterates all live entities.
func (s *State) AllEntities(fn func(*Entity)) {
	for _, e := range s.entities {
		fn(e)
	}
}

// AddEntity registers an entity and its session in the entity's room.
func (s *State) AddEntity(e *Entity, sessionID uint64) {
	s.entities[e.Identity] = e
	r := s.rooms[e.RoomID]
	r.entities[e.Identity] = struct{}{}
	r.sessions[sessionID] = struct{}{}
	s.grid.occupy(e.RoomID, e.PosX, e.PosY, e.Identity)
}

// RemoveEntity removes the entity and its session from its current room and
// deletes it. Returns nil if the identity has no entity (idempotent).
func (s *State) RemoveEntity(identity string, sessionID uint64) *Entity {
	e, ok := s.entities[identity]
	if !ok {
		return nil
	}
	r := s.rooms[e.RoomID]
	delete(r.entities, identity)
	delete(r.sessions, sessionID)
	s.grid.vacate(e.RoomID, e.PosX, e.PosY, identity)
	delete(s.entities, identity)
	return e
}

// ReplaceSession swaps the session ID tracked for an entity's room
// membership (reconnect: new transport, same entity).
func (s *State) ReplaceSession(identity string, oldSID, newSID uint64) {
	e, ok := s.entities[identity]
	if !ok {
		return
	}
	r := s.rooms[e.RoomID]
	delete(r.sessions, oldSID)
	r.sessions[newSID] = struct{}{}
}

// MoveEntity relocates an entity within its current room.
func (s *State) MoveEntity(identity string, newX, newY int) {
	e, ok := s.entities[identity]
	if !ok {
		return
	}
	s.grid.vacate(e.RoomID, e.PosX, e.PosY, identity)
	e.PosX = newX
	e.PosY = newY
	s.grid.occupy(e.RoomID, e.PosX, e.PosY, identity)
}

// Transition atomically moves an entity and its session from its current
// room to dest, placing it at the wrapped coordinates, and flags both rooms
// for a full refresh.
func (s *State) Transition(identity string, sessionID uint64, dest string, newX, newY int) {
	e, ok := s.entities[identity]
	if !ok {
		return
	}
	from := s.rooms[e.RoomID]
	to := s.rooms[dest]
	if to == nil {
		return
	}

	delete(from.entities, identity)
	delete(from.sessions, sessionID)
	s.grid.vacate(from.ID, e.PosX, e.PosY, identity)

	e.RoomID = dest
	e.PosX = newX
	e.PosY = newY
	to.entities[identity] = struct{}{}
	to.sessions[sessionID] = struct{}{}
	s.grid.occupy(dest, e.PosX, e.PosY, identity)

	from.FlagRefresh()
	to.FlagRefresh()
}

// RoomEntities returns the entities currently located in the room, for
// refresh snapshots.
func (s *State) RoomEntities(roomID string) []*Entity {
	r := s.rooms[roomID]
	if r == nil {
		return nil
	}
	out := make([]*Entity, 0, len(r.entities))
	for id := range r.entities {
		if e := s.entities[id]; e != nil {
			out = append(out, e)
		}
	}
	return out
}

// OccupantAt returns the identity of an entity at the cell other than
// exclude, or "" if the cell is free.
func (s *State) OccupantAt(roomID string, x, y int, exclude string) string {
	return s.grid.occupantAt(roomID, x, y, exclude)
}
