package protocol

import (
	"github.com/pibolib/cs375-multi-dungeon/internal/world"
)

// RoomInfo describes a room to the client: enough to switch rendering
// context after a transition.
type RoomInfo struct {
	ID         string `json:"id"`
	Background string `json:"background"`
}

// StatusBody is the updateStatus payload: the actor's full entity state,
// plus the destination room descriptor when the update crossed a boundary.
type StatusBody struct {
	*world.Entity
	Room *RoomInfo `json:"room,omitempty"`
}

// RefreshBody is the full-state snapshot for one room.
type RefreshBody struct {
	RoomID     string          `json:"roomId"`
	Background string          `json:"background"`
	Entities   []*world.Entity `json:"entities"`
}

// Spawn encodes the entity's first appearance in a room.
func Spawn(e *world.Entity) ([]byte, error) {
	return Encode(MsgSpawn, e)
}

// Despawn encodes the entity leaving the world.
func Despawn(identity string) ([]byte, error) {
	return Encode(MsgDespawn, struct {
		Identity string `json:"identity"`
	}{identity})
}

// UpdateStatus encodes the entity's current state. room is non-nil only
// when this update carries a room transition.
func UpdateStatus(e *world.Entity, room *RoomInfo) ([]byte, error) {
	return Encode(MsgUpdateStatus, StatusBody{Entity: e, Room: room})
}

// Refresh encodes a full snapshot of the room's entities.
func Refresh(roomID, background string, entities []*world.Entity) ([]byte, error) {
	return Encode(MsgRefresh, RefreshBody{
		RoomID:     roomID,
		Background: background,
		Entities:   entities,
	})
}

// Chat encodes one chat line, already prefixed with the sender.
func Chat(line string) ([]byte, error) {
	return Encode(MsgChat, line)
}
