package handler

import (
	"github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/world"
)

// HandleMove records the movement intent on the session's action cell. No
// world state changes here; the tick scheduler resolves the cell. Multiple
// moves in one tick window overwrite each other.
func HandleMove(sess *net.Session, action world.Action) {
	sess.SetAction(action)
}
