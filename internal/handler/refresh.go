package handler

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
)

// HandleRefresh serves an explicit client-requested re-sync: a full
// snapshot of the entity's current room, sent to this session only.
func HandleRefresh(sess *net.Session, deps *Deps) {
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

// HandleGetRoomMessages replays the room's chat log to this session only,
// oldest first.
func HandleGetRoomMessages(sess *net.Session, deps *Deps) {
	e := deps.World.Entity(sess.Identity)
	if e == nil {
		return
	}
	room := deps.World.Room(e.RoomID)
	if room == nil {
		return
	}

	for _, line := range room.ChatLog() {
		frame, err := protocol.Chat(line)
		if err != nil {
			deps.Log.Error("encode chat replay", zap.Error(err))
			return
		}
		sess.Send(frame)
	}
}

// HandleViewport records the client-reported viewport used to derive room
// bounds for boundary crossings.
func HandleViewport(sess *net.Session, body json.RawMessage, deps *Deps) {
	var vp protocol.ViewportBody
	if err := json.Unmarshal(body, &vp); err != nil {
		deps.Log.Debug("viewport body malformed", zap.Uint64("session", sess.ID))
		return
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		return
	}
	sess.SetViewport(vp.Width, vp.Height)
}
