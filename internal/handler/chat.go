package handler

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
)

// HandleChat appends the message to the sender's room chat log and queues
// it for that room only. Cross-room delivery never happens.
func HandleChat(sess *net.Session, body json.RawMessage, deps *Deps) {
	var text string
	if err := json.Unmarshal(body, &text); err != nil {
		deps.Log.Debug("chat body not a string", zap.Uint64("session", sess.ID))
		return
	}
	if text == "" {
		return
	}

	e := deps.World.Entity(sess.Identity)
	if e == nil {
		return
	}
	room := deps.World.Room(e.RoomID)
	if room == nil {
		return
	}

	line := fmt.Sprintf("%s: %s", sess.Identity, text)
	room.AppendChat(line)

	frame, err := protocol.Chat(line)
	if err != nil {
		deps.Log.Error("encode chat", zap.Error(err))
		return
	}
	room.Enqueue(frame)
}
