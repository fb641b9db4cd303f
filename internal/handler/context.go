package handler

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/pibolib/cs375-multi-dungeon/internal/config"
	"github.com/pibolib/cs375-multi-dungeon/internal/data"
	"github.com/pibolib/cs375-multi-dungeon/internal/net"
	"github.com/pibolib/cs375-multi-dungeon/internal/protocol"
	"github.com/pibolib/cs375-multi-dungeon/internal/scripting"
	"github.com/pibolib/cs375-multi-dungeon/internal/world"
)

// Deps holds shared dependencies injected into all message handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State
	Topology  *data.Topology
	Scripting *scripting.Engine
	Sessions  *net.SessionStore
}

// RegisterAll registers all message handlers into the registry.
func RegisterAll(reg *protocol.Registry, deps *Deps) {
	inWorld := []protocol.SessionState{protocol.StateInWorld}
	anyLive := []protocol.SessionState{protocol.StateJoining, protocol.StateInWorld}

	moves := map[string]world.Action{
		protocol.MsgMoveLeft:  world.ActionMoveLeft,
		protocol.MsgMoveRight: world.ActionMoveRight,
		protocol.MsgMoveUp:    world.ActionMoveUp,
		protocol.MsgMoveDown:  world.ActionMoveDown,
	}
	for msgType, action := range moves {
		action := action
		reg.Register(msgType, inWorld,
			func(sess any, body json.RawMessage) {
				HandleMove(sess.(*net.Session), action)
			},
		)
	}

	reg.Register(protocol.MsgChat, inWorld,
		func(sess any, body json.RawMessage) {
			HandleChat(sess.(*net.Session), body, deps)
		},
	)
	reg.Register(protocol.MsgRefresh, inWorld,
		func(sess any, body json.RawMessage) {
			HandleRefresh(sess.(*net.Session), deps)
		},
	)
	reg.Register(protocol.MsgGetRoomMessages, inWorld,
		func(sess any, body json.RawMessage) {
			HandleGetRoomMessages(sess.(*net.Session), deps)
		},
	)

	// Viewport may arrive before the entity spawns.
	reg.Register(protocol.MsgViewport, anyLive,
		func(sess any, body json.RawMessage) {
			HandleViewport(sess.(*net.Session), body, deps)
		},
	)
}
