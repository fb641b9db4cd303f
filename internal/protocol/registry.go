package protocol

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateJoining       SessionState = iota // connected, entity not yet spawned
	StateInWorld                           // playing
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateJoining:
		return "Joining"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for message handlers. The session
// pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, body json.RawMessage)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps message types to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a message type to a handler, restricted to the given
// session states.
func (reg *Registry) Register(messageType string, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[messageType] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch decodes the frame, validates the session state, and calls the
// handler. Unknown message types are ignored so newer clients keep working
// against older servers. A malformed frame returns an error; the caller
// drops it and keeps the connection.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	env, err := Decode(data)
	if err != nil {
		return err
	}
	reg.log.Debug("frame received",
		zap.String("type", env.MessageType),
		zap.Int("size", len(data)),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[env.MessageType]
	if !ok {
		reg.log.Debug("unknown message type", zap.String("type", env.MessageType))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("message type not allowed in state",
			zap.String("type", env.MessageType),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("message %s not allowed in state %s", env.MessageType, state)
	}

	return reg.safeCall(entry.fn, sess, env)
}

// safeCall executes a handler with panic recovery to prevent a single bad
// frame from crashing the entire game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, env *Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("type", env.MessageType),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", env.MessageType, rec)
		}
	}()
	fn(sess, env.MessageBody)
	return nil
}
