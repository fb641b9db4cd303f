package world

import "math/rand"

// Action is the single coalesced movement intent recorded per connection
// between ticks. Later writes in the same tick window replace earlier ones.
type Action int32

const (
	ActionNone Action = iota
	ActionMoveLeft
	ActionMoveRight
	ActionMoveUp
	ActionMoveDown
)

// Per-action position deltas, indexed by Action.
var (
	actionDX = [5]int{0, -1, 1, 0, 0}
	actionDY = [5]int{0, 0, 0, -1, 1}
)

// Delta returns the grid offset for the action.
func (a Action) Delta() (dx, dy int) {
	if a < 0 || int(a) >= len(actionDX) {
		return 0, 0
	}
	return actionDX[a], actionDY[a]
}

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionMoveLeft:
		return "moveLeft"
	case ActionMoveRight:
		return "moveRight"
	case ActionMoveUp:
		return "moveUp"
	case ActionMoveDown:
		return "moveDown"
	default:
		return "unknown"
	}
}

// Entity is the simulated state of one connected player. Exactly one exists
// per identity while that identity has an open connection. Accessed only
// from the game loop goroutine — no locks needed.
type Entity struct {
	Identity   string `json:"identity"`
	EntityType string `json:"entityType"`
	PosX       int    `json:"posX"`
	PosY       int    `json:"posY"`
	HP         int    `json:"hp"`
	MHP        int    `json:"mhp"`
	XP         int    `json:"xp"`
	MXP        int    `json:"mxp"`
	Str        int    `json:"str"`
	Lvl        int    `json:"lvl"`
	RoomID     string `json:"roomId"`
}

// NewEntity creates a player entity with starting stats and a random
// position in [0, rangeX) × [0, rangeY).
func NewEntity(identity, roomID string, rangeX, rangeY int) *Entity {
	return &Entity{
		Identity:   identity,
		EntityType: "player",
		PosX:       rand.Intn(rangeX),
		PosY:       rand.Intn(rangeY),
		HP:         10,
		MHP:        10,
		XP:         0,
		MXP:        10,
		Str:        2,
		Lvl:        1,
		RoomID:     roomID,
	}
}
