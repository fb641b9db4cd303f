package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: accept sessions, drain frame queues
	PhaseUpdate               // 1: resolve actions (movement, combat, transitions)
	PhaseOutput               // 2: flush room queues + session buffers
	PhaseCleanup              // 3: destroy queued entities
)

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
