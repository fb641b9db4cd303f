package world

// Direction identifies one of the four room-boundary crossings.
type Direction int

const (
	DirNone Direction = iota
	DirNorth
	DirSouth
	DirEast
	DirWest
)

func (d Direction) String() string {
	switch d {
	case DirNorth:
		return "north"
	case DirSouth:
		return "south"
	case DirEast:
		return "east"
	case DirWest:
		return "west"
	default:
		return "none"
	}
}

// Room is one partition of the world: static topology node plus the dynamic
// membership, chat log, and per-tick outbound event queue. Accessed only
// from the game loop goroutine.
type Room struct {
	ID         string
	Background string

	neighbors [5]string // indexed by Direction, DirNone unused

	entities map[string]struct{} // entity identities located here
	sessions map[uint64]struct{} // session IDs located here

	chatLog   []string
	chatLimit int // oldest entries dropped past this (0 = unbounded)

	queue       [][]byte // encoded frames, cleared every flush
	needRefresh bool
}

func newRoom(id, background string, chatLimit int) *Room {
	return &Room{
		ID:         id,
		Background: background,
		entities:   make(map[string]struct{}),
		sessions:   make(map[uint64]struct{}),
		chatLimit:  chatLimit,
	}
}

// Neighbor returns the room id in the given direction, or "" if none.
func (r *Room) Neighbor(d Direction) string {
	if d <= DirNone || int(d) >= len(r.neighbors) {
		return ""
	}
	return r.neighbors[d]
}

// HasEntity reports whether the identity is a member of this room.
func (r *Room) HasEntity(identity string) bool {
	_, ok := r.entities[identity]
	return ok
}

// EntityCount returns the number of entities located here.
func (r *Room) EntityCount() int {
	return len(r.entities)
}

// Entities calls fn for every entity identity located here.
func (r *Room) Entities(fn func(identity string)) {
	for id := range r.entities {
		fn(id)
	}
}

// Sessions calls fn for every session ID located here.
func (r *Room) Sessions(fn func(sessionID uint64)) {
	for sid := range r.sessions {
		fn(sid)
	}
}

// AppendChat adds a line to the room chat log, dropping the oldest entry
// when the cap is reached.
func (r *Room) AppendChat(line string) {
	r.chatLog = append(r.chatLog, line)
	if r.chatLimit > 0 && len(r.chatLog) > r.chatLimit {
		r.chatLog = r.chatLog[len(r.chatLog)-r.chatLimit:]
	}
}

// ChatLog returns the room's chat log, oldest first. The returned slice is
// shared; callers must not mutate it.
func (r *Room) ChatLog() []string {
	return r.chatLog
}

// Enqueue appends an encoded frame to the room's outbound queue.
func (r *Room) Enqueue(frame []byte) {
	r.queue = append(r.queue, frame)
}

// QueueLen returns the number of frames waiting to be flushed.
func (r *Room) QueueLen() int {
	return len(r.queue)
}

// DrainQueue returns the queued frames and clears the queue.
func (r *Room) DrainQueue() [][]byte {
	q := r.queue
	r.queue = nil
	return q
}

// FlagRefresh marks the room as needing a full-state snapshot on its next
// broadcast flush.
func (r *Room) FlagRefresh() {
	r.needRefresh = true
}

// NeedsRefresh reports whether a full-state snapshot is pending.
func (r *Room) NeedsRefresh() bool {
	return r.needRefresh
}

// ClearRefresh resets the refresh flag after a snapshot has been sent.
func (r *Room) ClearRefresh() {
	r.needRefresh = false
}
