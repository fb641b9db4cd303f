package net

// SessionStore tracks live sessions for the game loop. Single-goroutine
// access only (game loop).
type SessionStore struct {
	byID       map[uint64]*Session
	byIdentity map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID:       make(map[uint64]*Session),
		byIdentity: make(map[string]*Session),
	}
}

func (st *SessionStore) Add(s *Session) {
	st.byID[s.ID] = s
	if s.Identity != "" {
		st.byIdentity[s.Identity] = s
	}
}

func (st *SessionStore) Remove(id uint64) {
	s, ok := st.byID[id]
	if !ok {
		return
	}
	delete(st.byID, id)
	if cur, ok := st.byIdentity[s.Identity]; ok && cur == s {
		delete(st.byIdentity, s.Identity)
	}
}

// Get returns the session by ID, or nil.
func (st *SessionStore) Get(id uint64) *Session {
	return st.byID[id]
}

// GetByIdentity returns the session owning an identity, or nil.
func (st *SessionStore) GetByIdentity(identity string) *Session {
	return st.byIdentity[identity]
}

// Rebind points an identity at a new session (reconnect).
func (st *SessionStore) Rebind(identity string, s *Session) {
	s.Identity = identity
	st.byIdentity[identity] = s
}

func (st *SessionStore) Count() int {
	return len(st.byID)
}

// Raw exposes the underlying ID map for tick iteration.
func (st *SessionStore) Raw() map[uint64]*Session {
	return st.byID
}

// ForEach calls fn for every live session.
func (st *SessionStore) ForEach(fn func(*Session)) {
	for _, s := range st.byID {
		fn(s)
	}
}
