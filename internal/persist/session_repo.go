package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SessionRepo resolves session tokens against the sessions table. The auth
// service writes rows; this server only reads them.
type SessionRepo struct {
	db  *DB
	log *zap.Logger
}

func NewSessionRepo(db *DB, log *zap.Logger) *SessionRepo {
	return &SessionRepo{db: db, log: log}
}

// Resolve looks up the identity bound to a token. Expired or unknown
// tokens resolve to nothing.
func (r *SessionRepo) Resolve(ctx context.Context, token string) (string, bool) {
	var username string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT username FROM sessions
		 WHERE token = $1 AND (expires_at IS NULL OR expires_at > now())`, token,
	).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false
	}
	if err != nil {
		r.log.Error("session lookup failed", zap.Error(err))
		return "", false
	}
	return username, true
}

// MemoryResolver is the development stand-in for the sessions table: a
// plain token → identity map. Safe for concurrent use (handshakes run on
// HTTP goroutines).
type MemoryResolver struct {
	mu     sync.RWMutex
	tokens map[string]memorySession
}

type memorySession struct {
	identity  string
	expiresAt time.Time // zero = no expiry
}

func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{tokens: make(map[string]memorySession)}
}

// Put binds a token to an identity. ttl <= 0 means no expiry.
func (m *MemoryResolver) Put(token, identity string, ttl time.Duration) {
	s := memorySession{identity: identity}
	if ttl > 0 {
		s.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.tokens[token] = s
	m.mu.Unlock()
}

// Delete invalidates a token.
func (m *MemoryResolver) Delete(token string) {
	m.mu.Lock()
	delete(m.tokens, token)
	m.mu.Unlock()
}

func (m *MemoryResolver) Resolve(_ context.Context, token string) (string, bool) {
	m.mu.RLock()
	s, ok := m.tokens[token]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !s.expiresAt.IsZero() && time.Now().After(s.expiresAt) {
		m.Delete(token)
		return "", false
	}
	return s.identity, true
}
