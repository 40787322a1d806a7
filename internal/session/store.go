package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

// ErrNotFound is returned by a Store when the token is unknown.
var ErrNotFound = errors.New("session: not found")

// Store persists sessions keyed by token.
type Store interface {
	Create(ctx context.Context, s models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Renew(ctx context.Context, token string, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// SQLStore keeps sessions in the sessions table.
type SQLStore struct {
	db *storage.DB
}

// NewSQLStore creates a Store backed by db.
func NewSQLStore(db *storage.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Create(ctx context.Context, sess models.Session) error {
	return s.db.CreateSession(ctx, sess.Token, sess.UserID, sess.ExpiresAt)
}

func (s *SQLStore) Get(ctx context.Context, token string) (*models.Session, error) {
	sess, err := s.db.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return sess, err
}

func (s *SQLStore) Renew(ctx context.Context, token string, expiresAt time.Time) error {
	return s.db.RenewSession(ctx, token, expiresAt)
}

func (s *SQLStore) Delete(ctx context.Context, token string) error {
	return s.db.DeleteSession(ctx, token)
}

func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.db.CleanExpiredSessions(ctx, now)
}

func (s *SQLStore) DeleteAll(ctx context.Context) (int64, error) {
	return s.db.DeleteAllSessions(ctx)
}

// MemoryStore keeps sessions in process memory; a restart logs everyone out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.Session)}
}

func (m *MemoryStore) Create(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.LastActivity.IsZero() {
		s.LastActivity = time.Now()
	}
	m.sessions[s.Token] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Renew(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return ErrNotFound
	}
	s.ExpiresAt = expiresAt
	s.LastActivity = time.Now()
	m.sessions[token] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.sessions))
	clear(m.sessions)
	return n, nil
}
