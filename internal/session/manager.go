// Package session tracks logged-in clients by opaque token.
//
// A client is Anonymous until Login issues a token and Authenticated until
// Logout deletes it or the session expires. Sessions roll forward: once a
// session is past half its lifetime, Resolve extends it by a full duration.
// RevokeAll is run at startup, so no token outlives the process that issued it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/models"
)

// ErrUnauthenticated is returned by Resolve for missing, unknown or expired tokens.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// DefaultDuration is how long sessions last (30 days).
const DefaultDuration = 30 * 24 * time.Hour

// Manager issues, resolves and revokes sessions.
type Manager struct {
	store    Store
	duration time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager. A non-positive duration uses DefaultDuration
// and a nil logger uses slog.Default.
func NewManager(store Store, duration time.Duration, logger *slog.Logger) *Manager {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, duration: duration, logger: logger, now: time.Now}
}

// Duration returns the lifetime of a fresh or renewed session.
func (m *Manager) Duration() time.Duration {
	return m.duration
}

// Login creates a session for userID and returns it.
func (m *Manager) Login(ctx context.Context, userID int64) (*models.Session, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	now := m.now()
	s := models.Session{
		Token:        token,
		UserID:       userID,
		ExpiresAt:    now.Add(m.duration),
		LastActivity: now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &s, nil
}

// Resolve returns the live session for token. The second result reports
// whether the session was renewed, in which case the caller should refresh
// the client's cookie.
func (m *Manager) Resolve(ctx context.Context, token string) (*models.Session, bool, error) {
	if token == "" {
		return nil, false, ErrUnauthenticated
	}

	s, err := m.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, ErrUnauthenticated
		}
		return nil, false, fmt.Errorf("get session: %w", err)
	}

	now := m.now()
	if !s.ExpiresAt.After(now) {
		_ = m.store.Delete(ctx, token)
		return nil, false, ErrUnauthenticated
	}

	if s.ExpiresAt.Sub(now) >= m.duration/2 {
		return s, false, nil
	}

	expiresAt := now.Add(m.duration)
	if err := m.store.Renew(ctx, token, expiresAt); err != nil {
		// If renewal fails, just continue with the current session
		m.logger.WarnContext(ctx, "session renewal failed", "user_id", s.UserID, "error", err)
		return s, false, nil
	}
	s.ExpiresAt = expiresAt
	s.LastActivity = now
	return s, true, nil
}

// Logout invalidates token. Unknown tokens are not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.Delete(ctx, token)
}

// RevokeAll deletes every session and returns how many were removed.
func (m *Manager) RevokeAll(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}

// Sweep removes expired sessions.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				m.logger.ErrorContext(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				m.logger.DebugContext(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}
