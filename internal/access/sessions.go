package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fuelgrid.org/internal/ids"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Sessions issues, validates, renews and revokes sessions. The access window
// slides on renewal; the refresh window is fixed at issue time, so a session
// cannot be renewed indefinitely.
type Sessions struct {
	store      Store
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// SessionsOption configures the manager.
type SessionsOption func(*Sessions) error

// WithAccessTTL sets the access window length.
func WithAccessTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL sets the absolute session lifetime.
func WithRefreshTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) SessionsOption {
	return func(s *Sessions) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewSessions constructs the session manager. The access TTL must be shorter
// than the refresh TTL.
func NewSessions(store Store, opts ...SessionsOption) (*Sessions, error) {
	if store == nil {
		return nil, errors.New("access: store is required")
	}
	s := &Sessions{
		store:      store,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.accessTTL >= s.refreshTTL {
		return nil, errors.New("access: access TTL must be shorter than refresh TTL")
	}
	return s, nil
}

// Issue creates a session for an active user.
func (s *Sessions) Issue(ctx context.Context, u *User) (*Session, error) {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if u.Status != StatusActive || u.DeletedAt != nil {
		return nil, fmt.Errorf("%w: user %s is not active", ErrUnauthorized, u.ID)
	}
	now := s.now().UTC()
	sess := &Session{
		ID:               ids.New(),
		UserID:           u.ID,
		TenantID:         u.TenantID,
		IssuedAt:         now,
		ExpiresAt:        now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
		IsActive:         true,
	}
	if err := s.store.Sessions(ctx).Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate resolves the session id. A session past its access window but
// inside the refresh window returns ErrSessionExpired along with the record,
// so the caller can offer renewal. Revoked or fully expired sessions are
// indistinguishable from absent ones: re-authentication is the only path.
func (s *Sessions) Validate(ctx context.Context, sessionID string) (*Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	sess, err := s.store.Sessions(ctx).Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !sess.IsActive || now.After(sess.RefreshExpiresAt) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if now.After(sess.ExpiresAt) {
		return sess, ErrSessionExpired
	}
	return sess, nil
}

// Renew extends the access window of an expired-but-renewable session. The
// new expiry is capped by the original refresh deadline, and a still-valid
// session is not renewed early.
func (s *Sessions) Renew(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.Validate(ctx, sessionID)
	if err == nil {
		return nil, fmt.Errorf("%w: session %s is not expired", ErrInvalidInput, sessionID)
	}
	if !errors.Is(err, ErrSessionExpired) {
		return nil, err
	}
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	if exp.After(sess.RefreshExpiresAt) {
		exp = sess.RefreshExpiresAt
	}
	sess.ExpiresAt = exp
	if err := s.store.Sessions(ctx).Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Revoke deactivates a session. Revoking an already revoked or absent
// session is a no-op.
func (s *Sessions) Revoke(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}
	sess, err := s.store.Sessions(ctx).Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !sess.IsActive {
		return nil
	}
	sess.IsActive = false
	return s.store.Sessions(ctx).Update(ctx, sess)
}
