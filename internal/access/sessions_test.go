package access

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

func newSessionsManager(t *testing.T, store *memStore, at *time.Time) *Sessions {
	t.Helper()
	s, err := NewSessions(store,
		WithAccessTTL(15*time.Minute),
		WithRefreshTTL(14*24*time.Hour),
		WithClock(testClock(at)),
	)
	if err != nil {
		t.Fatalf("NewSessions failed: %v", err)
	}
	return s
}

func TestSessionsTTLOrdering(t *testing.T) {
	store := newMemStore()
	if _, err := NewSessions(store, WithAccessTTL(time.Hour), WithRefreshTTL(time.Minute)); err == nil {
		t.Fatal("access TTL longer than refresh TTL must be rejected")
	}
}

func TestSessionsIssue(t *testing.T) {
	store := newMemStore()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mgr := newSessionsManager(t, store, &at)
	ctx := context.Background()

	u := &User{ID: "user-1", TenantID: "tenant-1", Status: StatusActive}
	sess, err := mgr.Issue(ctx, u)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if sess.ID == "" || !sess.IsActive {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if got := sess.ExpiresAt.Sub(sess.IssuedAt); got != 15*time.Minute {
		t.Fatalf("unexpected access window: %v", got)
	}
	if got := sess.RefreshExpiresAt.Sub(sess.IssuedAt); got != 14*24*time.Hour {
		t.Fatalf("unexpected refresh window: %v", got)
	}

	inactive := &User{ID: "user-2", Status: StatusInactive}
	if _, err := mgr.Issue(ctx, inactive); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for inactive user, got %v", err)
	}
}

func TestSessionsValidate(t *testing.T) {
	store := newMemStore()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mgr := newSessionsManager(t, store, &at)
	ctx := context.Background()

	sess, err := mgr.Issue(ctx, &User{ID: "user-1", TenantID: "tenant-1", Status: StatusActive})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := mgr.Validate(ctx, sess.ID); err != nil {
		t.Fatalf("fresh session must validate: %v", err)
	}

	at = at.Add(16 * time.Minute)
	got, err := mgr.Validate(ctx, sess.ID)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Fatal("expired session must still be returned for renewal")
	}

	at = at.Add(15 * 24 * time.Hour)
	if _, err := mgr.Validate(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session past refresh deadline must be not found, got %v", err)
	}

	if _, err := mgr.Validate(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown session must be not found, got %v", err)
	}
}

func TestSessionsRenew(t *testing.T) {
	store := newMemStore()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mgr := newSessionsManager(t, store, &at)
	ctx := context.Background()

	sess, err := mgr.Issue(ctx, &User{ID: "user-1", TenantID: "tenant-1", Status: StatusActive})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := mgr.Renew(ctx, sess.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("renewing a still valid session must fail, got %v", err)
	}

	at = at.Add(20 * time.Minute)
	renewed, err := mgr.Renew(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Renew failed: %v", err)
	}
	wantExp := at.Add(15 * time.Minute)
	if !renewed.ExpiresAt.Equal(wantExp) {
		t.Fatalf("expected expiry %v, got %v", wantExp, renewed.ExpiresAt)
	}
	if !renewed.RefreshExpiresAt.Equal(sess.RefreshExpiresAt) {
		t.Fatal("refresh deadline must not move on renewal")
	}

	// Near the refresh deadline the access window is capped, not extended.
	at = sess.RefreshExpiresAt.Add(-5 * time.Minute)
	capped, err := mgr.Renew(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Renew near deadline failed: %v", err)
	}
	if !capped.ExpiresAt.Equal(sess.RefreshExpiresAt) {
		t.Fatalf("expected expiry capped at refresh deadline, got %v", capped.ExpiresAt)
	}
}

func TestSessionsRevoke(t *testing.T) {
	store := newMemStore()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mgr := newSessionsManager(t, store, &at)
	ctx := context.Background()

	sess, err := mgr.Issue(ctx, &User{ID: "user-1", TenantID: "tenant-1", Status: StatusActive})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := mgr.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := mgr.Validate(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoked session must be not found, got %v", err)
	}
	if err := mgr.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("second Revoke must be a no-op: %v", err)
	}
	if err := mgr.Revoke(ctx, "missing"); err != nil {
		t.Fatalf("revoking absent session must be a no-op: %v", err)
	}
}
