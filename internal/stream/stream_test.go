package stream

import (
	"context"
	"testing"
	"time"
)

func TestSubscribePublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	if got := s.SubscriberCount(); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	evt := AuditEvent{Action: "role.create", EntityType: "role", EntityID: "role-1", TenantID: "tenant-1", OccurredAt: time.Now().UTC()}
	s.Publish(evt)

	select {
	case got := <-ch:
		if got.Action != "role.create" || got.EntityID != "role-1" {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event on subscriber channel")
	}
}

func TestSubscribeClosesOnContextEnd(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context end")
	}

	deadline := time.Now().Add(time.Second)
	for s.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after context end")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Subscribe(ctx) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(AuditEvent{Action: "role.update"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
