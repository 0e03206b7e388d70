package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fuelgrid.org/internal/access"
	"fuelgrid.org/internal/ids"
	"fuelgrid.org/internal/obs"
	"fuelgrid.org/internal/stream"
)

type memAuditStore struct {
	records []*access.AuditRecord
	err     error
}

func (m *memAuditStore) Append(_ context.Context, rec *access.AuditRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func TestRecorderRecord(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	store := &memAuditStore{}
	st := stream.New()
	rec, err := NewRecorder(store, st)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	sub := st.Subscribe(ctx)

	record := &access.AuditRecord{
		TenantID:   "tenant-1",
		ActorID:    "user-42",
		Action:     "role.created",
		EntityType: "role",
		EntityID:   "role-7",
	}
	if err := rec.Record(ctx, record); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if len(store.records) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(store.records))
	}
	stored := store.records[0]
	if stored.ID == "" {
		t.Fatal("expected record id to be minted")
	}
	idTime, err := ids.Time(stored.ID)
	if err != nil {
		t.Fatalf("record id is not a valid ULID: %v", err)
	}
	if !stored.OccurredAt.Equal(idTime) {
		t.Fatalf("OccurredAt %v does not match id timestamp %v", stored.OccurredAt, idTime)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "role.created" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["actor_id"] != "user-42" {
		t.Fatalf("unexpected actor id: %v", entry["actor_id"])
	}

	select {
	case evt := <-sub:
		if evt.Action != "role.created" || evt.EntityID != "role-7" {
			t.Fatalf("unexpected stream event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected stream event")
	}
}

func TestRecorderStoreFailurePropagates(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	wantErr := errors.New("db down")
	store := &memAuditStore{err: wantErr}
	rec, err := NewRecorder(store, nil)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	record := &access.AuditRecord{Action: "role.updated", EntityType: "role"}
	if err := rec.Record(context.Background(), record); !errors.Is(err, wantErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("expected no log output on store failure")
	}
}

func TestRecorderRejectsEmptyAction(t *testing.T) {
	rec, err := NewRecorder(&memAuditStore{}, nil)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	if err := rec.Record(context.Background(), &access.AuditRecord{}); err == nil {
		t.Fatal("expected error for empty action")
	}
}
