package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"fuelgrid.org/internal/access"
	"fuelgrid.org/internal/ids"
	"fuelgrid.org/internal/obs"
	"fuelgrid.org/internal/stream"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Recorder persists audit records and mirrors them to the structured log and
// the live event stream. Persistence is the guarantee: if the store append
// fails the error propagates and the caller must abort its mutation. Log and
// stream mirroring are best-effort.
type Recorder struct {
	store  access.AuditStore
	stream *stream.Stream
}

var _ access.AuditSink = (*Recorder)(nil)

// NewRecorder constructs a Recorder. The stream may be nil when no live feed
// is wired.
func NewRecorder(store access.AuditStore, s *stream.Stream) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	return &Recorder{store: store, stream: s}, nil
}

// Record appends the record to the audit store. The record id is minted here
// so log, store and stream all carry the same one; when the caller left the
// timestamp zero it is taken from the id, keeping record time and ULID
// ordering consistent.
func (r *Recorder) Record(ctx context.Context, rec *access.AuditRecord) error {
	if rec == nil || strings.TrimSpace(rec.Action) == "" {
		return errors.New("audit: action is required")
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.OccurredAt.IsZero() {
		if ts, err := ids.Time(rec.ID); err == nil {
			rec.OccurredAt = ts
		} else {
			rec.OccurredAt = time.Now().UTC()
		}
	}
	if err := r.store.Append(ctx, rec); err != nil {
		return err
	}
	r.emit(ctx, rec)
	if r.stream != nil {
		r.stream.Publish(stream.AuditEvent{
			Action:     rec.Action,
			EntityType: rec.EntityType,
			EntityID:   rec.EntityID,
			ActorID:    rec.ActorID,
			TenantID:   rec.TenantID,
			OccurredAt: rec.OccurredAt,
		})
	}
	return nil
}

// emit mirrors the record as a JSON audit line.
func (r *Recorder) emit(ctx context.Context, rec *access.AuditRecord) {
	entry := map[string]any{
		"ts":          rec.OccurredAt.Format(time.RFC3339Nano),
		"type":        "audit",
		"event":       rec.Action,
		"entity_type": rec.EntityType,
		"entity_id":   rec.EntityID,
		"tenant_id":   rec.TenantID,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if rec.ActorID != "" {
		entry["actor_id"] = rec.ActorID
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
}
