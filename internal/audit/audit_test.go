package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu      sync.Mutex
	entries []Event
	err     error
}

func (s *memStore) Append(_ context.Context, ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, *ev)
	return nil
}

func (s *memStore) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.entries))
	copy(out, s.entries)
	return out
}

func TestRecorderPersistsAndStamps(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store, 8)

	ctx := WithRequestID(context.Background(), "req-1")
	rec.Record(ctx, Event{
		TenantID:     "t1",
		ActorID:      "u1",
		Action:       ActionAPIError,
		ResourceType: "grades",
		Metadata:     map[string]any{"required_permission": "grade.create"},
	})

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := store.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ev := entries[0]
	if ev.ID == "" || ev.At.IsZero() {
		t.Fatalf("event not stamped: %+v", ev)
	}
	if ev.Metadata["request_id"] != "req-1" {
		t.Fatalf("request id not attached: %v", ev.Metadata)
	}
	if ev.Metadata["required_permission"] != "grade.create" {
		t.Fatalf("metadata lost: %v", ev.Metadata)
	}
}

func TestRecorderSurvivesStoreFailure(t *testing.T) {
	store := &memStore{err: errors.New("connection refused")}
	rec := NewRecorder(store, 1)

	// Neither call may block or panic, including the inline fallback path
	// taken when the queue is full.
	for i := 0; i < 10; i++ {
		rec.Record(context.Background(), Event{Action: ActionCreate, TenantID: "t1"})
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), Event{Action: ActionRead})
}
