// Package audit records every access and mutation attempt against the entity
// API. Handlers describe the outcome as an Event; the Recorder guarantees one
// persistence attempt per event without putting the write on the response path.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"

	"ilkys.app/internal/ids"
	"ilkys.app/internal/obs"
)

// Action types stored with each entry.
const (
	ActionRead     = "READ"
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionAPIError = "API_ERROR"
)

// Event is one audit trail entry. Previous and New carry the pre- and
// post-image of batch mutations.
type Event struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	ActorID      string         `json:"actor_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Description  string         `json:"description,omitempty"`
	Previous     any            `json:"previous_state,omitempty"`
	New          any            `json:"new_state,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	At           time.Time      `json:"at"`
}

// Store persists entries append-only.
type Store interface {
	Append(ctx context.Context, ev *Event) error
}

const writeTimeout = 5 * time.Second

// Recorder queues events and drains them on a single background worker.
// A failed write never fails the request that produced the event; it is
// logged and counted instead.
type Recorder struct {
	store Store
	queue chan Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder starts the drain worker. A nil store degrades to log-only
// delivery, which keeps handler tests free of persistence setup.
func NewRecorder(store Store, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		store: store,
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
	}
	go r.drain()
	return r
}

// Record stamps and enqueues the event. When the queue is full the write
// happens inline so the attempt is never dropped.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = ids.New()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		if ev.Metadata == nil {
			ev.Metadata = map[string]any{}
		}
		ev.Metadata["request_id"] = rid
	}

	select {
	case r.queue <- ev:
		obs.SetAuditQueueDepth(len(r.queue))
	default:
		r.write(ev)
	}
}

// Close stops accepting events and waits for the backlog to drain.
func (r *Recorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() { close(r.queue) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for ev := range r.queue {
		r.write(ev)
		obs.SetAuditQueueDepth(len(r.queue))
	}
}

func (r *Recorder) write(ev Event) {
	obs.LogEvent(map[string]any{
		"ts":            ev.At.Format(time.RFC3339Nano),
		"type":          "audit",
		"event":         ev.Action,
		"tenant_id":     ev.TenantID,
		"actor_id":      ev.ActorID,
		"resource_type": ev.ResourceType,
		"resource_id":   ev.ResourceID,
		"description":   ev.Description,
		"fields":        ev.Metadata,
	})
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.Append(ctx, &ev); err != nil {
		obs.ObserveAuditFailure()
		obs.LogEvent(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "audit append failed",
			"error": err.Error(),
			"event": ev.Action,
		})
	}
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so audit
// entries can be correlated with access logs.
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
