// Package monitor runs registered health checks and escalates alerts that
// stay unresolved. It is a plain service object with an injected clock and
// notifier sinks so tests can drive time and observe alerts directly.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"ilkys.app/internal/obs"
)

// Severities attached to outgoing alerts.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
	SeverityResolved = "resolved"
)

// CheckFunc probes one dependency; nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Alert is one notification about a check transition.
type Alert struct {
	Check    string
	Severity string
	Message  string
	At       time.Time
}

// Notifier delivers alerts. Delivery failures are logged, never retried.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

type checkState struct {
	failingSince time.Time
	escalated    bool
	lastErr      error
}

// Monitor evaluates checks on an interval and tracks failure duration per
// check, deduplicating alerts by check name.
type Monitor struct {
	mu        sync.Mutex
	checks    map[string]CheckFunc
	state     map[string]*checkState
	notifiers []Notifier

	now           func() time.Time
	interval      time.Duration
	escalateAfter time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures Monitor.
type Option func(*Monitor)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Monitor) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithInterval sets how often checks run.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithEscalateAfter sets how long a check may fail before a critical alert.
func WithEscalateAfter(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.escalateAfter = d
		}
	}
}

// WithNotifier adds an alert sink.
func WithNotifier(n Notifier) Option {
	return func(m *Monitor) {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
}

func New(opts ...Option) *Monitor {
	m := &Monitor{
		checks:        map[string]CheckFunc{},
		state:         map[string]*checkState{},
		now:           time.Now,
		interval:      30 * time.Second,
		escalateAfter: 5 * time.Minute,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a named check. Registering an existing name replaces it.
func (m *Monitor) Register(name string, fn CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = fn
}

// Start runs the evaluation loop until Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.RunOnce(ctx)
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// RunOnce evaluates every registered check exactly once.
func (m *Monitor) RunOnce(ctx context.Context) {
	m.mu.Lock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	m.mu.Unlock()

	for _, name := range names {
		m.evaluate(ctx, name)
	}

	m.mu.Lock()
	obs.SetUnhealthyChecks(len(m.state))
	m.mu.Unlock()
}

func (m *Monitor) evaluate(ctx context.Context, name string) {
	m.mu.Lock()
	fn := m.checks[name]
	m.mu.Unlock()
	if fn == nil {
		return
	}

	err := fn(ctx)
	now := m.now()

	m.mu.Lock()
	st := m.state[name]
	var alert *Alert
	switch {
	case err == nil && st != nil:
		delete(m.state, name)
		alert = &Alert{Check: name, Severity: SeverityResolved, Message: "check recovered", At: now}
	case err != nil && st == nil:
		m.state[name] = &checkState{failingSince: now, lastErr: err}
		alert = &Alert{Check: name, Severity: SeverityWarning, Message: err.Error(), At: now}
	case err != nil:
		st.lastErr = err
		if !st.escalated && now.Sub(st.failingSince) >= m.escalateAfter {
			st.escalated = true
			alert = &Alert{Check: name, Severity: SeverityCritical, Message: err.Error(), At: now}
		}
	}
	m.mu.Unlock()

	if alert != nil {
		m.notify(ctx, *alert)
	}
}

func (m *Monitor) notify(ctx context.Context, alert Alert) {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			obs.LogEvent(map[string]any{
				"ts":    m.now().UTC().Format(time.RFC3339Nano),
				"level": "error",
				"msg":   "alert delivery failed",
				"check": alert.Check,
				"error": err.Error(),
			})
		}
	}
}

// Healthy reports whether no check is currently failing.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state) == 0
}

// Unhealthy returns the names of currently failing checks, sorted.
func (m *Monitor) Unhealthy() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.state))
	for name := range m.state {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LogNotifier writes alerts to the structured log. The default sink when no
// external channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, alert Alert) error {
	obs.LogEvent(map[string]any{
		"ts":       alert.At.UTC().Format(time.RFC3339Nano),
		"type":     "alert",
		"check":    alert.Check,
		"severity": alert.Severity,
		"msg":      alert.Message,
	})
	return nil
}
