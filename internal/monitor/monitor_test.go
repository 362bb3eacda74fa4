package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (s *stubNotifier) Notify(_ context.Context, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *stubNotifier) all() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

func TestMonitorAlertAndRecovery(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	notifier := &stubNotifier{}
	m := New(
		WithClock(func() time.Time { return now }),
		WithEscalateAfter(time.Minute),
		WithNotifier(notifier),
	)

	var failing bool
	m.Register("db", func(context.Context) error {
		if failing {
			return errors.New("connection refused")
		}
		return nil
	})

	m.RunOnce(t.Context())
	if !m.Healthy() {
		t.Fatal("expected healthy monitor")
	}
	if len(notifier.all()) != 0 {
		t.Fatalf("unexpected alerts %v", notifier.all())
	}

	failing = true
	m.RunOnce(t.Context())
	if m.Healthy() {
		t.Fatal("expected unhealthy monitor")
	}
	alerts := notifier.all()
	if len(alerts) != 1 || alerts[0].Severity != SeverityWarning {
		t.Fatalf("expected one warning, got %v", alerts)
	}

	// Repeated failures before the escalation window stay silent.
	now = now.Add(30 * time.Second)
	m.RunOnce(t.Context())
	if len(notifier.all()) != 1 {
		t.Fatalf("expected deduplicated alerts, got %v", notifier.all())
	}

	// Crossing the window escalates once.
	now = now.Add(time.Minute)
	m.RunOnce(t.Context())
	alerts = notifier.all()
	if len(alerts) != 2 || alerts[1].Severity != SeverityCritical {
		t.Fatalf("expected escalation, got %v", alerts)
	}
	m.RunOnce(t.Context())
	if len(notifier.all()) != 2 {
		t.Fatalf("escalation must fire once, got %v", notifier.all())
	}

	failing = false
	m.RunOnce(t.Context())
	alerts = notifier.all()
	if len(alerts) != 3 || alerts[2].Severity != SeverityResolved {
		t.Fatalf("expected recovery alert, got %v", alerts)
	}
	if !m.Healthy() {
		t.Fatal("expected healthy monitor after recovery")
	}
}

func TestMonitorUnhealthyNames(t *testing.T) {
	m := New(WithClock(time.Now))
	m.Register("db", func(context.Context) error { return errors.New("down") })
	m.Register("queue", func(context.Context) error { return nil })

	m.RunOnce(t.Context())
	names := m.Unhealthy()
	if len(names) != 1 || names[0] != "db" {
		t.Fatalf("unexpected unhealthy set %v", names)
	}
}

func TestMonitorStartStop(t *testing.T) {
	m := New(WithInterval(5 * time.Millisecond))
	var mu sync.Mutex
	runs := 0
	m.Register("tick", func(context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})

	m.Start(t.Context())
	time.Sleep(25 * time.Millisecond)
	m.Stop()

	mu.Lock()
	defer mu.Unlock()
	if runs == 0 {
		t.Fatal("expected the loop to run at least once")
	}
}
