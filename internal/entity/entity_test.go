package entity

import (
	"errors"
	"testing"

	"ilkys.app/internal/tenant"
)

func TestLookupCatalog(t *testing.T) {
	for _, name := range Names() {
		e, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if e.Resource == "" {
			t.Fatalf("entity %q has no resource name", name)
		}
	}
	if len(Names()) != 13 {
		t.Fatalf("expected 13 catalog entities, got %d", len(Names()))
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, name := range []string{"", "invoices", "Students", "students;drop"} {
		if _, err := Lookup(name); !errors.Is(err, ErrUnknown) {
			t.Fatalf("Lookup(%q): expected ErrUnknown, got %v", name, err)
		}
	}
}

func TestPermissionAndTable(t *testing.T) {
	e, err := Lookup("grades")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got := e.Permission("create"); got != "grade.create" {
		t.Fatalf("unexpected permission %q", got)
	}

	tc, err := tenant.Parse("t1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ref := e.Table(tc)
	if ref.String() != `"tenant_t1"."grades"` {
		t.Fatalf("unexpected table ref %q", ref.String())
	}
}
