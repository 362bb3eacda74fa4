package tenant

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestResolveFromSubdomain(t *testing.T) {
	r := Resolver{BaseDomain: "ilkys.app"}

	req := httptest.NewRequest("GET", "/api/ilkys/students", nil)
	req.Host = "demo-lisesi.ilkys.app:443"

	tc, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tc.ID != "demo_lisesi" {
		t.Fatalf("unexpected tenant id %q", tc.ID)
	}
	if tc.Schema() != "tenant_demo_lisesi" {
		t.Fatalf("unexpected schema %q", tc.Schema())
	}
}

func TestResolveHeaderFallback(t *testing.T) {
	r := Resolver{BaseDomain: "ilkys.app"}

	req := httptest.NewRequest("GET", "/api/ilkys/students", nil)
	req.Host = "api.internal:8080"
	req.Header.Set(HeaderTenantID, "T1")

	tc, err := r.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if tc.ID != "t1" {
		t.Fatalf("expected lower-cased id, got %q", tc.ID)
	}
}

func TestResolveRejectsMissingAndInvalid(t *testing.T) {
	r := Resolver{BaseDomain: "ilkys.app"}

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "ilkys.app"
	if _, err := r.Resolve(req); !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Host = "other.example.com"
	req.Header.Set(HeaderTenantID, `x"; drop table students; --`)
	if _, err := r.Resolve(req); !errors.Is(err, ErrInvalidTenant) {
		t.Fatalf("expected ErrInvalidTenant, got %v", err)
	}

	// Nested subdomains do not resolve; they would be ambiguous.
	req = httptest.NewRequest("GET", "/", nil)
	req.Host = "a.b.ilkys.app"
	if _, err := r.Resolve(req); !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant for nested subdomain, got %v", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	tc, err := Parse("t1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ctx := ContextWith(t.Context(), tc)
	got, ok := FromContext(ctx)
	if !ok || got.ID != "t1" {
		t.Fatalf("round trip failed: %v %v", got, ok)
	}
	if _, ok := FromContext(t.Context()); ok {
		t.Fatal("expected no tenant on empty context")
	}
}
