package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/api/ilkys/grades":               "/api/ilkys/:entity",
		"/api/ilkys/students?limit=10":    "/api/ilkys/:entity",
		"/api/ilkys/grades/extra":         "/api/ilkys/grades/extra",
		"/api/ilkys/":                     "/api/ilkys/",
		"/healthz":                        "/healthz",
		"/v1/info?verbose=1":              "/v1/info",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
