// Package tenant resolves the active tenant for a request and owns the
// schema-per-tenant naming convention. Every other package addresses tenant
// data through Context.Schema, never by concatenating identifiers itself.
package tenant

import (
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
)

var (
	ErrNoTenant      = errors.New("tenant: no tenant in request")
	ErrInvalidTenant = errors.New("tenant: invalid tenant identifier")
)

// HeaderTenantID carries the tenant when the request arrives on a bare host
// (load-balancer health checks, internal tooling).
const HeaderTenantID = "X-Tenant-ID"

var idPattern = regexp.MustCompile(`^[a-z0-9_]{1,40}$`)

// Context identifies the tenant a request operates on.
type Context struct {
	ID string
}

// Schema returns the Postgres schema holding this tenant's entity tables.
// This is the only place the schema name is formed.
func (c Context) Schema() string {
	return "tenant_" + c.ID
}

// Resolver derives tenant identity from the request host or headers.
type Resolver struct {
	// BaseDomain is the apex under which tenant subdomains live,
	// e.g. "ilkys.app" makes "demo.ilkys.app" resolve to tenant "demo".
	BaseDomain string
}

// Resolve returns the tenant context for the request. Subdomain resolution
// wins; the X-Tenant-ID header is the fallback. The identifier is validated
// before it can reach any SQL identifier position.
func (r Resolver) Resolve(req *http.Request) (Context, error) {
	if id := r.fromHost(req.Host); id != "" {
		return newContext(id)
	}
	if id := strings.TrimSpace(req.Header.Get(HeaderTenantID)); id != "" {
		return newContext(id)
	}
	return Context{}, ErrNoTenant
}

func (r Resolver) fromHost(host string) string {
	if r.BaseDomain == "" || host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	suffix := "." + strings.ToLower(r.BaseDomain)
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	// Subdomains use hyphens; schema identifiers use underscores.
	return strings.ReplaceAll(sub, "-", "_")
}

func newContext(id string) (Context, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !idPattern.MatchString(id) {
		return Context{}, ErrInvalidTenant
	}
	return Context{ID: id}, nil
}

// Parse validates a raw tenant identifier outside of a request, e.g. for
// migration tooling.
func Parse(id string) (Context, error) {
	return newContext(id)
}
