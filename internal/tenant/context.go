package tenant

import "context"

type tenantContextKey struct{}

// ContextWith attaches the resolved tenant to the request context.
func ContextWith(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// FromContext extracts the tenant placed by the resolver middleware.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	tc, ok := ctx.Value(tenantContextKey{}).(Context)
	if !ok || tc.ID == "" {
		return Context{}, false
	}
	return tc, true
}
