// Package tenant carries the current tenant id through a request context.
package tenant

import "context"

type ctxKey struct{}

// WithID returns a copy of ctx scoped to tenantID.
func WithID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenantID)
}

// FromContext returns the tenant id stored in ctx, or "" when there is none.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Default is the tenant used when authentication is bypassed in development.
const Default = "default"
