package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/types"
)

// SetupContext returns a context carrying the default tenant, user and a request id.
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetTenantID(ctx, types.DefaultTenantID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}

// WithTenant switches the tenant on ctx.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return types.SetTenantID(ctx, tenantID)
}
