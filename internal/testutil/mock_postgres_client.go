package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

// MockPostgresClient runs transaction bodies directly against the in-memory stores
type MockPostgresClient struct{}

func NewMockPostgresClient() *MockPostgresClient {
	return &MockPostgresClient{}
}

func (m *MockPostgresClient) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
