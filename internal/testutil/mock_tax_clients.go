package testutil

import (
	"context"

	"github.com/flexprice/billingcore/internal/tax"
	"github.com/stretchr/testify/mock"
)

var (
	_ tax.PlatformClient = (*MockPlatformClient)(nil)
	_ tax.ExternalClient = (*MockExternalClient)(nil)
)

type MockPlatformClient struct {
	mock.Mock
}

func (m *MockPlatformClient) CalculateTax(ctx context.Context, req tax.PlatformTaxRequest) (*tax.PlatformTaxResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.PlatformTaxResponse), args.Error(1)
}

type MockExternalClient struct {
	mock.Mock
}

func (m *MockExternalClient) CalculateTax(ctx context.Context, req tax.ExternalTaxRequest) (*tax.ExternalTaxResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tax.ExternalTaxResponse), args.Error(1)
}
