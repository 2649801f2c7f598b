package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docsplit/internal/audit"
)

// MockTransport is a mock implementation of audit.Transport.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, rec audit.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}
