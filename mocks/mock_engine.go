package mocks

import (
	"context"
	"image"

	"github.com/stretchr/testify/mock"

	"docsplit/internal/ocr"
)

// MockEngine is a mock implementation of ocr.Engine.
type MockEngine struct {
	mock.Mock
	EngineName string
}

// Name returns EngineName, or "mock" when unset.
func (m *MockEngine) Name() string {
	if m.EngineName == "" {
		return "mock"
	}
	return m.EngineName
}

func (m *MockEngine) Recognize(ctx context.Context, img image.Image, seg ocr.Segmentation) (ocr.Recognition, error) {
	args := m.Called(ctx, img, seg)
	return args.Get(0).(ocr.Recognition), args.Error(1)
}

func (m *MockEngine) Close() error {
	args := m.Called()
	return args.Error(0)
}
