package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taxdocs/internal/model"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, token string) (model.Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(model.Identity), args.Error(1)
}
