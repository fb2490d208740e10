package mocks

import (
	"context"

	"taxdocs/internal/model"
	"taxdocs/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, id model.Identity, in service.UploadInput) (*model.Document, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, id model.Identity, owner, storedName string) (*service.Object, error) {
	args := m.Called(ctx, id, owner, storedName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Object), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id model.Identity, owner, storedName string) error {
	args := m.Called(ctx, id, owner, storedName)
	return args.Error(0)
}

func (m *MockDocumentService) List(ctx context.Context, id model.Identity, owner string, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, id, owner, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}
