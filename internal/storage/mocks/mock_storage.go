package mocks

import (
	"context"
	"io"

	"taxdocs/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, owner, name string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	args := m.Called(ctx, owner, name, r, opt)
	if f, ok := args.Get(0).(func(context.Context, string, string, io.Reader, storage.PutObjectOptions) storage.ObjectInfo); ok {
		return f(ctx, owner, name, r, opt), args.Error(1)
	}
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockStorage) Get(ctx context.Context, owner, name string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, owner, name)
	var rc io.ReadCloser
	if v := args.Get(0); v != nil {
		rc = v.(io.ReadCloser)
	}
	return rc, args.Get(1).(storage.ObjectInfo), args.Error(2)
}

func (m *MockStorage) Delete(ctx context.Context, owner, name string) error {
	args := m.Called(ctx, owner, name)
	return args.Error(0)
}

func (m *MockStorage) Exists(ctx context.Context, owner, name string) (bool, error) {
	args := m.Called(ctx, owner, name)
	return args.Bool(0), args.Error(1)
}
