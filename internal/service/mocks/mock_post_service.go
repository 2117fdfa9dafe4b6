package mocks

import (
	"context"
	"io"

	"boardapi/internal/model"
	"boardapi/internal/service"
	"boardapi/internal/storage"
	"github.com/stretchr/testify/mock"
)

type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) Create(ctx context.Context, draft service.PostDraft, image *service.ImageUpload) (model.Post, error) {
	args := m.Called(ctx, draft, image)
	return args.Get(0).(model.Post), args.Error(1)
}

func (m *MockPostService) List(ctx context.Context) ([]model.Post, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Post), args.Error(1)
}

func (m *MockPostService) Get(ctx context.Context, id int64) (model.Post, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Post), args.Error(1)
}

func (m *MockPostService) Update(ctx context.Context, id int64, title, content string) (model.Post, error) {
	args := m.Called(ctx, id, title, content)
	return args.Get(0).(model.Post), args.Error(1)
}

func (m *MockPostService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostService) OpenImage(ctx context.Context, id int64) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Get(1).(storage.ObjectInfo), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(storage.ObjectInfo), args.Error(2)
}
