package mocks

import (
	"context"

	"boardapi/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) FindAll(ctx context.Context) ([]model.Post, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Post), args.Error(1)
}

func (m *MockPostRepository) FindByID(ctx context.Context, id int64) (model.Post, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Post), args.Error(1)
}

func (m *MockPostRepository) Save(ctx context.Context, post model.Post) (model.Post, error) {
	args := m.Called(ctx, post)
	if f, ok := args.Get(0).(func(context.Context, model.Post) model.Post); ok {
		return f(ctx, post), args.Error(1)
	}
	return args.Get(0).(model.Post), args.Error(1)
}

func (m *MockPostRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostRepository) DeleteByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
