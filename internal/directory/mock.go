package directory

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDirectory) GetUser(ctx context.Context, userId string) (User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockDirectory) ListUserRooms(ctx context.Context, userId string) ([]string, error) {
	args := m.Called(ctx, userId)
	if rooms, ok := args.Get(0).([]string); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectory) Close() error {
	args := m.Called()
	return args.Error(0)
}
