package identity

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, credential string) (Identity, error) {
	args := m.Called(ctx, credential)
	return args.Get(0).(Identity), args.Error(1)
}
