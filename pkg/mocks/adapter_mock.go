package mocks

import (
	"context"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockSource is a mock implementation of protocol.Source interface.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) ListRecentMessages(ctx context.Context, channelID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, channelID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockSource) ListThread(ctx context.Context, channelID string, rootTS float64) ([]models.Message, error) {
	args := m.Called(ctx, channelID, rootTS)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockSource) ResolveActorName(ctx context.Context, actorID string) (string, error) {
	args := m.Called(ctx, actorID)

	return args.String(0), args.Error(1)
}

// MockTarget is a mock implementation of protocol.Target interface.
type MockTarget struct {
	mock.Mock
}

func (m *MockTarget) CreateSubpage(ctx context.Context, parentID, title string) (string, error) {
	args := m.Called(ctx, parentID, title)

	return args.String(0), args.Error(1)
}

func (m *MockTarget) AppendItems(ctx context.Context, parentID string, items []string) ([]string, error) {
	args := m.Called(ctx, parentID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTarget) UpdateItem(ctx context.Context, blockID, text string) (bool, error) {
	args := m.Called(ctx, blockID, text)

	return args.Bool(0), args.Error(1)
}
