package mocks

import (
	"context"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockWorkflowRepository) TouchLastRun(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)

	return args.Error(0)
}

// MockChannelBindingRepository is a mock implementation of persistence.ChannelBindingRepository interface.
type MockChannelBindingRepository struct {
	mock.Mock
}

func (m *MockChannelBindingRepository) ListBindings(ctx context.Context, workflowID string) ([]*models.ChannelBinding, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ChannelBinding), args.Error(1)
}

func (m *MockChannelBindingRepository) GetBinding(ctx context.Context, workflowID, channelID string) (*models.ChannelBinding, error) {
	args := m.Called(ctx, workflowID, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ChannelBinding), args.Error(1)
}

func (m *MockChannelBindingRepository) BindChannel(ctx context.Context, binding *models.ChannelBinding) (*models.ChannelBinding, error) {
	args := m.Called(ctx, binding)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ChannelBinding), args.Error(1)
}

func (m *MockChannelBindingRepository) DeleteBinding(ctx context.Context, workflowID, channelID string) error {
	args := m.Called(ctx, workflowID, channelID)

	return args.Error(0)
}

// MockMappingRepository is a mock implementation of persistence.MappingRepository interface.
type MockMappingRepository struct {
	mock.Mock
}

func (m *MockMappingRepository) Get(ctx context.Context, workflowID, channelID string, sourceTS float64) (*models.MessageMapping, error) {
	args := m.Called(ctx, workflowID, channelID, sourceTS)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.MessageMapping), args.Error(1)
}

func (m *MockMappingRepository) Put(ctx context.Context, mapping *models.MessageMapping) (*models.MessageMapping, error) {
	args := m.Called(ctx, mapping)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.MessageMapping), args.Error(1)
}

func (m *MockMappingRepository) ListSince(ctx context.Context, workflowID, channelID string, minSourceTS float64) ([]*models.MessageMapping, error) {
	args := m.Called(ctx, workflowID, channelID, minSourceTS)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.MessageMapping), args.Error(1)
}

func (m *MockMappingRepository) MarkDeleted(ctx context.Context, workflowID, channelID string, sourceTS float64, at time.Time) error {
	args := m.Called(ctx, workflowID, channelID, sourceTS, at)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	workflowRepo *MockWorkflowRepository
	bindingRepo  *MockChannelBindingRepository
	mappingRepo  *MockMappingRepository
}

// NewMockPersistence creates a new MockPersistence with all mock repositories.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		workflowRepo: &MockWorkflowRepository{},
		bindingRepo:  &MockChannelBindingRepository{},
		mappingRepo:  &MockMappingRepository{},
	}
}

// GetMockWorkflowRepository returns the underlying mock workflow repository for setting up expectations.
func (m *MockPersistence) GetMockWorkflowRepository() *MockWorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) GetMockChannelBindingRepository() *MockChannelBindingRepository {
	return m.bindingRepo
}

func (m *MockPersistence) GetMockMappingRepository() *MockMappingRepository {
	return m.mappingRepo
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) ChannelBindingRepository() persistence.ChannelBindingRepository {
	return m.bindingRepo
}

func (m *MockPersistence) MappingRepository() persistence.MappingRepository {
	return m.mappingRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
