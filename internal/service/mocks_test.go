package service

import (
	"context"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockIndexStore mocks the IndexStore interface
type MockIndexStore struct {
	mock.Mock
}

func (m *MockIndexStore) Create(ctx context.Context, userID int64, lastMessage string) (*domain.ConversationIndex, error) {
	args := m.Called(ctx, userID, lastMessage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationIndex), args.Error(1)
}

func (m *MockIndexStore) GetByUUID(ctx context.Context, uuid string) (*domain.ConversationIndex, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationIndex), args.Error(1)
}

func (m *MockIndexStore) ListByUser(ctx context.Context, userID int64) ([]domain.ConversationIndex, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.ConversationIndex), args.Error(1)
}

func (m *MockIndexStore) GetActiveByUser(ctx context.Context, userID int64) (*domain.ConversationIndex, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationIndex), args.Error(1)
}

func (m *MockIndexStore) ListTransferredByService(ctx context.Context, serviceUserID int64) ([]domain.ConversationIndex, error) {
	args := m.Called(ctx, serviceUserID)
	return args.Get(0).([]domain.ConversationIndex), args.Error(1)
}

func (m *MockIndexStore) ListTransferred(ctx context.Context) ([]domain.ConversationIndex, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ConversationIndex), args.Error(1)
}

func (m *MockIndexStore) ListAll(ctx context.Context) ([]domain.ConversationIndex, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ConversationIndex), args.Error(1)
}

func (m *MockIndexStore) UpdateLastMessage(ctx context.Context, uuid, text string) error {
	args := m.Called(ctx, uuid, text)
	return args.Error(0)
}

func (m *MockIndexStore) Transfer(ctx context.Context, uuid string, serviceUserID int64) (*domain.ConversationIndex, error) {
	args := m.Called(ctx, uuid, serviceUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationIndex), args.Error(1)
}

func (m *MockIndexStore) Close(ctx context.Context, uuid string) (*domain.ConversationIndex, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationIndex), args.Error(1)
}

func (m *MockIndexStore) Delete(ctx context.Context, uuid string) error {
	args := m.Called(ctx, uuid)
	return args.Error(0)
}

func (m *MockIndexStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockContentStore mocks the ContentStore interface
type MockContentStore struct {
	mock.Mock
}

func (m *MockContentStore) Create(ctx context.Context, transcript *domain.Transcript) error {
	args := m.Called(ctx, transcript)
	return args.Error(0)
}

func (m *MockContentStore) Append(ctx context.Context, uuid string, speaker domain.Speaker, text string) (*domain.Message, error) {
	args := m.Called(ctx, uuid, speaker, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockContentStore) GetByUUID(ctx context.Context, uuid string) (*domain.Transcript, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transcript), args.Error(1)
}

func (m *MockContentStore) GetRecentMessages(ctx context.Context, uuid string, n int) ([]domain.Message, error) {
	args := m.Called(ctx, uuid, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockContentStore) ListByUser(ctx context.Context, userID int64) ([]domain.Transcript, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Transcript), args.Error(1)
}

func (m *MockContentStore) Delete(ctx context.Context, uuid string) error {
	args := m.Called(ctx, uuid)
	return args.Error(0)
}

func (m *MockContentStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIdentityResolver mocks the IdentityResolver interface
type MockIdentityResolver struct {
	mock.Mock
}

func (m *MockIdentityResolver) Resolve(ctx context.Context, userID int64) (*domain.Identity, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

// MockRecentCache mocks the RecentCache interface
type MockRecentCache struct {
	mock.Mock
}

func (m *MockRecentCache) Get(ctx context.Context, conversationUUID string, n int) ([]domain.Message, error) {
	args := m.Called(ctx, conversationUUID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockRecentCache) Set(ctx context.Context, conversationUUID string, n int, messages []domain.Message) error {
	args := m.Called(ctx, conversationUUID, n, messages)
	return args.Error(0)
}

func (m *MockRecentCache) Invalidate(ctx context.Context, conversationUUID string) error {
	args := m.Called(ctx, conversationUUID)
	return args.Error(0)
}

// MockLocker mocks the Locker interface
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Lock(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}
