package server

import (
	"context"

	"friendpush/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateDeviceToken(ctx context.Context, username string, token *string) (*models.User, error) {
	args := m.Called(ctx, username, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockFriendRequestRepository is a mock of the FriendRequestRepository interface
type MockFriendRequestRepository struct {
	mock.Mock
}

func (m *MockFriendRequestRepository) Save(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error) {
	args := m.Called(ctx, requesterID, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FriendRequest), args.Error(1)
}

func (m *MockFriendRequestRepository) SaveUniquePending(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error) {
	args := m.Called(ctx, requesterID, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FriendRequest), args.Error(1)
}

func (m *MockFriendRequestRepository) FindByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FriendRequest), args.Error(1)
}

func (m *MockFriendRequestRepository) ListAll(ctx context.Context) ([]models.FriendRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FriendRequest), args.Error(1)
}

func (m *MockFriendRequestRepository) ListByRecipient(ctx context.Context, recipientID uint, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	args := m.Called(ctx, recipientID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FriendRequest), args.Error(1)
}

func (m *MockFriendRequestRepository) ListForUser(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FriendRequest), args.Error(1)
}
