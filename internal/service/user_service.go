package service

import (
	"context"
	"strings"

	"friendpush/internal/models"
	"friendpush/internal/repository"
)

// UserService manages a user's push device token.
type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// RegisterDeviceToken stores token for username. Only the user themself may change it.
func (s *UserService) RegisterDeviceToken(ctx context.Context, actorID uint, username, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.NewValidationError("fcmToken is required")
	}
	if err := s.authorize(ctx, actorID, username); err != nil {
		return nil, err
	}
	return s.users.UpdateDeviceToken(ctx, username, &token)
}

// ClearDeviceToken removes the token so the user stops receiving pushes.
func (s *UserService) ClearDeviceToken(ctx context.Context, actorID uint, username string) (*models.User, error) {
	if err := s.authorize(ctx, actorID, username); err != nil {
		return nil, err
	}
	return s.users.UpdateDeviceToken(ctx, username, nil)
}

func (s *UserService) authorize(ctx context.Context, actorID uint, username string) error {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundError("User", username)
	}
	if user.ID != actorID {
		return models.NewForbiddenError("You can only manage your own device token")
	}
	return nil
}
