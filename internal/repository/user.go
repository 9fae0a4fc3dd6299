package repository

import (
	"context"
	"errors"
	"time"

	"friendpush/internal/cache"
	"friendpush/internal/models"
	"friendpush/internal/observability"

	"gorm.io/gorm"
)

// UserRepository is the user directory: lookups and device token registration.
// Lookups return (nil, nil) when the user does not exist.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateDeviceToken(ctx context.Context, username string, token *string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

// cachedUser is the Redis shape of a user. models.User hides the token from JSON.
type cachedUser struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	DeviceToken *string   `json:"device_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var errUserMissing = errors.New("user missing")

func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	defer observability.TrackQuery("find_by_id", "users")()

	var entry cachedUser
	err := cache.Aside(ctx, cache.UserKey(id), &entry, cache.UserTTL, func() error {
		var user models.User
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errUserMissing
			}
			return err
		}
		entry = cachedUser(user)
		return nil
	})
	if errors.Is(err, errUserMissing) {
		return nil, nil
	}
	if err != nil {
		r.log.LogError(ctx, err, "find_by_id")
		return nil, models.NewInternalError(err)
	}

	user := models.User(entry)
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	defer observability.TrackQuery("find_by_username", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.LogError(ctx, err, "find_by_username")
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// UpdateDeviceToken overwrites the user's token (nil clears it) and refreshes UpdatedAt.
func (r *userRepository) UpdateDeviceToken(ctx context.Context, username string, token *string) (*models.User, error) {
	defer observability.TrackQuery("update_device_token", "users")()

	user, err := r.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}

	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"fcm_token":  token,
		"updated_at": now,
	}).Error; err != nil {
		r.log.LogError(ctx, err, "update_device_token")
		return nil, models.NewInternalError(err)
	}
	user.DeviceToken = token
	user.UpdatedAt = now

	cache.InvalidateUserAfterWrite(ctx, user.ID)
	r.log.LogUpdate(ctx, map[string]interface{}{
		"user_id":   user.ID,
		"field":     "fcm_token",
		"has_token": user.HasDeviceToken(),
	})
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("User already exists")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"user_id": user.ID})
	return nil
}
