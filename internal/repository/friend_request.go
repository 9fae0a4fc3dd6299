package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"friendpush/internal/models"
	"friendpush/internal/observability"

	"gorm.io/gorm"
)

// FriendRequestRepository is the durable store of friend requests.
type FriendRequestRepository interface {
	Save(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error)
	SaveUniquePending(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error)
	FindByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	ListAll(ctx context.Context) ([]models.FriendRequest, error)
	ListForUser(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	ListByRecipient(ctx context.Context, recipientID uint, status models.FriendRequestStatus) ([]models.FriendRequest, error)
}

type friendRequestRepository struct {
	db  *gorm.DB
	now func() time.Time
	log *observability.RepoLogger
}

// FriendRequestOption customizes the repository.
type FriendRequestOption func(*friendRequestRepository)

// WithClock overrides the time source used for RequestedAt.
func WithClock(now func() time.Time) FriendRequestOption {
	return func(r *friendRequestRepository) {
		r.now = now
	}
}

// NewFriendRequestRepository creates a new friend request repository
func NewFriendRequestRepository(db *gorm.DB, opts ...FriendRequestOption) FriendRequestRepository {
	r := &friendRequestRepository{
		db:  db,
		now: time.Now,
		log: observability.NewRepoLogger("friend_requests"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save persists a new PENDING request. Duplicates are allowed.
func (r *friendRequestRepository) Save(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error) {
	defer observability.TrackQuery("save", "friend_requests")()

	fr := models.NewFriendRequest(requesterID, recipientID, r.now())
	if err := r.db.WithContext(ctx).Create(fr).Error; err != nil {
		r.log.LogError(ctx, err, "save")
		return nil, models.NewInternalError(err)
	}
	r.logCreated(ctx, fr)
	return fr, nil
}

// SaveUniquePending persists a new PENDING request unless one already exists for the same
// ordered pair. On Postgres the check and insert are serialized per pair with an advisory lock.
func (r *friendRequestRepository) SaveUniquePending(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error) {
	defer observability.TrackQuery("save_unique_pending", "friend_requests")()

	var fr *models.FriendRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			lockKey := fmt.Sprintf("friend_request:%d:%d", requesterID, recipientID)
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", lockKey).Error; err != nil {
				return err
			}
		}

		var existing int64
		if err := tx.Model(&models.FriendRequest{}).
			Where("requester_id = ? AND recipient_id = ? AND status = ?",
				requesterID, recipientID, models.FriendRequestStatusPending).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return models.NewConflictError("A pending friend request already exists")
		}

		fr = models.NewFriendRequest(requesterID, recipientID, r.now())
		return tx.Create(fr).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		r.log.LogError(ctx, err, "save_unique_pending")
		return nil, models.NewInternalError(err)
	}

	r.logCreated(ctx, fr)
	return fr, nil
}

func (r *friendRequestRepository) logCreated(ctx context.Context, fr *models.FriendRequest) {
	r.log.LogCreate(ctx, map[string]interface{}{
		"friend_request_id": fr.ID,
		"requester_id":      fr.RequesterID,
		"recipient_id":      fr.RecipientID,
	})
}

func (r *friendRequestRepository) FindByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	defer observability.TrackQuery("find_by_id", "friend_requests")()

	var fr models.FriendRequest
	if err := r.db.WithContext(ctx).First(&fr, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.LogError(ctx, err, "find_by_id")
		return nil, models.NewInternalError(err)
	}
	return &fr, nil
}

// ListAll returns every request ordered by id.
func (r *friendRequestRepository) ListAll(ctx context.Context) ([]models.FriendRequest, error) {
	defer observability.TrackQuery("list_all", "friend_requests")()

	requests := []models.FriendRequest{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&requests).Error; err != nil {
		r.log.LogError(ctx, err, "list_all")
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

// ListForUser returns requests userID sent or received, ordered by id.
func (r *friendRequestRepository) ListForUser(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	defer observability.TrackQuery("list_for_user", "friend_requests")()

	requests := []models.FriendRequest{}
	if err := r.db.WithContext(ctx).
		Where("requester_id = ? OR recipient_id = ?", userID, userID).
		Order("id ASC").Find(&requests).Error; err != nil {
		r.log.LogError(ctx, err, "list_for_user")
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}

// ListByRecipient returns requests addressed to recipientID, newest first. An empty status matches all.
func (r *friendRequestRepository) ListByRecipient(ctx context.Context, recipientID uint, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	defer observability.TrackQuery("list_by_recipient", "friend_requests")()

	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	requests := []models.FriendRequest{}
	if err := q.Order("requested_at DESC, id DESC").Find(&requests).Error; err != nil {
		r.log.LogError(ctx, err, "list_by_recipient")
		return nil, models.NewInternalError(err)
	}
	return requests, nil
}
