package service

import (
	"context"
	"sync"

	"friendpush/internal/models"
	"friendpush/internal/notifications"
)

type requestRepoStub struct {
	saveFn              func(context.Context, uint, uint) (*models.FriendRequest, error)
	saveUniquePendingFn func(context.Context, uint, uint) (*models.FriendRequest, error)
	findByIDFn          func(context.Context, uint) (*models.FriendRequest, error)
	listAllFn           func(context.Context) ([]models.FriendRequest, error)
	listForUserFn       func(context.Context, uint) ([]models.FriendRequest, error)
	listByRecipientFn   func(context.Context, uint, models.FriendRequestStatus) ([]models.FriendRequest, error)
}

func (s *requestRepoStub) Save(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error) {
	return s.saveFn(ctx, requesterID, recipientID)
}
func (s *requestRepoStub) SaveUniquePending(ctx context.Context, requesterID, recipientID uint) (*models.FriendRequest, error) {
	return s.saveUniquePendingFn(ctx, requesterID, recipientID)
}
func (s *requestRepoStub) FindByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	return s.findByIDFn(ctx, id)
}
func (s *requestRepoStub) ListAll(ctx context.Context) ([]models.FriendRequest, error) {
	return s.listAllFn(ctx)
}
func (s *requestRepoStub) ListForUser(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.listForUserFn(ctx, userID)
}
func (s *requestRepoStub) ListByRecipient(ctx context.Context, recipientID uint, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	return s.listByRecipientFn(ctx, recipientID, status)
}

type userRepoStub struct {
	findByIDFn          func(context.Context, uint) (*models.User, error)
	findByUsernameFn    func(context.Context, string) (*models.User, error)
	updateDeviceTokenFn func(context.Context, string, *string) (*models.User, error)
	createFn            func(context.Context, *models.User) error
}

func (s *userRepoStub) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return s.findByIDFn(ctx, id)
}
func (s *userRepoStub) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findByUsernameFn(ctx, username)
}
func (s *userRepoStub) UpdateDeviceToken(ctx context.Context, username string, token *string) (*models.User, error) {
	return s.updateDeviceTokenFn(ctx, username, token)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}

func noopRequestRepo() *requestRepoStub {
	var nextID uint
	save := func(_ context.Context, requesterID, recipientID uint) (*models.FriendRequest, error) {
		nextID++
		fr := models.NewFriendRequest(requesterID, recipientID, fixedNow)
		fr.ID = nextID
		return fr, nil
	}
	return &requestRepoStub{
		saveFn:              save,
		saveUniquePendingFn: save,
		findByIDFn:          func(context.Context, uint) (*models.FriendRequest, error) { return nil, nil },
		listAllFn:           func(context.Context) ([]models.FriendRequest, error) { return []models.FriendRequest{}, nil },
		listForUserFn:       func(context.Context, uint) ([]models.FriendRequest, error) { return []models.FriendRequest{}, nil },
		listByRecipientFn: func(context.Context, uint, models.FriendRequestStatus) ([]models.FriendRequest, error) {
			return []models.FriendRequest{}, nil
		},
	}
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		findByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
		findByUsernameFn:    func(context.Context, string) (*models.User, error) { return nil, nil },
		updateDeviceTokenFn: func(context.Context, string, *string) (*models.User, error) { return &models.User{}, nil },
		createFn:            func(context.Context, *models.User) error { return nil },
	}
}

type dispatcherStub struct {
	mu   sync.Mutex
	jobs []notifications.FriendRequestJob
	err  error
}

func (d *dispatcherStub) DispatchFriendRequest(_ context.Context, job notifications.FriendRequestJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return d.err
}

type publisherStub struct {
	mu        sync.Mutex
	published []*models.FriendRequest
	err       error
}

func (p *publisherStub) PublishFriendRequestCreated(_ context.Context, fr *models.FriendRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, fr)
	return p.err
}
