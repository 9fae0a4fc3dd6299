package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"friendpush/internal/featureflags"
	"friendpush/internal/models"
	"friendpush/internal/notifications"
	"friendpush/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func TestSendFriendRequest_Self(t *testing.T) {
	repo := noopRequestRepo()
	saved := false
	repo.saveFn = func(context.Context, uint, uint) (*models.FriendRequest, error) {
		saved = true
		return nil, nil
	}
	dispatcher := &dispatcherStub{}
	svc := NewFriendRequestService(repo, noopUserRepo(), dispatcher, nil, nil)

	_, err := svc.SendFriendRequest(context.Background(), 3, 3)
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	assert.Equal(t, "Cannot send friend request to yourself", err.Error())
	assert.False(t, saved)
	assert.Empty(t, dispatcher.jobs)
}

func TestSendFriendRequest_UnknownRecipient(t *testing.T) {
	users := noopUserRepo()
	users.findByIDFn = func(context.Context, uint) (*models.User, error) { return nil, nil }
	repo := noopRequestRepo()
	repo.saveFn = func(context.Context, uint, uint) (*models.FriendRequest, error) {
		t.Fatal("save must not be called")
		return nil, nil
	}
	svc := NewFriendRequestService(repo, users, &dispatcherStub{}, nil, nil)

	_, err := svc.SendFriendRequest(context.Background(), 1, 99)
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	assert.Equal(t, "Recipient does not exist", err.Error())
}

func TestSendFriendRequest_DirectoryFailure(t *testing.T) {
	users := noopUserRepo()
	users.findByIDFn = func(context.Context, uint) (*models.User, error) {
		return nil, models.NewInternalError(errors.New("connection reset"))
	}
	svc := NewFriendRequestService(noopRequestRepo(), users, nil, nil, nil)

	_, err := svc.SendFriendRequest(context.Background(), 1, 2)
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
}

func TestSendFriendRequest_PersistsThenDispatchesAndPublishes(t *testing.T) {
	dispatcher := &dispatcherStub{}
	publisher := &publisherStub{}
	svc := NewFriendRequestService(noopRequestRepo(), noopUserRepo(), dispatcher, publisher, nil)

	ctx := observability.WithCorrelationID(context.Background(), "req-1")
	fr, err := svc.SendFriendRequest(ctx, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, uint(1), fr.ID)
	assert.Equal(t, models.FriendRequestStatusPending, fr.Status)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, uint(1), dispatcher.jobs[0].FriendRequestID)
	assert.Equal(t, uint(1), dispatcher.jobs[0].RequesterID)
	assert.Equal(t, uint(2), dispatcher.jobs[0].RecipientID)
	assert.Equal(t, "req-1", dispatcher.jobs[0].CorrelationID)
	require.Len(t, publisher.published, 1)
	assert.Same(t, fr, publisher.published[0])
}

func TestSendFriendRequest_PostCommitFailuresDoNotFailTheCall(t *testing.T) {
	dispatcher := &dispatcherStub{err: errors.New("redis unavailable")}
	publisher := &publisherStub{err: errors.New("kafka unavailable")}
	svc := NewFriendRequestService(noopRequestRepo(), noopUserRepo(), dispatcher, publisher, nil)

	fr, err := svc.SendFriendRequest(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.NotNil(t, fr)
	assert.Len(t, publisher.published, 1)
}

func TestSendFriendRequest_PostCommitSurvivesCancelledRequest(t *testing.T) {
	var dispatchCtxErr error
	dispatcher := &ctxCapturingDispatcher{onDispatch: func(ctx context.Context) { dispatchCtxErr = ctx.Err() }}
	repo := noopRequestRepo()

	ctx, cancel := context.WithCancel(context.Background())
	inner := repo.saveFn
	repo.saveFn = func(c context.Context, a, b uint) (*models.FriendRequest, error) {
		fr, err := inner(c, a, b)
		cancel()
		return fr, err
	}
	svc := NewFriendRequestService(repo, noopUserRepo(), dispatcher, nil, nil)

	_, err := svc.SendFriendRequest(ctx, 1, 2)
	require.NoError(t, err)
	assert.NoError(t, dispatchCtxErr)
}

func TestSendFriendRequest_StalledPublisherIsBounded(t *testing.T) {
	publisher := &blockingPublisher{}
	dispatcher := &dispatcherStub{}
	svc := NewFriendRequestService(noopRequestRepo(), noopUserRepo(), dispatcher, publisher, nil)
	svc.postCommitTimeout = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := svc.SendFriendRequest(context.Background(), 1, 2)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SendFriendRequest blocked on a stalled publisher")
	}
	assert.ErrorIs(t, publisher.err, context.DeadlineExceeded)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, fixedNow, dispatcher.jobs[0].RequestedAt)
}

func TestSendFriendRequest_StorageFailure(t *testing.T) {
	repo := noopRequestRepo()
	repo.saveFn = func(context.Context, uint, uint) (*models.FriendRequest, error) {
		return nil, models.NewInternalError(errors.New("disk full"))
	}
	dispatcher := &dispatcherStub{}
	svc := NewFriendRequestService(repo, noopUserRepo(), dispatcher, nil, nil)

	_, err := svc.SendFriendRequest(context.Background(), 1, 2)
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
	assert.Empty(t, dispatcher.jobs)
}

func TestSendFriendRequest_DedupeFlagSelectsUniqueSave(t *testing.T) {
	repo := noopRequestRepo()
	var plain, unique int
	repo.saveFn = func(context.Context, uint, uint) (*models.FriendRequest, error) {
		plain++
		return &models.FriendRequest{ID: 1}, nil
	}
	repo.saveUniquePendingFn = func(context.Context, uint, uint) (*models.FriendRequest, error) {
		unique++
		return nil, models.NewConflictError("A pending friend request already exists")
	}

	off := NewFriendRequestService(repo, noopUserRepo(), nil, nil, featureflags.NewManager(""))
	_, err := off.SendFriendRequest(context.Background(), 1, 2)
	require.NoError(t, err)

	on := NewFriendRequestService(repo, noopUserRepo(), nil, nil, featureflags.NewManager("dedupe_pending_requests=on"))
	_, err = on.SendFriendRequest(context.Background(), 1, 2)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	assert.Equal(t, 1, plain)
	assert.Equal(t, 1, unique)
}

func TestGetFriendRequest(t *testing.T) {
	repo := noopRequestRepo()
	repo.findByIDFn = func(_ context.Context, id uint) (*models.FriendRequest, error) {
		if id == 5 {
			return &models.FriendRequest{ID: 5, RequesterID: 1, RecipientID: 2}, nil
		}
		return nil, nil
	}
	svc := NewFriendRequestService(repo, noopUserRepo(), nil, nil, nil)

	for _, actor := range []uint{1, 2} {
		fr, err := svc.GetFriendRequest(context.Background(), actor, 5)
		require.NoError(t, err)
		assert.Equal(t, uint(5), fr.ID)
	}

	_, err := svc.GetFriendRequest(context.Background(), 3, 5)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	_, err = svc.GetFriendRequest(context.Background(), 1, 6)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestListFriendRequests_ScopedToActor(t *testing.T) {
	repo := noopRequestRepo()
	var gotUser uint
	repo.listForUserFn = func(_ context.Context, userID uint) ([]models.FriendRequest, error) {
		gotUser = userID
		return []models.FriendRequest{{ID: 1, RequesterID: userID}}, nil
	}
	repo.listAllFn = func(context.Context) ([]models.FriendRequest, error) {
		t.Fatal("ListAll must not back a user-facing list")
		return nil, nil
	}
	svc := NewFriendRequestService(repo, noopUserRepo(), nil, nil, nil)

	got, err := svc.ListFriendRequests(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint(7), gotUser)
	assert.Len(t, got, 1)
}

func TestListIncoming_StatusFilter(t *testing.T) {
	repo := noopRequestRepo()
	var gotStatus models.FriendRequestStatus
	repo.listByRecipientFn = func(_ context.Context, _ uint, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
		gotStatus = status
		return []models.FriendRequest{}, nil
	}
	svc := NewFriendRequestService(repo, noopUserRepo(), nil, nil, nil)

	_, err := svc.ListIncoming(context.Background(), 2, models.FriendRequestStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestStatusPending, gotStatus)

	_, err = svc.ListIncoming(context.Background(), 2, "MAYBE")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

type ctxCapturingDispatcher struct {
	onDispatch func(context.Context)
}

func (d *ctxCapturingDispatcher) DispatchFriendRequest(ctx context.Context, _ notifications.FriendRequestJob) error {
	d.onDispatch(ctx)
	return nil
}

// blockingPublisher waits for its context like a writer stuck on an unreachable broker.
type blockingPublisher struct {
	err error
}

func (p *blockingPublisher) PublishFriendRequestCreated(ctx context.Context, _ *models.FriendRequest) error {
	<-ctx.Done()
	p.err = ctx.Err()
	return p.err
}
