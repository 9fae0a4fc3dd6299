package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"friendpush/internal/models"
	"friendpush/internal/notifications"
	"friendpush/internal/push"
	"friendpush/internal/repository"
	"friendpush/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturingProvider struct {
	mu   sync.Mutex
	sent []*push.Message
	err  error
}

func (p *capturingProvider) Name() string { return "capture" }

func (p *capturingProvider) Send(_ context.Context, msg *push.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	if p.err != nil {
		return "", p.err
	}
	return "projects/test/messages/1", nil
}

type pipeline struct {
	db       *gorm.DB
	svc      *FriendRequestService
	requests repository.FriendRequestRepository
	provider *capturingProvider
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	users := repository.NewUserRepository(db)
	requests := repository.NewFriendRequestRepository(db)
	provider := &capturingProvider{}
	sender := notifications.NewSender(users, provider)
	return &pipeline{
		db:       db,
		svc:      NewFriendRequestService(requests, users, notifications.NewInlineDispatcher(sender), nil, nil),
		requests: requests,
		provider: provider,
	}
}

func TestPipeline_DeliversPushToRecipient(t *testing.T) {
	p := newPipeline(t)
	alice := testutil.CreateUser(t, p.db, "alice", nil)
	bob := testutil.CreateUser(t, p.db, "bob", testutil.StrPtr("tok-abc"))

	fr, err := p.svc.SendFriendRequest(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestStatusPending, fr.Status)

	require.Len(t, p.provider.sent, 1)
	msg := p.provider.sent[0]
	assert.Equal(t, "tok-abc", msg.Token)
	assert.Equal(t, "New friend request", msg.Notification.Title)
	assert.Equal(t, "alice sent you a friend request.", msg.Notification.Body)
	assert.Equal(t, "FRIEND_REQUEST", msg.Data["type"])
	assert.Len(t, msg.Data, 4)

	stored, err := p.requests.FindByID(context.Background(), fr.ID)
	require.NoError(t, err)
	assert.Equal(t, fr.RequesterID, stored.RequesterID)
}

func TestPipeline_NoTokenStillPersists(t *testing.T) {
	p := newPipeline(t)
	alice := testutil.CreateUser(t, p.db, "alice", nil)
	bob := testutil.CreateUser(t, p.db, "bob", nil)

	fr, err := p.svc.SendFriendRequest(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.NotZero(t, fr.ID)
	assert.Empty(t, p.provider.sent)
}

func TestPipeline_MissingRequesterProfileStillPersists(t *testing.T) {
	p := newPipeline(t)
	bob := testutil.CreateUser(t, p.db, "bob", testutil.StrPtr("tok-bob"))
	ghostID := bob.ID + 100

	fr, err := p.svc.SendFriendRequest(context.Background(), ghostID, bob.ID)
	require.NoError(t, err)

	stored, err := p.requests.FindByID(context.Background(), fr.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, ghostID, stored.RequesterID)
	assert.Equal(t, bob.ID, stored.RecipientID)
	assert.Equal(t, models.FriendRequestStatusPending, stored.Status)
	assert.Empty(t, p.provider.sent)
}

func TestPipeline_ProviderFailureStillPersists(t *testing.T) {
	p := newPipeline(t)
	p.provider.err = errors.New("unavailable")
	alice := testutil.CreateUser(t, p.db, "alice", nil)
	bob := testutil.CreateUser(t, p.db, "bob", testutil.StrPtr("tok"))

	fr, err := p.svc.SendFriendRequest(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	all, err := p.requests.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, fr.ID, all[0].ID)
}

func TestPipeline_RejectionsLeaveStoreEmpty(t *testing.T) {
	p := newPipeline(t)
	alice := testutil.CreateUser(t, p.db, "alice", testutil.StrPtr("tok"))

	_, err := p.svc.SendFriendRequest(context.Background(), alice.ID, alice.ID)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	_, err = p.svc.SendFriendRequest(context.Background(), alice.ID, alice.ID+100)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	all, err := p.requests.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, p.provider.sent)
}

func TestPipeline_RepeatedSendsCreateDistinctRecords(t *testing.T) {
	p := newPipeline(t)
	alice := testutil.CreateUser(t, p.db, "alice", nil)
	bob := testutil.CreateUser(t, p.db, "bob", nil)

	var wg sync.WaitGroup
	ids := make(chan uint, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fr, err := p.svc.SendFriendRequest(context.Background(), alice.ID, bob.ID)
			if assert.NoError(t, err) {
				ids <- fr.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 5)
}
