// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"strings"

	"friendpush/internal/models"
	"friendpush/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	// TokenRatio is the fraction of seeded users that get a device token.
	TokenRatio     float64
	NumRequests    int
	ShouldClean    bool
}

// Seeder creates demo users and friend requests through the repositories.
type Seeder struct {
	db       *gorm.DB
	users    repository.UserRepository
	requests repository.FriendRequestRepository
	faker    *gofakeit.Faker
}

// NewSeeder binds a Seeder to db. A non-zero seed makes generated data reproducible.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{
		db:       db,
		users:    repository.NewUserRepository(db),
		requests: repository.NewFriendRequestRepository(db),
		faker:    gofakeit.New(seed),
	}
}

// ClearAll deletes every friend request and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	for _, table := range []string{"friend_requests", "users"} {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// SeedUsers creates n users with unique fake usernames.
func (s *Seeder) SeedUsers(ctx context.Context, n int, tokenRatio float64) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	seen := make(map[string]bool, n)
	for len(users) < n {
		name := strings.ToLower(s.faker.Username())
		if seen[name] {
			name = fmt.Sprintf("%s%d", name, s.faker.Number(10, 9999))
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		u := &models.User{Username: name}
		if s.faker.Float64Range(0, 1) < tokenRatio {
			token := "fake-" + s.faker.UUID()
			u.DeviceToken = &token
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// SeedFriendRequests creates n PENDING requests between random distinct users.
func (s *Seeder) SeedFriendRequests(ctx context.Context, users []*models.User, n int) ([]*models.FriendRequest, error) {
	if len(users) < 2 {
		return nil, fmt.Errorf("need at least 2 users, have %d", len(users))
	}
	out := make([]*models.FriendRequest, 0, n)
	for i := 0; i < n; i++ {
		from := users[s.faker.Number(0, len(users)-1)]
		to := users[s.faker.Number(0, len(users)-1)]
		if from.ID == to.ID {
			i--
			continue
		}
		fr, err := s.requests.Save(ctx, from.ID, to.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, nil
}

// Run applies opts.
func (s *Seeder) Run(ctx context.Context, opts Options) error {
	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return err
		}
	}
	users, err := s.SeedUsers(ctx, opts.NumUsers, opts.TokenRatio)
	if err != nil {
		return err
	}
	if opts.NumRequests > 0 {
		if _, err := s.SeedFriendRequests(ctx, users, opts.NumRequests); err != nil {
			return err
		}
	}
	return nil
}
