package seed

import (
	"context"
	"fmt"
	"os"

	"friendpush/internal/models"

	"gopkg.in/yaml.v3"
)

// Fixture is a hand-written data set, e.g.
//
//	users:
//	  - username: alice
//	  - username: bob
//	    fcmToken: device-token-1
//	friendRequests:
//	  - from: alice
//	    to: bob
type Fixture struct {
	Users          []FixtureUser    `yaml:"users"`
	FriendRequests []FixtureRequest `yaml:"friendRequests"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	FCMToken string `yaml:"fcmToken,omitempty"`
}

type FixtureRequest struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// LoadFixture reads and validates a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes a fixture and checks that requests reference declared users.
func ParseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	declared := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("fixture user without username")
		}
		if declared[u.Username] {
			return nil, fmt.Errorf("duplicate fixture user %q", u.Username)
		}
		declared[u.Username] = true
	}
	for _, r := range f.FriendRequests {
		if !declared[r.From] || !declared[r.To] {
			return nil, fmt.Errorf("friend request %s -> %s references an undeclared user", r.From, r.To)
		}
	}
	return &f, nil
}

// ApplyFixture inserts the fixture's users and requests in file order.
func (s *Seeder) ApplyFixture(ctx context.Context, f *Fixture) error {
	ids := make(map[string]uint, len(f.Users))
	for _, fu := range f.Users {
		u := &models.User{Username: fu.Username}
		if fu.FCMToken != "" {
			token := fu.FCMToken
			u.DeviceToken = &token
		}
		if err := s.users.Create(ctx, u); err != nil {
			return fmt.Errorf("create %s: %w", fu.Username, err)
		}
		ids[fu.Username] = u.ID
	}

	for _, r := range f.FriendRequests {
		if _, err := s.requests.Save(ctx, ids[r.From], ids[r.To]); err != nil {
			return fmt.Errorf("friend request %s -> %s: %w", r.From, r.To, err)
		}
	}
	return nil
}
