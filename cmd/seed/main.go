// Command seed populates the database with demo users and friend requests.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"friendpush/internal/config"
	"friendpush/internal/database"
	"friendpush/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	tokenRatio := flag.Float64("tokens", 0.5, "Fraction of users that get a device token")
	numRequests := flag.Int("requests", 30, "Number of pending friend requests to create")
	fixture := flag.String("fixture", "", "YAML fixture to load instead of generated data")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "Random seed for generated data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	s := seed.NewSeeder(db, *randSeed)

	if *fixture != "" {
		f, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("Failed to load fixture: %v", err)
		}
		if *shouldClean {
			if err := s.ClearAll(ctx); err != nil {
				log.Fatalf("Cleanup failed: %v", err)
			}
		}
		if err := s.ApplyFixture(ctx, f); err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
		log.Printf("Loaded %d users and %d friend requests from %s", len(f.Users), len(f.FriendRequests), *fixture)
		return
	}

	log.Printf("Target: %d users, %d requests, tokens=%.2f, clean=%v", *numUsers, *numRequests, *tokenRatio, *shouldClean)
	err = s.Run(ctx, seed.Options{
		NumUsers:    *numUsers,
		TokenRatio:  *tokenRatio,
		NumRequests: *numRequests,
		ShouldClean: *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Seeding complete")
}
