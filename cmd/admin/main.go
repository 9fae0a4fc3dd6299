// Package main provides admin utilities for the friend-request service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"friendpush/internal/config"
	"friendpush/internal/database"
	"friendpush/internal/middleware"
	"friendpush/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin token <user_id> [ttl]   - Issue a bearer token for a user")
		fmt.Println("  go run ./cmd/admin show <username>         - Show a user and whether a device token is registered")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch os.Args[1] {
	case "token":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin token <user_id> [ttl]")
			os.Exit(1)
		}
		issueToken(cfg, os.Args[2:])
	case "show":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin show <username>")
			os.Exit(1)
		}
		showUser(cfg, os.Args[2])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func issueToken(cfg *config.Config, args []string) {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		log.Fatalf("Invalid user id %q: %v", args[0], err)
	}
	ttl := 24 * time.Hour
	if len(args) > 1 {
		if ttl, err = time.ParseDuration(args[1]); err != nil {
			log.Fatalf("Invalid ttl %q: %v", args[1], err)
		}
	}

	token, err := middleware.IssueToken(cfg, uint(id), ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}

func showUser(cfg *config.Config, username string) {
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	user, err := repository.NewUserRepository(db).FindByUsername(context.Background(), username)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if user == nil {
		fmt.Printf("User %s not found\n", username)
		os.Exit(1)
	}
	fmt.Printf("ID: %d | Username: %s | Device token: %t\n", user.ID, user.Username, user.HasDeviceToken())
}
