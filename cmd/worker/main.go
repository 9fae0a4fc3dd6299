// Command worker consumes queued friend-request notifications and delivers them
// through the configured push provider.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"friendpush/internal/bootstrap"
	"friendpush/internal/config"
	"friendpush/internal/middleware"
	"friendpush/internal/notifications"
	"friendpush/internal/repository"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitMiddleware(cfg)

	shutdownTracing, err := bootstrap.InitTracing(cfg, "friendpush-worker")
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	if rdb == nil {
		log.Fatalf("Worker requires Redis at %s", cfg.RedisURL)
	}

	provider, err := bootstrap.NewPushProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create push provider: %v", err)
	}

	users := repository.NewUserRepository(db)
	sender := notifications.NewSender(users, provider)
	worker := notifications.NewWorker(notifications.RedisClientOpt(rdb.Options()), sender, notifications.WorkerConfig{
		Concurrency: cfg.WorkerConcurrency,
		PushTimeout: bootstrap.PushTimeout(cfg),
	})

	if err := worker.Start(); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}
	middleware.Logger.Info("Notification worker started",
		slog.String("provider", provider.Name()), slog.Int("concurrency", cfg.WorkerConcurrency))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down worker...")
	worker.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Printf("Redis close error: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
