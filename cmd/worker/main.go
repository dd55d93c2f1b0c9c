package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"support-backend/cmd"
	"support-backend/internal/archive"
	"support-backend/internal/config"
	"support-backend/internal/messaging"
)

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	closeLog := cmd.SetupLogging(cfg)
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db := cmd.OpenDatabase(cfg)
	store := cmd.NewArchiveStore(ctx, cfg)

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Worker: Failed to start message consumer: %v", err)
	}

	archiver := archive.NewTranscriptArchiver(db, store, receiver, cfg.ArchiveBucket)

	done := make(chan struct{})
	go func() {
		archiver.Start(ctx)
		close(done)
	}()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	<-ctx.Done()
	log.Println("Shutdown signal received, waiting for archiver to finish...")

	archiver.Stop()
	<-done

	log.Println("Worker process stopped.")
}
