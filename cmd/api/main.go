package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"support-backend/cmd"
	"support-backend/internal/api"
	"support-backend/internal/archive"
	"support-backend/internal/chat"
	"support-backend/internal/config"
	"support-backend/internal/messaging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	closeLog := cmd.SetupLogging(cfg)
	defer closeLog()

	db := cmd.OpenDatabase(cfg)
	gateway := cmd.NewGateway(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Transcripts go to the standalone worker when RabbitMQ is configured,
	// otherwise they are archived in process.
	var publisher messaging.Publisher
	if cfg.RabbitMQURL != "" {
		rabbit, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rabbit.Close()
		publisher = rabbit
	} else if cfg.ArchiveEnabled {
		queue := messaging.NewInMemoryQueue()
		archiver := archive.NewTranscriptArchiver(db, cmd.NewArchiveStore(ctx, cfg), queue, cfg.ArchiveBucket)
		go archiver.Start(ctx)
		defer archiver.Stop()
		publisher = queue
	} else {
		log.Println("transcript archiving disabled")
	}

	service := chat.NewService(db, gateway, publisher)
	responder := api.Responder{Development: cfg.IsDevelopment()}

	// --- Chi Router Setup ---
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(responder.Recoverer)
	r.Use(api.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		api.AddRoutes(r, api.NewChatService(service, responder))
	})
	r.NotFound(api.RouteNotFound)
	r.MethodNotAllowed(api.RouteNotFound)

	// --- Start HTTP Server ---
	port := strconv.Itoa(cfg.Port)
	server := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s (%s)", port, cfg.Environment)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", port, err)
	}

	log.Println("Server stopped.")
}
