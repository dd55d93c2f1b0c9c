package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"support-backend/internal/config"
	"support-backend/internal/database"
	"support-backend/internal/llm"
	"support-backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

const defaultOllamaModel = "llama3.1"

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// SetupLogging sends log output to stderr, and to LOG_FILE when one is set.
// The returned close func must run before exit.
func SetupLogging(cfg *config.Config) func() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.IsDevelopment() {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	if cfg.LogFile == "" {
		return func() {}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		log.Fatalf("error creating log directory: %v", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	log.SetOutput(io.MultiWriter(f, os.Stderr))

	return func() { f.Close() }
}

func OpenDatabase(cfg *config.Config) *gorm.DB {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func NewCompleter(cfg *config.Config) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model := cfg.LLMModel
		if model == "" {
			model = defaultOllamaModel
		}
		return llm.NewOllamaCompleter(cfg.ResolvedLLMBaseURL(), model)
	case config.ProviderOpenAI:
		return llm.NewOpenAICompleter(cfg.LLMAPIKey, cfg.ResolvedLLMBaseURL(), cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider '%s'", cfg.LLMProvider)
	}
}

func NewGateway(cfg *config.Config) *llm.Gateway {
	completer, err := NewCompleter(cfg)
	if err != nil {
		log.Fatalf("Failed to create llm client: %v", err)
	}

	knowledge, err := llm.LoadKnowledge(cfg.KnowledgeFile)
	if err != nil {
		log.Fatalf("Failed to load knowledge base: %v", err)
	}

	slog.Info("llm gateway ready", "provider", cfg.LLMProvider, "sections", len(knowledge.Sections))
	return llm.NewGateway(completer, knowledge)
}

// NewArchiveStore returns the object store transcripts are written to and
// makes sure the archive bucket exists.
func NewArchiveStore(ctx context.Context, cfg *config.Config) storage.ObjectStore {
	var (
		store storage.ObjectStore
		err   error
	)

	if cfg.UseS3Archive() {
		store, err = storage.NewS3ObjectStore(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	} else {
		store, err = storage.NewLocalObjectStore(cfg.ArchiveDir)
	}
	if err != nil {
		log.Fatalf("Failed to create archive store: %v", err)
	}

	if err := store.CreateBucket(ctx, cfg.ArchiveBucket); err != nil {
		log.Fatalf("Failed to create archive bucket '%s': %v", cfg.ArchiveBucket, err)
	}

	return store
}
