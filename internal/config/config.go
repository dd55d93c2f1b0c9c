package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	// Google exposes Gemini models through an OpenAI compatible API.
	DefaultLLMBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultOllamaURL  = "http://localhost:11434"
)

var placeholderKeys = map[string]struct{}{
	"your_gemini_api_key_here": {},
	"your_api_key_here":        {},
	"changeme":                 {},
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"5000"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogFile     string `env:"LOG_FILE"`

	LLMProvider   string `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMAPIKey     string `env:"LLM_API_KEY"`
	LLMBaseURL    string `env:"LLM_BASE_URL"`
	LLMModel      string `env:"LLM_MODEL"`
	KnowledgeFile string `env:"KNOWLEDGE_FILE"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	RabbitMQURL    string `env:"RABBITMQ_URL"`
	ArchiveEnabled bool   `env:"ARCHIVE_ENABLED" envDefault:"true"`
	ArchiveDir     string `env:"ARCHIVE_DIR" envDefault:"./data/archive"`
	ArchiveBucket  string `env:"ARCHIVE_BUCKET" envDefault:"transcripts"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every missing or unusable setting the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL must be set"))
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		key := strings.TrimSpace(c.LLMAPIKey)
		if _, placeholder := placeholderKeys[strings.ToLower(key)]; key == "" || placeholder {
			errs = append(errs, errors.New("LLM_API_KEY must be set to a valid API key"))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER '%s': must be one of %s, %s", c.LLMProvider, ProviderOpenAI, ProviderOllama))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}

	return errors.Join(errs...)
}

// ValidateWorker checks the settings needed by the standalone archive worker,
// which never calls the llm.
func (c *Config) ValidateWorker() error {
	var errs []error

	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL must be set"))
	}
	if strings.TrimSpace(c.RabbitMQURL) == "" {
		errs = append(errs, errors.New("RABBITMQ_URL must be set"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func (c *Config) UseS3Archive() bool {
	return c.S3EndpointURL != "" || c.S3Region != ""
}

// ResolvedLLMBaseURL returns the configured base url, or the default for the provider.
func (c *Config) ResolvedLLMBaseURL() string {
	if c.LLMBaseURL != "" {
		return c.LLMBaseURL
	}
	if c.LLMProvider == ProviderOllama {
		return DefaultOllamaURL
	}
	return DefaultLLMBaseURL
}
