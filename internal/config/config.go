package config

import (
	"os"
	"strconv"

	"personaforge/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database   DatabaseConfig
	AI         AIConfig
	Vector     VectorConfig
	Generation GenerationConfig
	Server     ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL     string
	Host    string
	Port    int
	User    string
	Name    string
	SSLMode string
}

// AIConfig holds model access settings shared by the generation and
// embedding clients.
type AIConfig struct {
	OpenAIKey      string `validate:"required"`
	ChatModel      string
	EmbeddingModel string
	BaseURL        string
	MaxTokens      int
	Temperature    float64
}

// VectorConfig holds vector store connection settings
type VectorConfig struct {
	QdrantHost string
	QdrantPort int
	QdrantKey  string
	UseTLS     bool
	Collection string
}

// GenerationConfig holds the tunable thresholds of the refinement loop
type GenerationConfig struct {
	NumPersonas   int
	RQEThreshold  float64
	MaxIterations int
	CSThreshold   float64
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	aiConfig, err := loadAIConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AI configuration")
	}
	config.AI = *aiConfig

	config.Database = *loadDatabaseConfig()
	config.Vector = *loadVectorConfig()
	config.Generation = *loadGenerationConfig()
	config.Server = *loadServerConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadAIConfig() (*AIConfig, error) {
	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		return nil, errors.ConfigInvalid("OPENAI_API_KEY is required")
	}

	return &AIConfig{
		OpenAIKey:      openaiKey,
		ChatModel:      getEnvOrDefault("LLM_MODEL", "gpt-4o"),
		EmbeddingModel: getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		BaseURL:        getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		MaxTokens:      getEnvIntOrDefault("MAX_TOKENS", 4000),
		Temperature:    getEnvFloatOrDefault("TEMPERATURE", 1.0),
	}, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:     getEnvOrDefault("DATABASE_URL", ""),
		Host:    getEnvOrDefault("DB_HOST", "localhost"),
		Port:    getEnvIntOrDefault("DB_PORT", 5432),
		User:    getEnvOrDefault("DB_USER", ""),
		Name:    getEnvOrDefault("DB_NAME", ""),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadVectorConfig() *VectorConfig {
	return &VectorConfig{
		QdrantHost: getEnvOrDefault("QDRANT_HOST", "localhost"),
		QdrantPort: getEnvIntOrDefault("QDRANT_PORT", 6334),
		QdrantKey:  getEnvOrDefault("QDRANT_API_KEY", ""),
		UseTLS:     getEnvBoolOrDefault("QDRANT_USE_TLS", false),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "interview_chunks"),
	}
}

func loadGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		NumPersonas:   getEnvIntOrDefault("NUM_PERSONAS", 5),
		RQEThreshold:  getEnvFloatOrDefault("RQE_THRESHOLD", 0.75),
		MaxIterations: getEnvIntOrDefault("MAX_ITERATIONS", 3),
		CSThreshold:   getEnvFloatOrDefault("CS_THRESHOLD", 0.80),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func validateConfig(config *Config) error {
	if config.AI.OpenAIKey == "" {
		return errors.ConfigInvalid("OpenAI API key is required")
	}
	if config.Generation.NumPersonas < 1 || config.Generation.NumPersonas > 10 {
		return errors.ConfigInvalid("NUM_PERSONAS must be between 1 and 10")
	}
	if config.Generation.MaxIterations < 1 {
		return errors.ConfigInvalid("MAX_ITERATIONS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
