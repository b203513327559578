package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	OllamaURL       string
	GenerationModel string
	JudgmentModel   string
	EmbeddingModel  string
	OllamaTimeout   time.Duration
	OllamaRPS       int

	TopK                    int
	MaxHallucinationRetries int
	MaxQueryRewrites        int
	StepBudget              int

	ChunkSize    int
	ChunkOverlap int

	RetrieverCacheSize int
	RetrieverCacheTTL  time.Duration
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "selfrag-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "selfrag_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "selfrag_password"),
		DBName:     getEnv("DB_NAME", "selfrag_db"),

		OllamaURL:       getEnv("OLLAMA_URL", "http://ollama:11434"),
		GenerationModel: getEnv("GENERATION_MODEL", "gemma3:4b"),
		JudgmentModel:   getEnv("JUDGMENT_MODEL", "gemma3:4b"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "embeddinggemma"),
		OllamaTimeout:   getEnvDuration("OLLAMA_TIMEOUT", 120*time.Second),
		OllamaRPS:       getEnvInt("OLLAMA_REQUESTS_PER_SECOND", 8),

		TopK:                    getEnvInt("SELFRAG_TOP_K", 4),
		MaxHallucinationRetries: getEnvInt("SELFRAG_MAX_HALLUCINATION_RETRIES", 5),
		MaxQueryRewrites:        getEnvInt("SELFRAG_MAX_QUERY_REWRITES", 3),
		StepBudget:              getEnvInt("SELFRAG_STEP_BUDGET", 80),

		ChunkSize:    getEnvInt("SELFRAG_CHUNK_SIZE", 600),
		ChunkOverlap: getEnvInt("SELFRAG_CHUNK_OVERLAP", 150),

		RetrieverCacheSize: getEnvInt("RETRIEVER_CACHE_SIZE", 256),
		RetrieverCacheTTL:  getEnvDuration("RETRIEVER_CACHE_TTL", 5*time.Minute),
	}
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=disable"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}

	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
