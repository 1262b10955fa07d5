package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey        string
	DatabaseURL         string
	HTTPPort            string
	LogLevel            string
	JWTSecret           string
	ChatModel           string
	EmbeddingModel      string
	TokenEncoding       string
	RetrievalK          int
	SimilarityThreshold float64
	HistoryWindow       int
	PipelineWorkers     int
	PipelineQueueSize   int
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:         getEnv("DATABASE_URL", "ragchat.db"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		ChatModel:           getEnv("CHAT_MODEL", "gemini-1.5-flash-latest"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		TokenEncoding:       getEnv("TOKEN_ENCODING", "cl100k_base"),
		RetrievalK:          getEnvAsInt("RETRIEVAL_K", 3),
		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.7),
		HistoryWindow:       getEnvAsInt("HISTORY_WINDOW", 4),
		PipelineWorkers:     getEnvAsInt("PIPELINE_WORKERS", 4),
		PipelineQueueSize:   getEnvAsInt("PIPELINE_QUEUE_SIZE", 64),
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
