package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port           string
	PostgresDSN    string
	MongoURI       string
	MongoDB        string
	RedisAddr      string
	RedisPassword  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	OpenAIAPIKey         string
	OpenAIBaseURL        string
	ChatModel            string
	ReasoningModel       string
	EmbeddingModel       string
	TavilyAPIKey         string
	TavilyBaseURL        string
	PineconeAPIKey       string
	PineconeIndexHost    string
	PineconeNamespace    string
	TranscriptServiceURL string

	CORSOrigins     []string
	LLMRouteTimeout time.Duration
	MaxTagsPerUser  int
	LogLevel        string
	LogFormat       string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		PostgresDSN:    getenv("POSTGRES_DSN", ""),
		MongoURI:       getenv("MONGO_URI", ""),
		MongoDB:        getenv("MONGO_DB", "notsodumb"),
		RedisAddr:      getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "minio:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "quiz-sources"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),

		OpenAIAPIKey:         getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:            getenv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		ReasoningModel:       getenv("OPENAI_REASONING_MODEL", "o3-mini"),
		EmbeddingModel:       getenv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		TavilyAPIKey:         getenv("TAVILY_API_KEY", ""),
		TavilyBaseURL:        getenv("TAVILY_BASE_URL", "https://api.tavily.com"),
		PineconeAPIKey:       getenv("PINECONE_API_KEY", ""),
		PineconeIndexHost:    getenv("PINECONE_INDEX_HOST", ""),
		PineconeNamespace:    getenv("PINECONE_NAMESPACE", ""),
		TranscriptServiceURL: getenv("TRANSCRIPT_SERVICE_URL", "http://transcript-service:8002"),

		CORSOrigins:     splitList(getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		LLMRouteTimeout: getenvDuration("LLM_ROUTE_TIMEOUT", 30*time.Second),
		MaxTagsPerUser:  getenvInt("MAX_TAGS_PER_USER", 5),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.LLMRouteTimeout <= 0 {
		return fmt.Errorf("LLM_ROUTE_TIMEOUT must be > 0")
	}
	if c.MaxTagsPerUser < 1 {
		return fmt.Errorf("MAX_TAGS_PER_USER must be >= 1")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getenvInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
