package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Corpus  CorpusConfig
	Index   IndexConfig
	LLM     LLMConfig
	Redis   RedisConfig
	Memory  MemoryConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type CorpusConfig struct {
	Path string
}

type IndexConfig struct {
	Backend        string
	Path           string
	Endpoint       string
	CollectionName string
	VectorDim      int
	TopK           int
}

type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type MemoryConfig struct {
	Path string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/watchsense")

	viper.SetEnvPrefix("WATCHSENSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("corpus.path", "./data/reviews.db")

	viper.SetDefault("index.backend", "flat")
	viper.SetDefault("index.path", "./data/review_index.json")
	viper.SetDefault("index.endpoint", "localhost:19530")
	viper.SetDefault("index.collectionName", "reviews")
	viper.SetDefault("index.vectorDim", 384)
	viper.SetDefault("index.topK", 60)

	viper.SetDefault("llm.baseURL", "https://api.groq.com/openai/v1")
	viper.SetDefault("llm.model", "llama-3.3-70b-versatile")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("memory.path", "./data/memory.json")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
