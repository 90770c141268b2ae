package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/watchsense/backend/internal/analysis"
	"github.com/watchsense/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetAnalysis caches a finished analysis under the request hash. The cached
// payload is served verbatim for identical requests until the TTL expires.
func (c *Client) SetAnalysis(ctx context.Context, requestHash string, result *analysis.Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("analysis:%s", requestHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set analysis cache: %w", err)
	}

	logger.Debug("Analysis cached", zap.String("request_hash", requestHash), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetAnalysis(ctx context.Context, requestHash string) (*analysis.Result, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("analysis:%s", requestHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get analysis cache: %w", err)
	}

	var result analysis.Result
	err = json.Unmarshal(data, &result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}

	logger.Debug("Analysis cache hit", zap.String("request_hash", requestHash))
	return &result, true, nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}

// InvalidateAnalysisCache drops all cached analyses. Used after the review
// corpus or index is rebuilt.
func (c *Client) InvalidateAnalysisCache(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "analysis:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Analysis cache invalidated")
	return nil
}
