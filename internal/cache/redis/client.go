package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
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

// SetExtract caches fetched page text keyed by the URL hash.
func (c *Client) SetExtract(ctx context.Context, urlHash, text string, ttl time.Duration) error {
	err := c.client.Set(ctx, fmt.Sprintf("extract:%s", urlHash), text, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set extract cache: %w", err)
	}

	logger.Debug("Extract cached", zap.String("url_hash", urlHash), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetExtract(ctx context.Context, urlHash string) (string, bool, error) {
	text, err := c.client.Get(ctx, fmt.Sprintf("extract:%s", urlHash)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get extract cache: %w", err)
	}

	logger.Debug("Extract cache hit", zap.String("url_hash", urlHash))
	return text, true, nil
}

// SetSuggestions caches example questions keyed by the hash of a group's URL set.
func (c *Client) SetSuggestions(ctx context.Context, groupHash string, questions []string, ttl time.Duration) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("suggestions:%s", groupHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set suggestions cache: %w", err)
	}

	logger.Debug("Suggestions cached", zap.String("group_hash", groupHash))
	return nil
}

func (c *Client) GetSuggestions(ctx context.Context, groupHash string) ([]string, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("suggestions:%s", groupHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get suggestions cache: %w", err)
	}

	var questions []string
	err = json.Unmarshal(data, &questions)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal suggestions: %w", err)
	}

	logger.Debug("Suggestions cache hit", zap.String("group_hash", groupHash))
	return questions, true, nil
}

// InvalidateSuggestions drops cached questions when a group's URL set changes.
func (c *Client) InvalidateSuggestions(ctx context.Context, groupHash string) error {
	return c.client.Del(ctx, fmt.Sprintf("suggestions:%s", groupHash)).Err()
}
