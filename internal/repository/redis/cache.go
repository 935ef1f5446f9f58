package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/flight-support/internal/domain"
	"github.com/redis/go-redis/v9"
)

const recentCachePrefix = "conversation:recent:"

// RecentMessagesCache keeps the tail of each transcript in Redis so agents
// polling a conversation do not hit the content store on every refresh.
type RecentMessagesCache struct {
	client *Client
	ttl    time.Duration
}

// NewRecentMessagesCache creates a new recent messages cache
func NewRecentMessagesCache(client *Client, ttl time.Duration) *RecentMessagesCache {
	return &RecentMessagesCache{client: client, ttl: ttl}
}

type recentEntry struct {
	N        int              `json:"n"`
	Messages []domain.Message `json:"messages"`
}

// Get returns the cached tail for a conversation, or nil on a miss.
// An entry cached for a different n is treated as a miss.
func (c *RecentMessagesCache) Get(ctx context.Context, conversationUUID string, n int) ([]domain.Message, error) {
	data, err := c.client.rdb.Get(ctx, recentCachePrefix+conversationUUID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recent messages: %w", err)
	}

	var entry recentEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recent messages: %w", err)
	}
	if entry.N != n {
		return nil, nil
	}

	return entry.Messages, nil
}

// Set caches the tail of a conversation
func (c *RecentMessagesCache) Set(ctx context.Context, conversationUUID string, n int, messages []domain.Message) error {
	data, err := json.Marshal(recentEntry{N: n, Messages: messages})
	if err != nil {
		return fmt.Errorf("failed to marshal recent messages: %w", err)
	}

	return c.client.rdb.Set(ctx, recentCachePrefix+conversationUUID, data, c.ttl).Err()
}

// Invalidate drops the cached tail of a conversation
func (c *RecentMessagesCache) Invalidate(ctx context.Context, conversationUUID string) error {
	return c.client.rdb.Del(ctx, recentCachePrefix+conversationUUID).Err()
}

// FlushAll removes every cached tail
func (c *RecentMessagesCache) FlushAll(ctx context.Context) (int64, error) {
	pattern := recentCachePrefix + "*"
	var cursor uint64
	var deleted int64

	for {
		keys, nextCursor, err := c.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			count, err := c.client.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += count
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}
