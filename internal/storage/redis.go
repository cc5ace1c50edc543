// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
)

// RedisCache keeps snapshots as JSON strings in redis.
//
// Keys:
//
//	nanochat:<scope>:conversations
//	nanochat:<scope>:messages:<conversation id>
type RedisCache struct {
	rdb   *redis.Client
	scope string
	ttl   time.Duration
	log   *zap.Logger
}

// OpenRedis connects to redisURL and pings it. ttl of 0 keeps keys forever.
func OpenRedis(ctx context.Context, redisURL, scope string, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewRedisCache(rdb, scope, ttl, logger), nil
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb *redis.Client, scope string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, scope: normalizeScope(scope), ttl: ttl, log: logger.Named("cache")}
}

func (c *RedisCache) conversationsKey() string {
	return fmt.Sprintf("nanochat:%s:conversations", c.scope)
}

func (c *RedisCache) messagesKey(conversationID string) string {
	return fmt.Sprintf("nanochat:%s:messages:%s", c.scope, conversationID)
}

func (c *RedisCache) SaveConversations(ctx context.Context, convs []api.Conversation) error {
	if convs == nil {
		convs = []api.Conversation{}
	}
	return c.set(ctx, c.conversationsKey(), ConversationsSnapshot{Conversations: convs, SavedAt: time.Now()})
}

func (c *RedisCache) LoadConversations(ctx context.Context) (*ConversationsSnapshot, error) {
	var snap ConversationsSnapshot
	if err := c.get(ctx, c.conversationsKey(), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *RedisCache) SaveMessages(ctx context.Context, conversationID string, msgs []api.Message) error {
	if msgs == nil {
		msgs = []api.Message{}
	}
	return c.set(ctx, c.messagesKey(conversationID), MessagesSnapshot{
		ConversationID: conversationID,
		Messages:       msgs,
		SavedAt:        time.Now(),
	})
}

func (c *RedisCache) LoadMessages(ctx context.Context, conversationID string) (*MessagesSnapshot, error) {
	var snap MessagesSnapshot
	if err := c.get(ctx, c.messagesKey(conversationID), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *RedisCache) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := c.rdb.Del(ctx, c.messagesKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached conversation %s: %w", conversationID, err)
	}
	return nil
}

// Clear removes every key of this scope. SCAN keeps redis responsive on
// large keyspaces.
func (c *RedisCache) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("nanochat:%s:*", c.scope)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	c.log.Debug("cleared cache", zap.Int("keys", len(keys)))
	return nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) get(ctx context.Context, key string, v any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
