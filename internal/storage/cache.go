// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/config"
)

// ErrCacheMiss is returned when no snapshot exists for the requested key.
var ErrCacheMiss = errors.New("cache miss")

// =============================================================================
// SNAPSHOT TYPES
// =============================================================================

// ConversationsSnapshot is the last saved conversation list.
type ConversationsSnapshot struct {
	Conversations []api.Conversation `json:"conversations"`
	SavedAt       time.Time          `json:"saved_at"`
}

// MessagesSnapshot is the last saved message list of one conversation.
type MessagesSnapshot struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []api.Message `json:"messages"`
	SavedAt        time.Time     `json:"saved_at"`
}

// =============================================================================
// CACHE INTERFACE
// =============================================================================

// Cache stores snapshots of server state. Implementations are safe for
// concurrent use.
type Cache interface {
	SaveConversations(ctx context.Context, convs []api.Conversation) error
	LoadConversations(ctx context.Context) (*ConversationsSnapshot, error)

	SaveMessages(ctx context.Context, conversationID string, msgs []api.Message) error
	LoadMessages(ctx context.Context, conversationID string) (*MessagesSnapshot, error)

	// DeleteConversation drops the messages of one conversation.
	DeleteConversation(ctx context.Context, conversationID string) error

	// Clear drops every snapshot in this cache's scope.
	Clear(ctx context.Context) error

	Close() error
}

// New opens the cache selected by cfg. scope separates snapshots of
// different servers; the server URL is the usual choice.
func New(ctx context.Context, cfg config.CacheConfig, scope string, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	scope = normalizeScope(scope)

	switch strings.ToLower(cfg.Backend) {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			p, err := config.DefaultCachePath()
			if err != nil {
				return nil, fmt.Errorf("open cache: %w", err)
			}
			path = p
		}
		return OpenSQLite(ctx, path, scope, logger)
	case "redis":
		ttl := time.Duration(cfg.TTLHours) * time.Hour
		return OpenRedis(ctx, cfg.RedisURL, scope, ttl, logger)
	case "none":
		return NopCache{}, nil
	}
	return nil, fmt.Errorf("open cache: unknown backend %q", cfg.Backend)
}

// normalizeScope trims trailing slashes so "https://x/" and "https://x" share a cache.
func normalizeScope(scope string) string {
	scope = strings.TrimSpace(scope)
	scope = strings.TrimRight(scope, "/")
	if scope == "" {
		return "default"
	}
	return strings.ToLower(scope)
}

// =============================================================================
// NOP CACHE
// =============================================================================

// NopCache stores nothing and always misses.
type NopCache struct{}

func (NopCache) SaveConversations(context.Context, []api.Conversation) error { return nil }

func (NopCache) LoadConversations(context.Context) (*ConversationsSnapshot, error) {
	return nil, ErrCacheMiss
}

func (NopCache) SaveMessages(context.Context, string, []api.Message) error { return nil }

func (NopCache) LoadMessages(context.Context, string) (*MessagesSnapshot, error) {
	return nil, ErrCacheMiss
}

func (NopCache) DeleteConversation(context.Context, string) error { return nil }
func (NopCache) Clear(context.Context) error                      { return nil }
func (NopCache) Close() error                                     { return nil }
