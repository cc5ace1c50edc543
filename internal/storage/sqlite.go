// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/thejudge22/nanochat-desktop/internal/api"
)

// SQLiteCache keeps snapshots in a local sqlite database.
type SQLiteCache struct {
	db    *sql.DB
	scope string
	log   *zap.Logger
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS conversation_lists (
		scope TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS message_lists (
		scope TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		saved_at INTEGER NOT NULL,
		PRIMARY KEY (scope, conversation_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_message_lists_saved ON message_lists(scope, saved_at)`,
}

// OpenSQLite opens (and migrates) the cache database at path.
func OpenSQLite(ctx context.Context, path, scope string, logger *zap.Logger) (*SQLiteCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// One writer at a time; the CLI and a background poll may overlap.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure cache database: %w", err)
	}
	for _, m := range sqliteMigrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache migration failed: %w\nSQL: %s", err, m)
		}
	}

	return &SQLiteCache{db: db, scope: normalizeScope(scope), log: logger.Named("cache")}, nil
}

func (c *SQLiteCache) SaveConversations(ctx context.Context, convs []api.Conversation) error {
	if convs == nil {
		convs = []api.Conversation{}
	}
	payload, err := json.Marshal(convs)
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO conversation_lists (scope, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		c.scope, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save conversations: %w", err)
	}
	c.log.Debug("saved conversation list", zap.Int("count", len(convs)))
	return nil
}

func (c *SQLiteCache) LoadConversations(ctx context.Context) (*ConversationsSnapshot, error) {
	var payload string
	var savedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, saved_at FROM conversation_lists WHERE scope = ?`, c.scope,
	).Scan(&payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	snap := &ConversationsSnapshot{SavedAt: time.UnixMilli(savedAt)}
	if err := json.Unmarshal([]byte(payload), &snap.Conversations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversations: %w", err)
	}
	return snap, nil
}

func (c *SQLiteCache) SaveMessages(ctx context.Context, conversationID string, msgs []api.Message) error {
	if msgs == nil {
		msgs = []api.Message{}
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO message_lists (scope, conversation_id, payload, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, conversation_id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		c.scope, conversationID, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save messages %s: %w", conversationID, err)
	}
	return nil
}

func (c *SQLiteCache) LoadMessages(ctx context.Context, conversationID string) (*MessagesSnapshot, error) {
	var payload string
	var savedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, saved_at FROM message_lists WHERE scope = ? AND conversation_id = ?`,
		c.scope, conversationID,
	).Scan(&payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load messages %s: %w", conversationID, err)
	}

	snap := &MessagesSnapshot{ConversationID: conversationID, SavedAt: time.UnixMilli(savedAt)}
	if err := json.Unmarshal([]byte(payload), &snap.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages %s: %w", conversationID, err)
	}
	return snap, nil
}

func (c *SQLiteCache) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM message_lists WHERE scope = ? AND conversation_id = ?`, c.scope, conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete cached conversation %s: %w", conversationID, err)
	}
	return nil
}

func (c *SQLiteCache) Clear(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_lists WHERE scope = ?`, c.scope); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_lists WHERE scope = ?`, c.scope); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return tx.Commit()
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
