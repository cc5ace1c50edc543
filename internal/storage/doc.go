// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the offline snapshot cache for nanochat.
//
// The server is the source of truth. The cache keeps the last conversation
// list and the last complete message list of each conversation so they can
// be shown without a connection and used to hydrate stores at startup.
// Snapshots are scoped by server URL so that switching servers never mixes
// histories.
//
// # Key Types
//
//   - Cache: snapshot store interface
//   - SQLiteCache: local file backend (default)
//   - RedisCache: shared key-value backend
//   - NopCache: disabled cache
//
// # Usage
//
//	cache, err := storage.New(ctx, cfg.Cache, cfg.ServerURL, logger)
//	defer cache.Close()
//
//	err = cache.SaveMessages(ctx, convID, msgs)
//	snap, err := cache.LoadMessages(ctx, convID)
//	if errors.Is(err, storage.ErrCacheMiss) {
//	    // nothing cached yet
//	}
//
// # Storage Location
//
// The sqlite database lives at ~/.nanochat/cache.db unless cache.path is set.
package storage
