// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for nanochat.
//
// Supports both TOML and JSON configuration formats, with defaults,
// .env files, environment variable overrides, validation and live reload.
//
// Configuration file locations (in order of precedence):
//   - ~/.nanochat/config.toml
//   - ~/.nanochat/config.json
//   - Built-in defaults
//
// NANOCHAT_HOME moves the directory.
//
// # Key Types
//
//   - Config: the complete configuration
//   - ChatConfig, APIConfig, CacheConfig, LogConfig, UIConfig: sections
//   - ValidationError, ValidateErrors: validation failures
//
// # Usage
//
//	_ = config.LoadDotEnv()
//	cfg, err := config.Load()
//	if !cfg.IsConfigured() {
//	    // ask for server_url and api_key
//	}
//
//	cfg.Set("chat.max_polls", "240")
//	err = config.Save(cfg)
//
//	err = config.Watch(ctx, path, func(cfg *config.Config, err error) {
//	    // apply cfg
//	})
package config
