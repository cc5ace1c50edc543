// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// export_cmd.go - Save a transcript to a file.
//
// Command: export ID [--format md|json] [--out DIR] [--offline]
//
// Examples:
//   nanochat export 8f1c...
//   nanochat export 8f1c... --format json --out ~/notes
//   nanochat export 8f1c... --offline
package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/export"
	"github.com/thejudge22/nanochat-desktop/internal/storage"
)

// ExportResult is the JSON form of the export command.
type ExportResult struct {
	ConversationID string `json:"conversation_id"`
	Path           string `json:"path"`
	Format         string `json:"format"`
	Messages       int    `json:"messages"`
	Offline        bool   `json:"offline,omitempty"`
}

// HandleExport writes one conversation to a Markdown or JSON file.
func HandleExport(ctx context.Context, a *App, args Args) error {
	opts := args.Options
	id := opts.Positional(0)
	if id == "" {
		return ErrMissingArgument("id", "nanochat export ID [--format md|json] [--out DIR]")
	}

	format := opts.FlagOrDefault("format", "md")
	exportOpts := export.DefaultOptions()
	exportOpts.OutputDir = opts.FlagOrDefault("out", ".")
	exporter, err := export.New(format, exportOpts)
	if err != nil {
		return ErrInvalidFormat("format", format, "--format md|json")
	}

	offline := opts.BoolFlag("offline")
	tr := &export.Transcript{}
	if offline {
		savedAt, err := a.Chat.LoadCachedMessages(ctx, id)
		if errors.Is(err, storage.ErrCacheMiss) {
			return fmt.Errorf("no offline copy of %s: %w", id, err)
		}
		if err != nil {
			return err
		}
		tr.CachedAt = &savedAt
		if _, err := a.Conversations.Hydrate(ctx); err != nil {
			a.Log.Debug("no cached conversation list", zap.Error(err))
		}
		tr.Conversation = findConversation(a, id)
	} else {
		if err := a.requireConfigured(); err != nil {
			return err
		}
		if err := a.Chat.SetConversation(ctx, id); err != nil {
			return err
		}
		conv, err := a.Client.GetConversation(ctx, id)
		if err != nil {
			return err
		}
		tr.Conversation = *conv
	}
	tr.Messages = a.Chat.State().Messages

	path, err := export.ToFile(tr, exporter, exportOpts)
	if err != nil {
		return err
	}
	return a.success("export", ExportResult{
		ConversationID: id,
		Path:           path,
		Format:         exporter.FileExtension()[1:],
		Messages:       len(tr.Messages),
		Offline:        offline,
	}, "exported %d messages to %s", len(tr.Messages), path)
}
