// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations_cmd.go - Conversation management and transcript commands.
//
// Command: conversations [subcommand]
// Aliases: convs, ls
//
// Subcommands:
//   list (default)          List conversations, pinned first
//   search QUERY            Search titles and messages (--mode exact|words|fuzzy)
//   delete ID               Delete a conversation
//   delete-all --yes        Delete every conversation
//   rename ID TITLE         Change the title
//   pin ID                  Toggle the pin
//   public ID on|off        Share or unshare
//   branch ID MESSAGE_ID    Copy the conversation up to a message
//
// Command: show ID [--offline]
//
// Examples:
//   nanochat convs
//   nanochat convs search "rate limiter" --mode exact
//   nanochat convs rename 8f1c... "Go concurrency notes"
//   nanochat show 8f1c... --offline
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/storage"
)

// ConversationListData is the JSON form of a listing.
type ConversationListData struct {
	Conversations []api.Conversation `json:"conversations"`
	Total         int                `json:"total"`
	// Offline is set when the list came from the cache.
	Offline bool `json:"offline,omitempty"`
}

// HandleConversations dispatches the conversations subcommands.
func HandleConversations(ctx context.Context, a *App, args Args) error {
	if err := a.requireConfigured(); err != nil {
		return err
	}
	opts := args.Options

	switch sub := strings.ToLower(opts.Subcommand()); sub {
	case "", "list", "ls":
		return conversationsList(ctx, a, opts)

	case "search", "find":
		query := strings.TrimSpace(JoinPositionalArgs(opts, 1))
		if query == "" {
			return ErrMissingArgument("query", `nanochat convs search "rate limiter"`)
		}
		mode := api.SearchMode(strings.ToLower(opts.FlagOrDefault("mode", string(api.SearchWords))))
		switch mode {
		case api.SearchExact, api.SearchWords, api.SearchFuzzy:
		default:
			return ErrInvalidFormat("mode", string(mode), "--mode exact|words|fuzzy")
		}
		found, err := a.Conversations.Search(ctx, query, mode)
		if err != nil {
			return err
		}
		return printConversations(a, found, false)

	case "delete", "rm":
		id := opts.Positional(1)
		if id == "" {
			return ErrMissingArgument("id", "nanochat convs delete ID")
		}
		if err := a.Conversations.DeleteConversation(ctx, id); err != nil {
			return err
		}
		return a.success("conversations delete", map[string]string{"id": id}, "deleted %s", id)

	case "delete-all":
		if !opts.BoolFlag("yes") && !opts.BoolFlag("y") {
			return NewValidationErrorWithExample("confirmation", "", "this deletes every conversation", "nanochat convs delete-all --yes")
		}
		if err := a.Conversations.DeleteAllConversations(ctx); err != nil {
			return err
		}
		return a.success("conversations delete-all", struct{}{}, "deleted all conversations")

	case "rename":
		id := opts.Positional(1)
		title := strings.TrimSpace(JoinPositionalArgs(opts, 2))
		if id == "" || title == "" {
			return ErrMissingArgument("title", `nanochat convs rename ID "New title"`)
		}
		if err := a.Conversations.RenameConversation(ctx, id, title); err != nil {
			return err
		}
		return a.success("conversations rename", map[string]string{"id": id, "title": title}, "renamed %s to %q", id, title)

	case "pin":
		id := opts.Positional(1)
		if id == "" {
			return ErrMissingArgument("id", "nanochat convs pin ID")
		}
		if err := a.Conversations.TogglePin(ctx, id); err != nil {
			return err
		}
		conv := findConversation(a, id)
		state := "unpinned"
		if conv.Pinned {
			state = "pinned"
		}
		return a.success("conversations pin", conv, "%s %s", state, id)

	case "public", "share":
		id := opts.Positional(1)
		if id == "" || opts.Positional(2) == "" {
			return ErrMissingArgument("state", "nanochat convs public ID on|off")
		}
		public, err := ParseBoolString(opts.Positional(2))
		if err != nil {
			return ErrInvalidFormat("state", opts.Positional(2), "nanochat convs public ID on|off")
		}
		if err := a.Conversations.SetPublic(ctx, id, public); err != nil {
			return err
		}
		state := "private"
		if public {
			state = "public"
		}
		return a.success("conversations public", map[string]interface{}{"id": id, "public": public}, "%s is now %s", id, state)

	case "branch":
		id, from := opts.Positional(1), opts.Positional(2)
		if id == "" || from == "" {
			return ErrMissingArgument("message id", "nanochat convs branch ID MESSAGE_ID")
		}
		branch, err := a.Conversations.BranchConversation(ctx, id, from)
		if err != nil {
			return err
		}
		return a.success("conversations branch", branch, "created branch %s", branch.ID)

	default:
		return ErrInvalidFormat("subcommand", sub, "nanochat convs [list|search|delete|delete-all|rename|pin|public|branch]")
	}
}

// conversationsList prints the server list, or the cached one when the
// server cannot be reached.
func conversationsList(ctx context.Context, a *App, opts *ArgParser) error {
	offline := false
	if err := a.Conversations.LoadConversations(ctx); err != nil {
		if api.IsUnauthorized(err) {
			return err
		}
		hydrated, cacheErr := a.Conversations.Hydrate(ctx)
		if cacheErr != nil || !hydrated {
			return err
		}
		a.warnf("server unavailable, showing the cached list: %v", err)
		offline = true
	}

	convs := a.Conversations.State().Conversations
	if limit := opts.FlagIntOrDefault("limit", 0); limit > 0 && limit < len(convs) {
		convs = convs[:limit]
	}
	return printConversations(a, convs, offline)
}

func printConversations(a *App, convs []api.Conversation, offline bool) error {
	if a.JSON {
		return a.printJSON("conversations", ConversationListData{
			Conversations: convs,
			Total:         len(convs),
			Offline:       offline,
		})
	}
	a.renderer().RenderConversationList(a.Out, convs, a.Conversations.State().SelectedConversationID)
	return nil
}

func findConversation(a *App, id string) api.Conversation {
	for _, c := range a.Conversations.State().Conversations {
		if c.ID == id {
			return c
		}
	}
	return api.Conversation{ID: id}
}

// =============================================================================
// SHOW
// =============================================================================

// TranscriptData is the JSON form of the show command.
type TranscriptData struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []api.Message `json:"messages"`
	// CachedAt is set for transcripts read from the offline cache.
	CachedAt *time.Time `json:"cached_at,omitempty"`
}

// HandleShow prints a conversation transcript from the server, or from the
// offline cache with --offline.
func HandleShow(ctx context.Context, a *App, args Args) error {
	id := args.Options.Positional(0)
	if id == "" {
		return ErrMissingArgument("id", "nanochat show ID [--offline]")
	}

	data := TranscriptData{ConversationID: id}
	if args.Options.BoolFlag("offline") {
		savedAt, err := a.Chat.LoadCachedMessages(ctx, id)
		if errors.Is(err, storage.ErrCacheMiss) {
			return fmt.Errorf("no offline copy of %s: %w", id, err)
		}
		if err != nil {
			return err
		}
		data.CachedAt = &savedAt
	} else {
		if err := a.requireConfigured(); err != nil {
			return err
		}
		if err := a.Chat.SetConversation(ctx, id); err != nil {
			return err
		}
	}
	data.Messages = a.Chat.State().Messages

	if a.JSON {
		return a.printJSON("show", data)
	}
	if data.CachedAt != nil {
		a.infof("offline copy saved %s (%s ago)", data.CachedAt.Local().Format("2006-01-02 15:04"), formatAge(time.Since(*data.CachedAt)))
	}
	a.renderer().RenderTranscript(a.Out, data.Messages)
	return nil
}
