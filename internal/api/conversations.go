// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const conversationsPath = "/api/db/conversations"

// ListOptions filters GetConversations.
type ListOptions struct {
	// ProjectID limits results to one project. Empty means no project.
	ProjectID string

	// Search is a free-text query. Empty lists everything.
	Search string

	// Mode is the search strategy (default: fuzzy). Ignored without Search.
	Mode SearchMode
}

// GetConversations lists conversations.
func (c *Client) GetConversations(ctx context.Context, opts ListOptions) ([]Conversation, error) {
	q := url.Values{}
	if opts.ProjectID != "" {
		q.Set("projectId", opts.ProjectID)
	} else {
		q.Set("projectId", "null")
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		q.Set("search", norm.NFC.String(search))
		mode := opts.Mode
		if mode == "" {
			mode = SearchFuzzy
		}
		q.Set("mode", string(mode))
	}

	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, conversationsPath, q, nil, &convs); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if convs == nil {
		convs = []Conversation{}
	}
	return convs, nil
}

// GetConversation fetches one conversation by id.
//
// The backend answers with either an object or a one-element list; both are
// accepted. A cache-busting timestamp is sent so intermediaries never serve
// a stale generating flag.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	q := url.Values{}
	q.Set("id", id)
	q.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, conversationsPath, q, nil, &raw); err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}

	conv, err := decodeConversation(raw)
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	if conv == nil || conv.ID == "" {
		return nil, &NotFoundError{Resource: "conversation", ID: id}
	}
	return conv, nil
}

// decodeConversation accepts an object, a list, or null.
func decodeConversation(raw json.RawMessage) (*Conversation, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []Conversation
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, &RequestError{Message: "failed to decode conversation", Cause: err}
		}
		if len(list) == 0 {
			return nil, nil
		}
		return &list[0], nil
	}

	var conv Conversation
	if err := json.Unmarshal(trimmed, &conv); err != nil {
		return nil, &RequestError{Message: "failed to decode conversation", Cause: err}
	}
	return &conv, nil
}

// DeleteConversation removes one conversation server-side.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", id)
	if err := c.do(ctx, http.MethodDelete, conversationsPath, q, nil, nil); err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

// DeleteAllConversations removes every conversation of the user.
func (c *Client) DeleteAllConversations(ctx context.Context) error {
	q := url.Values{}
	q.Set("all", "true")
	if err := c.do(ctx, http.MethodDelete, conversationsPath, q, nil, nil); err != nil {
		return fmt.Errorf("delete all conversations: %w", err)
	}
	return nil
}

// =============================================================================
// CONVERSATION ACTIONS
// =============================================================================

// ConversationAction is one variant of the POST /api/db/conversations body.
// The concrete type determines the "action" discriminator on the wire.
type ConversationAction interface {
	ActionName() string
}

// CreateAction creates an empty conversation.
type CreateAction struct {
	Title     string `json:"title,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// CreateWithMessageAction creates a conversation seeded with a user message.
type CreateWithMessageAction struct {
	Content   string `json:"content"`
	ModelID   string `json:"modelId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// UpdateTitleAction renames a conversation.
type UpdateTitleAction struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
}

// TogglePinAction flips the pinned flag.
type TogglePinAction struct {
	ConversationID string `json:"conversationId"`
}

// SetPublicAction shares or unshares a conversation.
type SetPublicAction struct {
	ConversationID string `json:"conversationId"`
	Public         bool   `json:"public"`
}

// BranchAction copies a conversation up to and including FromMessageID.
type BranchAction struct {
	ConversationID string `json:"conversationId"`
	FromMessageID  string `json:"fromMessageId"`
}

func (CreateAction) ActionName() string            { return "create" }
func (CreateWithMessageAction) ActionName() string { return "createWithMessage" }
func (UpdateTitleAction) ActionName() string       { return "updateTitle" }
func (TogglePinAction) ActionName() string         { return "togglePin" }
func (SetPublicAction) ActionName() string         { return "setPublic" }
func (BranchAction) ActionName() string            { return "branch" }

// EncodeAction renders an action as a JSON object with its discriminator.
func EncodeAction(action ConversationAction) ([]byte, error) {
	data, err := json.Marshal(action)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	fields["action"] = action.ActionName()
	return json.Marshal(fields)
}

// Do posts a conversation action and decodes the response into out.
func (c *Client) Do(ctx context.Context, action ConversationAction, out any) error {
	body, err := EncodeAction(action)
	if err != nil {
		return fmt.Errorf("%s: encode action: %w", action.ActionName(), err)
	}
	if err := c.do(ctx, http.MethodPost, conversationsPath, nil, json.RawMessage(body), out); err != nil {
		return fmt.Errorf("%s: %w", action.ActionName(), err)
	}
	return nil
}

// CreateConversation creates an empty conversation.
func (c *Client) CreateConversation(ctx context.Context, title, projectID string) (*Conversation, error) {
	var conv Conversation
	if err := c.Do(ctx, CreateAction{Title: title, ProjectID: projectID}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateWithMessage creates a conversation containing one user message.
func (c *Client) CreateWithMessage(ctx context.Context, action CreateWithMessageAction) (*CreateWithMessageResponse, error) {
	var resp CreateWithMessageResponse
	if err := c.Do(ctx, action, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateConversationTitle renames a conversation.
func (c *Client) UpdateConversationTitle(ctx context.Context, id, title string) (*Conversation, error) {
	var conv Conversation
	if err := c.Do(ctx, UpdateTitleAction{ConversationID: id, Title: title}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ToggleConversationPin flips the pinned flag and returns the updated record.
func (c *Client) ToggleConversationPin(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := c.Do(ctx, TogglePinAction{ConversationID: id}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SetConversationPublic shares or unshares a conversation.
func (c *Client) SetConversationPublic(ctx context.Context, id string, public bool) (*Conversation, error) {
	var conv Conversation
	if err := c.Do(ctx, SetPublicAction{ConversationID: id, Public: public}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// BranchConversation creates a new conversation from id up to fromMessageID.
func (c *Client) BranchConversation(ctx context.Context, id, fromMessageID string) (*Conversation, error) {
	var conv Conversation
	if err := c.Do(ctx, BranchAction{ConversationID: id, FromMessageID: fromMessageID}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}
