// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const (
	messagesPath = "/api/db/messages"
	generatePath = "/api/generate-message"
)

// GetMessages returns the ordered messages of a conversation.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	q := url.Values{}
	q.Set("conversationId", conversationID)

	var msgs []Message
	if err := c.do(ctx, http.MethodGet, messagesPath, q, nil, &msgs); err != nil {
		return nil, fmt.Errorf("get messages %s: %w", conversationID, err)
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// GenerateMessage starts generation of an assistant reply.
// It returns once the backend has accepted the request; the reply itself
// arrives through GetMessages.
func (c *Client) GenerateMessage(ctx context.Context, req GenerateMessageRequest) (*GenerateMessageResponse, error) {
	var resp GenerateMessageResponse
	if err := c.do(ctx, http.MethodPost, generatePath, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("generate message: %w", err)
	}
	if resp.ConversationID == "" && req.ConversationID != "" {
		resp.ConversationID = req.ConversationID
	}
	return &resp, nil
}
