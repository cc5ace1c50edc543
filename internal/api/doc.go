// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the NanoChat backend.
//
// The backend generates assistant replies asynchronously: a generate request
// returns as soon as the user message is accepted, and callers poll the
// message list until the reply is complete. This package only builds and
// sends requests; polling lives in the store package.
//
// # Key Types
//
//   - Client: HTTP client with bearer auth and optional rate limiting
//   - Conversation, Message, UserModel, Assistant: wire types
//   - ConversationAction: tagged request variants for POST /api/db/conversations
//   - RequestError, NotFoundError: typed failures
//
// # Usage
//
//	client := api.NewClient(&api.ClientConfig{
//	    BaseURL: "https://nano-gpt.com",
//	    APIKey:  key,
//	})
//	convs, err := client.GetConversations(ctx, api.ListOptions{})
//	resp, err := client.GenerateMessage(ctx, api.GenerateMessageRequest{
//	    Message: "Hello",
//	    ModelID: "gpt-4o",
//	})
//
// Errors carry the HTTP status:
//
//	if api.IsUnauthorized(err) {
//	    // prompt for a new key
//	}
package api
