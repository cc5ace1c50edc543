// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the client-side state of nanochat.
//
// The server owns every conversation and message; stores keep the latest
// copy the client has seen and expose it as observable snapshots. The chat
// store also drives generation: the backend answers a send request right
// away and keeps writing the assistant reply on its side, so the store polls
// until the reply is complete.
//
// # Key Types
//
//   - Observable: value holder with subscribe/notify
//   - ChatStore: active conversation, send and poll cycle
//   - ConversationsStore: conversation list, selection, new-chat mode
//   - ModelsStore: enabled models and the selected one
//   - AssistantsStore: assistants and the selected one
//
// # Usage
//
//	convs := store.NewConversationsStore(client, cache, logger)
//	assistants := store.NewAssistantsStore(client, logger)
//	chat := store.NewChatStore(store.ChatDeps{
//	    API:           client,
//	    Conversations: convs,
//	    Assistants:    assistants,
//	    Cache:         cache,
//	}, store.DefaultChatConfig())
//	defer chat.Close()
//
//	if err := chat.SendMessage(ctx, "hello", "gpt-4o"); err != nil {
//	    return err
//	}
//	err := chat.WaitIdle(ctx)
//
// # Thread Safety
//
// All stores are safe for concurrent use. Subscribers are called outside the
// store lock.
package store
