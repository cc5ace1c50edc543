// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/apitest"
	"github.com/thejudge22/nanochat-desktop/internal/storage"
)

func newTestConversations(t *testing.T) (*ConversationsStore, *apitest.Server, storage.Cache) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	cache, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "cache.db"), srv.URL, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return NewConversationsStore(srv.Client(), cache, zaptest.NewLogger(t)), srv, cache
}

func TestConversationsStore_SelectionAndNewChatAreExclusive(t *testing.T) {
	s := NewConversationsStore(nil, nil, nil)

	steps := []struct {
		name         string
		apply        func()
		wantSelected string
		wantNewChat  bool
	}{
		{"start new chat", s.StartNewChat, "", true},
		{"select", func() { s.SelectConversation("a") }, "a", false},
		{"new chat again", s.StartNewChat, "", true},
		{"add and select", func() { s.AddAndSelectConversation(api.Conversation{ID: "b"}) }, "b", false},
		{"clear selection", func() { s.SelectConversation("") }, "", false},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			step.apply()
			st := s.State()
			assert.Equal(t, step.wantSelected, st.SelectedConversationID)
			assert.Equal(t, step.wantNewChat, st.NewChatMode)
			assert.False(t, st.SelectedConversationID != "" && st.NewChatMode)
		})
	}
}

func TestConversationsStore_AddAndSelectIsIdempotent(t *testing.T) {
	s := NewConversationsStore(nil, nil, nil)
	s.AddAndSelectConversation(api.Conversation{ID: "a", Title: "A"})
	s.AddAndSelectConversation(api.Conversation{ID: "b", Title: "B"})
	s.AddAndSelectConversation(api.Conversation{ID: "b", Title: "B again"})

	st := s.State()
	require.Len(t, st.Conversations, 2)
	assert.Equal(t, "b", st.Conversations[0].ID, "new entries go to the front")
	assert.Equal(t, "B", st.Conversations[0].Title, "existing entry is kept")
	assert.Equal(t, "b", st.SelectedConversationID)

	selected, ok := s.SelectedConversation()
	require.True(t, ok)
	assert.Equal(t, "b", selected.ID)
}

func TestConversationsStore_UpdateConversation(t *testing.T) {
	s := NewConversationsStore(nil, nil, nil)
	s.AddAndSelectConversation(api.Conversation{ID: "a", Title: "old"})

	var notified int
	unsubscribe := s.Subscribe(func(ConversationsState) { notified++ })
	defer unsubscribe()

	s.UpdateConversation(api.Conversation{ID: "missing", Title: "x"})
	assert.Equal(t, 1, notified, "unknown ids do not notify")
	assert.Len(t, s.State().Conversations, 1)

	s.UpdateConversation(api.Conversation{ID: "a", Title: "new", Generating: true})
	assert.Equal(t, 2, notified)
	assert.Equal(t, "new", s.State().Conversations[0].Title)
	assert.True(t, s.State().Conversations[0].Generating)
}

func TestConversationsStore_DeleteConversation(t *testing.T) {
	tests := []struct {
		name         string
		selected     string
		wantSelected string
	}{
		{"selected conversation", "a", ""},
		{"other conversation", "b", "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, srv, cache := newTestConversations(t)
			srv.AddConversation(api.Conversation{ID: "a", Title: "A"})
			srv.AddConversation(api.Conversation{ID: "b", Title: "B"})
			require.NoError(t, cache.SaveMessages(ctx, "a", []api.Message{{ID: "m"}}))

			require.NoError(t, s.LoadConversations(ctx))
			s.SelectConversation(tt.selected)

			require.NoError(t, s.DeleteConversation(ctx, "a"))

			st := s.State()
			require.Len(t, st.Conversations, 1)
			assert.Equal(t, "b", st.Conversations[0].ID)
			assert.Equal(t, tt.wantSelected, st.SelectedConversationID)

			_, err := cache.LoadMessages(ctx, "a")
			assert.ErrorIs(t, err, storage.ErrCacheMiss)
			snap, err := cache.LoadConversations(ctx)
			require.NoError(t, err)
			assert.Len(t, snap.Conversations, 1)
		})
	}
}

func TestConversationsStore_DeleteFailureKeepsEntry(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestConversations(t)
	s.AddAndSelectConversation(api.Conversation{ID: "ghost"})

	err := s.DeleteConversation(ctx, "ghost")
	require.Error(t, err)
	assert.Equal(t, 404, api.StatusCode(err))

	st := s.State()
	assert.Len(t, st.Conversations, 1)
	assert.Equal(t, "ghost", st.SelectedConversationID)
	assert.NotEmpty(t, st.Error)

	s.ClearError()
	assert.Empty(t, s.State().Error)
}

func TestConversationsStore_LoadAndHydrate(t *testing.T) {
	ctx := context.Background()
	s, srv, cache := newTestConversations(t)
	srv.AddConversation(api.Conversation{ID: "old", Title: "Old", UpdatedAt: time.Now().Add(-time.Hour)})
	srv.AddConversation(api.Conversation{ID: "pinned", Title: "Pinned", Pinned: true, UpdatedAt: time.Now().Add(-2 * time.Hour)})
	srv.AddConversation(api.Conversation{ID: "new", Title: "New"})

	hydrated, err := s.Hydrate(ctx)
	require.NoError(t, err)
	assert.False(t, hydrated, "empty cache")

	require.NoError(t, s.LoadConversations(ctx))
	st := s.State()
	assert.False(t, st.Loading)
	require.Len(t, st.Conversations, 3)
	assert.Equal(t, "pinned", st.Conversations[0].ID)

	fresh := NewConversationsStore(srv.Client(), cache, zaptest.NewLogger(t))
	hydrated, err = fresh.Hydrate(ctx)
	require.NoError(t, err)
	assert.True(t, hydrated)
	assert.Len(t, fresh.State().Conversations, 3)

	hydrated, err = fresh.Hydrate(ctx)
	require.NoError(t, err)
	assert.False(t, hydrated, "non-empty list is left alone")
}

func TestConversationsStore_LoadFailure(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer()
	defer srv.Close()
	client := api.NewClient(&api.ClientConfig{BaseURL: srv.URL, APIKey: "wrong"})
	s := NewConversationsStore(client, nil, zaptest.NewLogger(t))

	err := s.LoadConversations(ctx)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	st := s.State()
	assert.False(t, st.Loading)
	assert.Contains(t, st.Error, "failed to load conversations")
}

func TestConversationsStore_Search(t *testing.T) {
	ctx := context.Background()
	s, srv, _ := newTestConversations(t)
	srv.AddConversation(api.Conversation{ID: "go", Title: "Go generics"})
	srv.AddConversation(api.Conversation{ID: "rust", Title: "Rust lifetimes"})
	require.NoError(t, s.LoadConversations(ctx))

	found, err := s.Search(ctx, "generics", api.SearchWords)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "go", found[0].ID)
	assert.Len(t, s.State().Conversations, 2, "list is untouched by search")
}

func TestConversationsStore_ServerActions(t *testing.T) {
	ctx := context.Background()
	s, srv, _ := newTestConversations(t)
	conv := srv.AddConversation(api.Conversation{ID: "c1", Title: "Original"})
	first := srv.AddMessage(api.Message{ConversationID: conv.ID, Role: api.RoleUser, Content: "one"})
	srv.AddMessage(api.Message{ConversationID: conv.ID, Role: api.RoleAssistant, Content: "two"})
	require.NoError(t, s.LoadConversations(ctx))

	t.Run("rename", func(t *testing.T) {
		require.NoError(t, s.RenameConversation(ctx, "c1", "Renamed"))
		assert.Equal(t, "Renamed", s.State().Conversations[0].Title)
	})

	t.Run("toggle pin", func(t *testing.T) {
		require.NoError(t, s.TogglePin(ctx, "c1"))
		assert.True(t, s.State().Conversations[0].Pinned)
		require.NoError(t, s.TogglePin(ctx, "c1"))
		assert.False(t, s.State().Conversations[0].Pinned)
	})

	t.Run("set public", func(t *testing.T) {
		require.NoError(t, s.SetPublic(ctx, "c1", true))
		assert.True(t, srv.IsPublic("c1"))
	})

	t.Run("branch", func(t *testing.T) {
		branch, err := s.BranchConversation(ctx, "c1", first.ID)
		require.NoError(t, err)
		st := s.State()
		assert.Equal(t, branch.ID, st.SelectedConversationID)
		assert.Equal(t, branch.ID, st.Conversations[0].ID)
		assert.Len(t, st.Conversations, 2)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		err := s.RenameConversation(ctx, "nope", "x")
		require.Error(t, err)
		assert.NotEmpty(t, s.State().Error)
	})
}

func TestConversationsStore_DeleteAllAndReset(t *testing.T) {
	ctx := context.Background()
	s, srv, cache := newTestConversations(t)
	srv.AddConversation(api.Conversation{ID: "a"})
	srv.AddConversation(api.Conversation{ID: "b"})
	require.NoError(t, s.LoadConversations(ctx))
	s.SelectConversation("a")

	require.NoError(t, s.DeleteAllConversations(ctx))
	st := s.State()
	assert.Empty(t, st.Conversations)
	assert.Empty(t, st.SelectedConversationID)
	_, err := cache.LoadConversations(ctx)
	assert.ErrorIs(t, err, storage.ErrCacheMiss)

	s.StartNewChat()
	s.Reset()
	assert.Equal(t, ConversationsState{}, s.State())
}
