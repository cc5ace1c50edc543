// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/storage"
)

// ConversationsAPI is the part of the API client the conversation list needs.
type ConversationsAPI interface {
	GetConversations(ctx context.Context, opts api.ListOptions) ([]api.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	DeleteAllConversations(ctx context.Context) error
	UpdateConversationTitle(ctx context.Context, id, title string) (*api.Conversation, error)
	ToggleConversationPin(ctx context.Context, id string) (*api.Conversation, error)
	SetConversationPublic(ctx context.Context, id string, public bool) (*api.Conversation, error)
	BranchConversation(ctx context.Context, id, fromMessageID string) (*api.Conversation, error)
}

// ConversationsState is a snapshot of the conversation list.
// A selected conversation and new-chat mode never hold at the same time.
type ConversationsState struct {
	Conversations          []api.Conversation
	SelectedConversationID string
	NewChatMode            bool
	Loading                bool
	Error                  string
}

// ConversationsStore keeps the conversation list in sync with the server.
type ConversationsStore struct {
	state *Observable[ConversationsState]
	api   ConversationsAPI
	cache storage.Cache
	log   *zap.Logger
}

// NewConversationsStore creates an empty store. cache and logger may be nil.
func NewConversationsStore(client ConversationsAPI, cache storage.Cache, logger *zap.Logger) *ConversationsStore {
	if cache == nil {
		cache = storage.NopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationsStore{
		state: NewObservable(ConversationsState{}),
		api:   client,
		cache: cache,
		log:   logger.Named("conversations"),
	}
}

// State returns the current snapshot.
func (s *ConversationsStore) State() ConversationsState {
	return s.state.Get()
}

// Subscribe registers fn for state changes. See Observable.Subscribe.
func (s *ConversationsStore) Subscribe(fn func(ConversationsState)) func() {
	return s.state.Subscribe(fn)
}

// =============================================================================
// LOADING
// =============================================================================

// LoadConversations replaces the list with the server's and refreshes the
// offline cache.
func (s *ConversationsStore) LoadConversations(ctx context.Context) error {
	s.state.Update(func(st ConversationsState) ConversationsState {
		st.Loading = true
		st.Error = ""
		return st
	})

	convs, err := s.api.GetConversations(ctx, api.ListOptions{})
	if err != nil {
		s.setError(fmt.Errorf("failed to load conversations: %w", err))
		return err
	}

	s.state.Update(func(st ConversationsState) ConversationsState {
		st.Conversations = convs
		st.Loading = false
		return st
	})

	if err := s.cache.SaveConversations(ctx, convs); err != nil {
		s.log.Warn("failed to cache conversation list", zap.Error(err))
	}
	return nil
}

// Search asks the server for conversations matching query. The stored list
// is left alone so it keeps mirroring the full history.
func (s *ConversationsStore) Search(ctx context.Context, query string, mode api.SearchMode) ([]api.Conversation, error) {
	convs, err := s.api.GetConversations(ctx, api.ListOptions{Search: query, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	return convs, nil
}

// Hydrate fills an empty list from the offline cache. It reports whether
// anything was loaded; a cache miss is not an error.
func (s *ConversationsStore) Hydrate(ctx context.Context) (bool, error) {
	if len(s.state.Get().Conversations) > 0 {
		return false, nil
	}

	snap, err := s.cache.LoadConversations(ctx)
	if errors.Is(err, storage.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hydrate conversations: %w", err)
	}

	_, applied := s.state.UpdateIf(func(st ConversationsState) (ConversationsState, bool) {
		if len(st.Conversations) > 0 {
			return st, false
		}
		st.Conversations = snap.Conversations
		return st, true
	})
	if applied {
		s.log.Debug("hydrated conversations from cache",
			zap.Int("count", len(snap.Conversations)),
			zap.Time("saved_at", snap.SavedAt))
	}
	return applied, nil
}

// =============================================================================
// SERVER-BACKED MUTATIONS
// =============================================================================

// DeleteConversation deletes on the server, then drops the local entry.
// A selected conversation is deselected.
func (s *ConversationsStore) DeleteConversation(ctx context.Context, id string) error {
	if err := s.api.DeleteConversation(ctx, id); err != nil {
		s.setError(fmt.Errorf("failed to delete conversation: %w", err))
		return err
	}

	st := s.state.Update(func(st ConversationsState) ConversationsState {
		st.Conversations = without(st.Conversations, id)
		if st.SelectedConversationID == id {
			st.SelectedConversationID = ""
		}
		return st
	})

	if err := s.cache.DeleteConversation(ctx, id); err != nil {
		s.log.Warn("failed to drop cached conversation", zap.String("conversation_id", id), zap.Error(err))
	}
	if err := s.cache.SaveConversations(ctx, st.Conversations); err != nil {
		s.log.Warn("failed to cache conversation list", zap.Error(err))
	}
	return nil
}

// DeleteAllConversations deletes every conversation of the user.
func (s *ConversationsStore) DeleteAllConversations(ctx context.Context) error {
	if err := s.api.DeleteAllConversations(ctx); err != nil {
		s.setError(fmt.Errorf("failed to delete conversations: %w", err))
		return err
	}

	s.state.Update(func(st ConversationsState) ConversationsState {
		st.Conversations = []api.Conversation{}
		st.SelectedConversationID = ""
		return st
	})

	if err := s.cache.Clear(ctx); err != nil {
		s.log.Warn("failed to clear cache", zap.Error(err))
	}
	return nil
}

// RenameConversation sets a new title.
func (s *ConversationsStore) RenameConversation(ctx context.Context, id, title string) error {
	updated, err := s.api.UpdateConversationTitle(ctx, id, title)
	if err != nil {
		s.setError(fmt.Errorf("failed to rename conversation: %w", err))
		return err
	}
	s.applyServerCopy(id, updated, func(c *api.Conversation) { c.Title = title })
	return nil
}

// TogglePin flips the pinned flag.
func (s *ConversationsStore) TogglePin(ctx context.Context, id string) error {
	updated, err := s.api.ToggleConversationPin(ctx, id)
	if err != nil {
		s.setError(fmt.Errorf("failed to toggle pin: %w", err))
		return err
	}
	s.applyServerCopy(id, updated, func(c *api.Conversation) { c.Pinned = !c.Pinned })
	return nil
}

// SetPublic shares or unshares a conversation.
func (s *ConversationsStore) SetPublic(ctx context.Context, id string, public bool) error {
	updated, err := s.api.SetConversationPublic(ctx, id, public)
	if err != nil {
		s.setError(fmt.Errorf("failed to change sharing: %w", err))
		return err
	}
	s.applyServerCopy(id, updated, nil)
	return nil
}

// BranchConversation copies a conversation up to fromMessageID and selects
// the copy.
func (s *ConversationsStore) BranchConversation(ctx context.Context, id, fromMessageID string) (*api.Conversation, error) {
	branch, err := s.api.BranchConversation(ctx, id, fromMessageID)
	if err != nil {
		s.setError(fmt.Errorf("failed to branch conversation: %w", err))
		return nil, err
	}
	if branch == nil || branch.ID == "" {
		return nil, fmt.Errorf("branch conversation: server returned no conversation")
	}
	s.AddAndSelectConversation(*branch)
	return branch, nil
}

// applyServerCopy stores the server's copy of a conversation. Some backend
// versions answer actions with {ok: true} only; patch then edits the local
// entry instead.
func (s *ConversationsStore) applyServerCopy(id string, updated *api.Conversation, patch func(*api.Conversation)) {
	if updated != nil && updated.ID != "" {
		s.UpdateConversation(*updated)
		return
	}
	if patch == nil {
		return
	}
	s.state.UpdateIf(func(st ConversationsState) (ConversationsState, bool) {
		i := indexOf(st.Conversations, id)
		if i < 0 {
			return st, false
		}
		convs := append([]api.Conversation(nil), st.Conversations...)
		patch(&convs[i])
		st.Conversations = convs
		return st, true
	})
}

// =============================================================================
// LOCAL STATE
// =============================================================================

// SelectConversation selects id and leaves new-chat mode. An empty id clears
// the selection.
func (s *ConversationsStore) SelectConversation(id string) {
	s.state.Update(func(st ConversationsState) ConversationsState {
		st.SelectedConversationID = id
		st.NewChatMode = false
		return st
	})
}

// StartNewChat clears the selection and enters new-chat mode.
func (s *ConversationsStore) StartNewChat() {
	s.state.Update(func(st ConversationsState) ConversationsState {
		st.SelectedConversationID = ""
		st.NewChatMode = true
		return st
	})
}

// AddAndSelectConversation inserts conv at the front unless an entry with the
// same id exists, and selects it in the same update.
func (s *ConversationsStore) AddAndSelectConversation(conv api.Conversation) {
	s.state.Update(func(st ConversationsState) ConversationsState {
		if indexOf(st.Conversations, conv.ID) < 0 {
			convs := make([]api.Conversation, 0, len(st.Conversations)+1)
			convs = append(convs, conv)
			st.Conversations = append(convs, st.Conversations...)
		}
		st.SelectedConversationID = conv.ID
		st.NewChatMode = false
		return st
	})
}

// UpdateConversation replaces the entry with conv's id. Unknown ids are
// ignored.
func (s *ConversationsStore) UpdateConversation(conv api.Conversation) {
	s.state.UpdateIf(func(st ConversationsState) (ConversationsState, bool) {
		i := indexOf(st.Conversations, conv.ID)
		if i < 0 {
			return st, false
		}
		convs := append([]api.Conversation(nil), st.Conversations...)
		convs[i] = conv
		st.Conversations = convs
		return st, true
	})
}

// SelectedConversation returns the selected entry, if it is in the list.
func (s *ConversationsStore) SelectedConversation() (api.Conversation, bool) {
	st := s.state.Get()
	if st.SelectedConversationID == "" {
		return api.Conversation{}, false
	}
	if i := indexOf(st.Conversations, st.SelectedConversationID); i >= 0 {
		return st.Conversations[i], true
	}
	return api.Conversation{}, false
}

// ClearError drops the last error.
func (s *ConversationsStore) ClearError() {
	s.state.Update(func(st ConversationsState) ConversationsState {
		st.Error = ""
		return st
	})
}

// Reset returns the store to its initial state.
func (s *ConversationsStore) Reset() {
	s.state.Set(ConversationsState{})
}

func (s *ConversationsStore) setError(err error) {
	s.log.Debug("conversation operation failed", zap.Error(err))
	s.state.Update(func(st ConversationsState) ConversationsState {
		st.Loading = false
		st.Error = err.Error()
		return st
	})
}

func indexOf(convs []api.Conversation, id string) int {
	for i := range convs {
		if convs[i].ID == id {
			return i
		}
	}
	return -1
}

func without(convs []api.Conversation, id string) []api.Conversation {
	out := make([]api.Conversation, 0, len(convs))
	for _, c := range convs {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
