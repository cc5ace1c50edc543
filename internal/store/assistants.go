// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
)

// AssistantsAPI is the part of the API client the assistants store needs.
type AssistantsAPI interface {
	ListAssistants(ctx context.Context) ([]api.Assistant, error)
}

// AssistantSelector supplies the assistant used for new generations.
type AssistantSelector interface {
	SelectedAssistantID() string
}

// AssistantsState holds the loaded assistants and the selection.
type AssistantsState struct {
	Assistants          []api.Assistant
	SelectedAssistantID string
}

// AssistantsStore tracks saved assistants and the selected one.
type AssistantsStore struct {
	state *Observable[AssistantsState]
	api   AssistantsAPI
	log   *zap.Logger
}

// NewAssistantsStore creates an empty assistants store. A nil logger discards logs.
func NewAssistantsStore(client AssistantsAPI, logger *zap.Logger) *AssistantsStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssistantsStore{
		state: NewObservable(AssistantsState{}),
		api:   client,
		log:   logger.Named("assistants"),
	}
}

// State returns the current snapshot.
func (s *AssistantsStore) State() AssistantsState {
	return s.state.Get()
}

// Subscribe registers fn for state changes. See Observable.Subscribe.
func (s *AssistantsStore) Subscribe(fn func(AssistantsState)) func() {
	return s.state.Subscribe(fn)
}

// LoadAssistants replaces the list and selects the default assistant, or
// none. On failure the previous state is kept.
func (s *AssistantsStore) LoadAssistants(ctx context.Context) error {
	list, err := s.api.ListAssistants(ctx)
	if err != nil {
		s.log.Warn("failed to load assistants", zap.Error(err))
		return fmt.Errorf("load assistants: %w", err)
	}

	selected := ""
	for _, a := range list {
		if a.IsDefault {
			selected = a.ID
			break
		}
	}
	s.state.Set(AssistantsState{Assistants: list, SelectedAssistantID: selected})
	return nil
}

// SelectAssistant sets the assistant for new conversations. An empty id
// selects none.
func (s *AssistantsStore) SelectAssistant(id string) {
	s.state.Update(func(st AssistantsState) AssistantsState {
		st.SelectedAssistantID = id
		return st
	})
}

// SelectedAssistantID returns the selected id, or "" for none.
func (s *AssistantsStore) SelectedAssistantID() string {
	return s.state.Get().SelectedAssistantID
}

// SelectedAssistant returns the selected assistant, if it is loaded.
func (s *AssistantsStore) SelectedAssistant() (api.Assistant, bool) {
	st := s.state.Get()
	if st.SelectedAssistantID == "" {
		return api.Assistant{}, false
	}
	for _, a := range st.Assistants {
		if a.ID == st.SelectedAssistantID {
			return a, true
		}
	}
	return api.Assistant{}, false
}

// Reset returns the store to its empty state.
func (s *AssistantsStore) Reset() {
	s.state.Set(AssistantsState{})
}
