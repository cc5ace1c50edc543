// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
)

// ErrUnknownModel is returned when selecting a model that is not enabled.
var ErrUnknownModel = errors.New("unknown model")

// ModelsAPI is the part of the API client the models store needs.
type ModelsAPI interface {
	GetUserModels(ctx context.Context) ([]api.UserModel, error)
}

// ModelsState holds the enabled models only.
type ModelsState struct {
	Models          []api.UserModel
	SelectedModelID string
	Loading         bool
	Error           string
}

// ModelsStore tracks the user's enabled models and the selected one.
type ModelsStore struct {
	state *Observable[ModelsState]
	api   ModelsAPI
	log   *zap.Logger
}

// NewModelsStore creates an empty models store. A nil logger discards logs.
func NewModelsStore(client ModelsAPI, logger *zap.Logger) *ModelsStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelsStore{
		state: NewObservable(ModelsState{}),
		api:   client,
		log:   logger.Named("models"),
	}
}

// State returns the current snapshot.
func (s *ModelsStore) State() ModelsState {
	return s.state.Get()
}

// Subscribe registers fn for state changes. See Observable.Subscribe.
func (s *ModelsStore) Subscribe(fn func(ModelsState)) func() {
	return s.state.Subscribe(fn)
}

// LoadModels fetches the user's models, keeps the enabled ones and selects
// the first pinned model, else the first enabled one.
func (s *ModelsStore) LoadModels(ctx context.Context) error {
	s.state.Update(func(st ModelsState) ModelsState {
		st.Loading = true
		st.Error = ""
		return st
	})

	all, err := s.api.GetUserModels(ctx)
	if err != nil {
		s.state.Update(func(st ModelsState) ModelsState {
			st.Loading = false
			st.Error = fmt.Sprintf("failed to load models: %v", err)
			return st
		})
		return err
	}

	enabled := make([]api.UserModel, 0, len(all))
	for _, m := range all {
		if m.Enabled {
			enabled = append(enabled, m)
		}
	}

	s.state.Update(func(st ModelsState) ModelsState {
		st.Models = enabled
		st.SelectedModelID = defaultModel(enabled)
		st.Loading = false
		return st
	})
	s.log.Debug("loaded models", zap.Int("total", len(all)), zap.Int("enabled", len(enabled)))
	return nil
}

func defaultModel(models []api.UserModel) string {
	for _, m := range models {
		if m.Pinned {
			return m.ModelID
		}
	}
	if len(models) > 0 {
		return models[0].ModelID
	}
	return ""
}

// SelectModel makes id the preferred model. The choice is client-only.
func (s *ModelsStore) SelectModel(id string) error {
	_, ok := s.state.UpdateIf(func(st ModelsState) (ModelsState, bool) {
		for _, m := range st.Models {
			if m.ModelID == id {
				st.SelectedModelID = id
				return st, true
			}
		}
		return st, false
	})
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return nil
}

// SelectedModel returns the selected model, if any.
func (s *ModelsStore) SelectedModel() (api.UserModel, bool) {
	st := s.state.Get()
	for _, m := range st.Models {
		if m.ModelID == st.SelectedModelID {
			return m, true
		}
	}
	return api.UserModel{}, false
}

// ClearError drops the last load error.
func (s *ModelsStore) ClearError() {
	s.state.Update(func(st ModelsState) ModelsState {
		st.Error = ""
		return st
	})
}

// Reset returns the store to its empty state.
func (s *ModelsStore) Reset() {
	s.state.Set(ModelsState{})
}
