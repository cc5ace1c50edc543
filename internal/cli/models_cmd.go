// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models_cmd.go - Model and assistant listings.
//
// The marked entry is what chat and ask would use: --model or
// default_model for models, default_assistant or the server default for
// assistants.
package cli

import (
	"context"

	"github.com/thejudge22/nanochat-desktop/internal/api"
)

// ModelListData is the JSON form of the models command.
type ModelListData struct {
	Models   []api.UserModel `json:"models"`
	Selected string          `json:"selected"`
}

// AssistantListData is the JSON form of the assistants command.
type AssistantListData struct {
	Assistants []api.Assistant `json:"assistants"`
	Selected   string          `json:"selected"`
}

// HandleModels lists the enabled models.
func HandleModels(ctx context.Context, a *App, args Args) error {
	if err := a.requireConfigured(); err != nil {
		return err
	}
	if err := a.Models.LoadModels(ctx); err != nil {
		return err
	}

	want := args.Model
	if want == "" {
		want = a.Config().DefaultModel
	}
	if want != "" {
		if err := a.Models.SelectModel(want); err != nil {
			a.warnf("%v", err)
		}
	}

	st := a.Models.State()
	if a.JSON {
		return a.printJSON("models", ModelListData{Models: st.Models, Selected: st.SelectedModelID})
	}
	a.renderer().RenderModels(a.Out, st.Models, st.SelectedModelID)
	return nil
}

// HandleAssistants lists the assistants.
func HandleAssistants(ctx context.Context, a *App, args Args) error {
	if err := a.requireConfigured(); err != nil {
		return err
	}
	if err := a.Assistants.LoadAssistants(ctx); err != nil {
		return err
	}
	if id := a.Config().DefaultAssistant; id != "" {
		a.Assistants.SelectAssistant(id)
	}

	st := a.Assistants.State()
	if a.JSON {
		return a.printJSON("assistants", AssistantListData{Assistants: st.Assistants, Selected: st.SelectedAssistantID})
	}
	a.renderer().RenderAssistants(a.Out, st.Assistants, st.SelectedAssistantID)
	return nil
}
