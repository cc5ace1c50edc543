// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
)

const (
	assistantsPath = "/api/assistants"
	userModelsPath = "/api/db/user-models"
)

// ListAssistants returns all assistants of the user.
func (c *Client) ListAssistants(ctx context.Context) ([]Assistant, error) {
	var list []Assistant
	if err := c.do(ctx, http.MethodGet, assistantsPath, nil, nil, &list); err != nil {
		return nil, fmt.Errorf("list assistants: %w", err)
	}
	if list == nil {
		list = []Assistant{}
	}
	return list, nil
}

// GetUserModels returns the user's model settings, enabled or not.
func (c *Client) GetUserModels(ctx context.Context) ([]UserModel, error) {
	var models []UserModel
	if err := c.do(ctx, http.MethodGet, userModelsPath, nil, nil, &models); err != nil {
		return nil, fmt.Errorf("get user models: %w", err)
	}
	if models == nil {
		models = []UserModel{}
	}
	return models, nil
}
