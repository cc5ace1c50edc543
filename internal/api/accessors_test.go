// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/apitest"
)

func TestGetConversations_Query(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		w.Write([]byte(`null`))
	}))
	defer srv.Close()
	c := api.NewClient(&api.ClientConfig{BaseURL: srv.URL})

	tests := []struct {
		name string
		opts api.ListOptions
		want string
	}{
		{"no project", api.ListOptions{}, "projectId=null"},
		{"project", api.ListOptions{ProjectID: "p1"}, "projectId=p1"},
		{"search default mode", api.ListOptions{Search: " hello "}, "mode=fuzzy&projectId=null&search=hello"},
		{"search exact", api.ListOptions{Search: "x", Mode: api.SearchExact}, "mode=exact&projectId=null&search=x"},
		// "e" + combining acute accent is normalized to U+00E9.
		{"nfc", api.ListOptions{Search: "cafe\u0301"}, "mode=fuzzy&projectId=null&search=caf%C3%A9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			convs, err := c.GetConversations(context.Background(), tt.opts)
			require.NoError(t, err)
			assert.NotNil(t, convs)
			assert.Empty(t, convs)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConversationLifecycle(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := srv.Client()
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, "First", "")
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)

	got, err := c.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)

	renamed, err := c.UpdateConversationTitle(ctx, conv.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)

	pinned, err := c.ToggleConversationPin(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, pinned.Pinned)

	_, err = c.SetConversationPublic(ctx, conv.ID, true)
	require.NoError(t, err)
	assert.True(t, srv.IsPublic(conv.ID))

	list, err := c.GetConversations(ctx, api.ListOptions{Search: "renam"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, c.DeleteConversation(ctx, conv.ID))
	_, err = c.GetConversation(ctx, conv.ID)
	assert.True(t, api.IsNotFound(err))
	var nf *api.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, conv.ID, nf.ID)
}

func TestCreateWithMessageAndBranch(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := srv.Client()
	ctx := context.Background()

	resp, err := c.CreateWithMessage(ctx, api.CreateWithMessageAction{Content: "hi", ModelID: "m"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ConversationID)

	msgs, err := c.GetMessages(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, resp.MessageID, msgs[0].ID)

	branch, err := c.BranchConversation(ctx, resp.ConversationID, resp.MessageID)
	require.NoError(t, err)
	assert.NotEqual(t, resp.ConversationID, branch.ID)

	branched, err := c.GetMessages(ctx, branch.ID)
	require.NoError(t, err)
	require.Len(t, branched, 1)
	assert.Equal(t, "hi", branched[0].Content)
}

func TestDeleteAllConversations(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := srv.Client()
	ctx := context.Background()

	srv.AddConversation(api.Conversation{Title: "a"})
	srv.AddConversation(api.Conversation{Title: "b"})
	require.NoError(t, c.DeleteAllConversations(ctx))

	list, err := c.GetConversations(ctx, api.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGenerateMessage(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := srv.Client()
	ctx := context.Background()

	resp, err := c.GenerateMessage(ctx, api.GenerateMessageRequest{Message: "hello", ModelID: "gpt-x", AssistantID: "a1"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	require.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "a1", srv.LastGenerate().AssistantID)

	conv, err := c.GetConversation(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.True(t, conv.Generating)

	srv.Complete(resp.ConversationID, "done")
	msgs, err := c.GetMessages(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, api.RoleUser, msgs[0].Role)
	assert.Equal(t, "done", api.LastAssistantMessage(msgs).Content)
}

func TestGenerateMessage_ServerError(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.GenerateStatus.Store(http.StatusServiceUnavailable)

	_, err := srv.Client().GenerateMessage(context.Background(), api.GenerateMessageRequest{Message: "x", ModelID: "m"})
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, api.StatusCode(err))
}

func TestModelsAndAssistants(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.SetModels(api.UserModel{ModelID: "a", Enabled: true}, api.UserModel{ModelID: "b"})
	srv.SetAssistants(api.Assistant{ID: "x", Name: "Helper", IsDefault: true})
	c := srv.Client()

	models, err := c.GetUserModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 2)

	assistants, err := c.ListAssistants(context.Background())
	require.NoError(t, err)
	require.Len(t, assistants, 1)
	assert.True(t, assistants[0].IsDefault)
}

func TestValidateConnection(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	t.Run("ok", func(t *testing.T) {
		require.NoError(t, srv.Client().ValidateConnection(context.Background()))
	})

	t.Run("bad key", func(t *testing.T) {
		c := api.NewClient(&api.ClientConfig{BaseURL: srv.URL, APIKey: "wrong"})
		err := c.ValidateConnection(context.Background())
		assert.True(t, errors.Is(err, api.ErrUnauthorized))
		assert.True(t, api.IsUnauthorized(err))
	})

	t.Run("wrong url", func(t *testing.T) {
		c := api.NewClient(&api.ClientConfig{BaseURL: srv.URL + "/nested", APIKey: apitest.APIKey})
		err := c.ValidateConnection(context.Background())
		assert.True(t, errors.Is(err, api.ErrEndpointNotFound))
	})

	t.Run("server error", func(t *testing.T) {
		other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer other.Close()
		err := api.NewClient(&api.ClientConfig{BaseURL: other.URL}).ValidateConnection(context.Background())
		assert.Equal(t, http.StatusInternalServerError, api.StatusCode(err))
	})
}
