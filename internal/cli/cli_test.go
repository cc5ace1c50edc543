// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/apitest"
	"github.com/thejudge22/nanochat-desktop/internal/config"
	"github.com/thejudge22/nanochat-desktop/internal/storage"
	"github.com/thejudge22/nanochat-desktop/internal/store"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"list", "--limit", "5"},
			wantSub: "list",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, 5, p.FlagIntOrDefault("limit", 0))
				assert.Equal(t, 1, p.PositionalCount())
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"search", "--mode=exact", "rate", "limiter"},
			wantSub: "search",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "exact", p.Flag("mode"))
				assert.Equal(t, "rate limiter", JoinPositionalArgs(p, 1))
			},
		},
		{
			name:    "bool flag does not eat the next argument",
			args:    []string{"show", "--offline", "abc"},
			bools:   []string{"offline"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("offline"))
				assert.Equal(t, "abc", p.Positional(1))
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"--", "--not-a-flag", "x"},
			wantSub: "--not-a-flag",
			validate: func(t *testing.T, p *ArgParser) {
				assert.False(t, p.HasFlag("not-a-flag"))
				assert.Equal(t, 2, p.PositionalCount())
			},
		},
		{
			name:    "negative number is positional",
			args:    []string{"set", "api.burst", "-1"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "-1", p.Positional(2))
			},
		},
		{
			name:    "empty",
			args:    nil,
			wantSub: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			assert.Equal(t, tt.wantSub, p.Subcommand())
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"on", "true", "yes", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"off", "false", "no", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

// =============================================================================
// COMMAND LINE TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
		wantErr bool
	}{
		{name: "no arguments starts chat", argv: nil, wantCmd: CmdChat},
		{name: "help flag", argv: []string{"--help"}, wantCmd: CmdHelp},
		{name: "version flag", argv: []string{"--version"}, wantCmd: CmdVersion},
		{name: "doctor alias", argv: []string{"doctor"}, wantCmd: CmdCheck},
		{name: "convs alias", argv: []string{"convs", "search", "go"}, wantCmd: CmdConversations,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "search", a.Subcommand)
			}},
		{name: "global flags anywhere", argv: []string{"ask", "--json", "hi", "-m", "gpt-4o", "-q"}, wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.True(t, a.Quiet)
				assert.Equal(t, "gpt-4o", a.Model)
				assert.Equal(t, []string{"hi"}, a.Raw)
			}},
		{name: "config path with equals", argv: []string{"--config=/tmp/c.toml", "models"}, wantCmd: CmdModels,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "/tmp/c.toml", a.ConfigPath)
			}},
		{name: "dashed message after double dash", argv: []string{"ask", "--", "-v", "is", "a", "flag"}, wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.False(t, a.Verbose)
				assert.Equal(t, "-v is a flag", JoinPositionalArgs(a.Options, 0))
			}},
		{name: "reveal is a bool flag", argv: []string{"config", "get", "--reveal", "api_key"}, wantCmd: CmdConfig,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.Options.BoolFlag("reveal"))
				assert.Equal(t, "api_key", a.Options.Positional(1))
			}},
		{name: "unknown command", argv: []string{"frobnicate"}, wantErr: true},
		{name: "missing model value", argv: []string{"ask", "hi", "--model"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := ParseArgs(tt.argv)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ExitUsageError, GetExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, cmd)
			require.NotNil(t, args.Options)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestRun_HelpAndVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), CmdHelp, Args{}, &out, &out))
	assert.Contains(t, out.String(), "conversations [subcommand]")

	out.Reset()
	require.NoError(t, Run(context.Background(), CmdVersion, Args{JSON: true}, &out, &out))
	var resp struct {
		Success bool        `json:"success"`
		Data    VersionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, Version, resp.Data.Version)
}

// =============================================================================
// EXIT CODE TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", ErrMissingArgument("id", "nanochat show ID"), ExitUsageError},
		{"not configured", ErrNotConfigured, ExitConfigError},
		{"client not configured", fmt.Errorf("send: %w", api.ErrNotConfigured), ExitConfigError},
		{"invalid config", config.ValidateErrors{{Field: "chat.max_polls", Message: "bad"}}, ExitConfigError},
		{"unauthorized", &api.RequestError{Status: 401, Message: "nope", Cause: api.ErrUnauthorized}, ExitAuthError},
		{"incomplete reply", fmt.Errorf("%w: later", ErrReplyIncomplete), ExitTimeoutError},
		{"deadline", context.DeadlineExceeded, ExitTimeoutError},
		{"not found", &api.NotFoundError{Resource: "conversation", ID: "x"}, ExitNotFoundError},
		{"http 404", &api.RequestError{Status: 404, Message: "missing"}, ExitNotFoundError},
		{"unknown model", fmt.Errorf("select: %w", store.ErrUnknownModel), ExitNotFoundError},
		{"cache miss", storage.ErrCacheMiss, ExitNotFoundError},
		{"missing file", fmt.Errorf("read: %w", os.ErrNotExist), ExitNotFoundError},
		{"network", &api.RequestError{Message: "dial tcp: refused"}, ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
		{"reported keeps its code", Reported(&api.RequestError{Status: 401, Cause: api.ErrUnauthorized}), ExitAuthError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var out bytes.Buffer
	DisplayError(&out, ErrMissingArgument("id", "nanochat show ID"), true)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "usage_error", resp.ErrorType)

	out.Reset()
	DisplayError(&out, Reported(errors.New("already shown")), false)
	assert.Empty(t, out.String())
}

// =============================================================================
// TEST APP
// =============================================================================

type testEnv struct {
	srv *apitest.Server
	cfg *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("NANOCHAT_HOME", t.TempDir())

	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.SetModels(
		api.UserModel{ModelID: "gpt-4o", Provider: "openai", Enabled: true},
		api.UserModel{ModelID: "claude", Provider: "anthropic", Enabled: true, Pinned: true},
		api.UserModel{ModelID: "disabled", Provider: "x", Enabled: false},
	)

	cfg := config.Default()
	cfg.ServerURL = srv.URL
	cfg.APIKey = apitest.APIKey
	cfg.Chat.PollIntervalMs = 50
	cfg.Chat.MaxPolls = 50
	cfg.Cache.Backend = "none"
	cfg.UI.Markdown = false
	return &testEnv{srv: srv, cfg: cfg}
}

// run parses argv and runs the command on an App over the fake server.
func (e *testEnv) run(t *testing.T, argv ...string) (string, string, error) {
	t.Helper()
	cmd, args, err := ParseArgs(argv)
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	app := newApp(context.Background(), e.cfg, "", args, zaptest.NewLogger(t), &out, &errOut)
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cmd {
	case CmdAsk:
		err = HandleAsk(ctx, app, args)
	case CmdConversations:
		err = HandleConversations(ctx, app, args)
	case CmdShow:
		err = HandleShow(ctx, app, args)
	case CmdExport:
		err = HandleExport(ctx, app, args)
	case CmdModels:
		err = HandleModels(ctx, app, args)
	case CmdAssistants:
		err = HandleAssistants(ctx, app, args)
	case CmdCheck:
		err = HandleCheck(ctx, app, args)
	default:
		t.Fatalf("command %s not runnable in tests", cmd)
	}
	return out.String(), errOut.String(), err
}

func decodeData(t *testing.T, raw string, v interface{}) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &resp), raw)
	require.True(t, resp.Success, raw)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// =============================================================================
// ASK TESTS (ask.go)
// =============================================================================

func TestAsk_PrintsReply(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AutoCompleteAfter = 2
	env.srv.Reply = "Goroutines are cheap threads."

	out, errOut, err := env.run(t, "ask", "what", "is", "a", "goroutine?")
	require.NoError(t, err)
	assert.Contains(t, out, "Goroutines are cheap threads.")
	assert.Contains(t, errOut, "conversation ")

	req := env.srv.LastGenerate()
	require.NotNil(t, req)
	assert.Equal(t, "what is a goroutine?", req.Message)
	assert.Equal(t, "claude", req.ModelID, "pinned model is the default pick")
}

func TestAsk_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AutoCompleteAfter = 1

	out, _, err := env.run(t, "--json", "ask", "--model", "gpt-4o", "hello")
	require.NoError(t, err)

	var res AskResult
	decodeData(t, out, &res)
	assert.Equal(t, "gpt-4o", res.Model)
	assert.Equal(t, "Hello from the assistant.", res.Reply)
	assert.NotEmpty(t, res.ConversationID)
	assert.NotEmpty(t, res.MessageID)
}

func TestAsk_ContinuesConversation(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AutoCompleteAfter = 1
	conv := env.srv.AddConversation(api.Conversation{Title: "existing"})

	out, _, err := env.run(t, "--json", "ask", "--conversation", conv.ID, "and then?")
	require.NoError(t, err)

	var res AskResult
	decodeData(t, out, &res)
	assert.Equal(t, conv.ID, res.ConversationID)
	assert.Equal(t, conv.ID, env.srv.LastGenerate().ConversationID)
}

func TestAsk_IncompleteReply(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Chat.MaxPolls = 3

	_, _, err := env.run(t, "ask", "slow question")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReplyIncomplete)
	assert.Equal(t, ExitTimeoutError, GetExitCode(err))
	assert.Contains(t, err.Error(), "nanochat show")
}

func TestAsk_Errors(t *testing.T) {
	t.Run("missing text", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.run(t, "ask")
		assert.Equal(t, ExitUsageError, GetExitCode(err))
	})

	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t)
		env.cfg.APIKey = ""
		_, _, err := env.run(t, "ask", "hi")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("unknown model", func(t *testing.T) {
		env := newTestEnv(t)
		_, _, err := env.run(t, "ask", "-m", "nope", "hi")
		assert.Equal(t, ExitNotFoundError, GetExitCode(err))
	})

	t.Run("bad key", func(t *testing.T) {
		env := newTestEnv(t)
		env.cfg.APIKey = "wrong"
		_, _, err := env.run(t, "ask", "hi")
		assert.Equal(t, ExitAuthError, GetExitCode(err))
	})

	t.Run("generation fails", func(t *testing.T) {
		env := newTestEnv(t)
		env.srv.GenerateStatus.Store(500)
		_, _, err := env.run(t, "ask", "hi")
		require.Error(t, err)
		assert.Equal(t, int64(1), env.srv.GenerateCalls())
	})
}

// =============================================================================
// CONVERSATIONS TESTS (conversations_cmd.go)
// =============================================================================

func TestConversations_List(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.srv.AddConversation(api.Conversation{ID: "old", Title: "Old talk", UpdatedAt: now.Add(-time.Hour)})
	env.srv.AddConversation(api.Conversation{ID: "new", Title: "New talk", UpdatedAt: now})
	env.srv.AddConversation(api.Conversation{ID: "pin", Title: "Pinned talk", Pinned: true, UpdatedAt: now.Add(-2 * time.Hour)})

	out, _, err := env.run(t, "convs")
	require.NoError(t, err)
	assert.Contains(t, out, "[P]")
	assert.Less(t, strings.Index(out, "Pinned talk"), strings.Index(out, "New talk"))
	assert.Less(t, strings.Index(out, "New talk"), strings.Index(out, "Old talk"))

	out, _, err = env.run(t, "--json", "convs", "list", "--limit", "2")
	require.NoError(t, err)
	var data ConversationListData
	decodeData(t, out, &data)
	assert.Equal(t, 2, data.Total)
	assert.False(t, data.Offline)
}

func TestConversations_ListFallsBackToCache(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Cache.Backend = "sqlite"
	env.cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	env.srv.AddConversation(api.Conversation{ID: "c1", Title: "Cached talk"})

	_, _, err := env.run(t, "convs")
	require.NoError(t, err)

	env.srv.Close()
	out, errOut, err := env.run(t, "--json", "convs")
	require.NoError(t, err)
	assert.Empty(t, errOut)

	var data ConversationListData
	decodeData(t, out, &data)
	assert.True(t, data.Offline)
	require.Len(t, data.Conversations, 1)
	assert.Equal(t, "Cached talk", data.Conversations[0].Title)
}

func TestConversations_Mutations(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AddConversation(api.Conversation{ID: "c1", Title: "First"})
	env.srv.AddConversation(api.Conversation{ID: "c2", Title: "Second"})
	msg := env.srv.AddMessage(api.Message{ConversationID: "c1", Role: api.RoleUser, Content: "hi"})

	_, _, err := env.run(t, "convs", "rename", "c1", "Renamed", "title")
	require.NoError(t, err)
	conv, ok := env.srv.Conversation("c1")
	require.True(t, ok)
	assert.Equal(t, "Renamed title", conv.Title)

	out, _, err := env.run(t, "convs", "pin", "c1")
	require.NoError(t, err)
	assert.Contains(t, out, "pinned c1")
	conv, _ = env.srv.Conversation("c1")
	assert.True(t, conv.Pinned)

	_, _, err = env.run(t, "convs", "public", "c1", "on")
	require.NoError(t, err)
	assert.True(t, env.srv.IsPublic("c1"))

	out, _, err = env.run(t, "--json", "convs", "branch", "c1", msg.ID)
	require.NoError(t, err)
	var branch api.Conversation
	decodeData(t, out, &branch)
	assert.NotEmpty(t, branch.ID)
	assert.NotEqual(t, "c1", branch.ID)

	_, _, err = env.run(t, "convs", "delete", "c2")
	require.NoError(t, err)
	_, ok = env.srv.Conversation("c2")
	assert.False(t, ok)
}

func TestConversations_DeleteAllNeedsConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AddConversation(api.Conversation{ID: "c1", Title: "Keep me"})

	_, _, err := env.run(t, "convs", "delete-all")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	_, ok := env.srv.Conversation("c1")
	assert.True(t, ok)

	_, _, err = env.run(t, "convs", "delete-all", "--yes")
	require.NoError(t, err)
	_, ok = env.srv.Conversation("c1")
	assert.False(t, ok)
}

func TestConversations_Search(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AddConversation(api.Conversation{ID: "c1", Title: "Rate limiter design"})
	env.srv.AddConversation(api.Conversation{ID: "c2", Title: "Lunch plans"})

	out, _, err := env.run(t, "--json", "convs", "search", "rate", "limiter", "--mode", "exact")
	require.NoError(t, err)
	var data ConversationListData
	decodeData(t, out, &data)
	require.Len(t, data.Conversations, 1)
	assert.Equal(t, "c1", data.Conversations[0].ID)

	_, _, err = env.run(t, "convs", "search", "x", "--mode", "regex")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestConversations_UnknownSubcommand(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "convs", "explode")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// SHOW TESTS
// =============================================================================

func TestShow_Online(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AddConversation(api.Conversation{ID: "c1", Title: "Talk"})
	env.srv.AddMessage(api.Message{ConversationID: "c1", Role: api.RoleUser, Content: "ping"})
	env.srv.AddMessage(api.Message{ConversationID: "c1", Role: api.RoleAssistant, Content: "pong"})

	out, _, err := env.run(t, "show", "c1")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "ping"), strings.Index(out, "pong"))

	out, _, err = env.run(t, "--json", "show", "c1")
	require.NoError(t, err)
	var data TranscriptData
	decodeData(t, out, &data)
	assert.Len(t, data.Messages, 2)
	assert.Nil(t, data.CachedAt)
}

func TestShow_Offline(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Cache.Backend = "sqlite"
	env.cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")
	env.srv.AddConversation(api.Conversation{ID: "c1", Title: "Talk"})
	env.srv.AddMessage(api.Message{ConversationID: "c1", Role: api.RoleUser, Content: "ping"})

	_, _, err := env.run(t, "--json", "show", "c1", "--offline")
	assert.ErrorIs(t, err, storage.ErrCacheMiss)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))

	_, _, err = env.run(t, "show", "c1")
	require.NoError(t, err)
	fetches := env.srv.MessageFetches()

	out, _, err := env.run(t, "--json", "show", "--offline", "c1")
	require.NoError(t, err)
	assert.Equal(t, fetches, env.srv.MessageFetches(), "offline reads never hit the server")

	var data TranscriptData
	decodeData(t, out, &data)
	require.Len(t, data.Messages, 1)
	assert.Equal(t, "ping", data.Messages[0].Content)
	require.NotNil(t, data.CachedAt)
}

func TestShow_MissingID(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "show")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// EXPORT TESTS (export_cmd.go)
// =============================================================================

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AddConversation(api.Conversation{ID: "c1", Title: "Export me"})
	env.srv.AddMessage(api.Message{ConversationID: "c1", Role: api.RoleUser, Content: "question"})
	env.srv.AddMessage(api.Message{ConversationID: "c1", Role: api.RoleAssistant, Content: "answer"})
	dir := t.TempDir()

	out, _, err := env.run(t, "--json", "export", "c1", "--out", dir)
	require.NoError(t, err)
	var res ExportResult
	decodeData(t, out, &res)
	assert.Equal(t, "md", res.Format)
	assert.Equal(t, 2, res.Messages)
	assert.Equal(t, dir, filepath.Dir(res.Path))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Export me")
	assert.Contains(t, string(data), "answer")

	out, _, err = env.run(t, "--json", "export", "c1", "--format", "json", "--out", dir)
	require.NoError(t, err)
	decodeData(t, out, &res)
	assert.Equal(t, ".json", filepath.Ext(res.Path))

	_, _, err = env.run(t, "export", "c1", "--format", "pdf")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, _, err = env.run(t, "export", "c1", "--offline", "--out", dir)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err), "no cache configured")
}

// =============================================================================
// MODELS AND ASSISTANTS TESTS (models_cmd.go)
// =============================================================================

func TestModels(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "--json", "models")
	require.NoError(t, err)
	var data ModelListData
	decodeData(t, out, &data)
	assert.Len(t, data.Models, 2, "disabled models are hidden")
	assert.Equal(t, "claude", data.Selected)

	env.cfg.DefaultModel = "gpt-4o"
	out, _, err = env.run(t, "models")
	require.NoError(t, err)
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "gpt-4o") {
			assert.True(t, strings.HasPrefix(line, "*"), line)
		}
	}

	env.cfg.DefaultModel = "gone"
	_, errOut, err := env.run(t, "models")
	require.NoError(t, err, "an unknown default only warns")
	assert.Contains(t, errOut, "gone")
}

func TestAssistants(t *testing.T) {
	env := newTestEnv(t)
	env.srv.SetAssistants(
		api.Assistant{ID: "a1", Name: "Default", IsDefault: true},
		api.Assistant{ID: "a2", Name: "Coder"},
	)
	env.cfg.DefaultAssistant = "a2"

	out, _, err := env.run(t, "--json", "assistants")
	require.NoError(t, err)
	var data AssistantListData
	decodeData(t, out, &data)
	assert.Len(t, data.Assistants, 2)
	assert.Equal(t, "a2", data.Selected)
}

// =============================================================================
// CHECK TESTS (check.go)
// =============================================================================

func TestCheck_Healthy(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "accepted the API key")
	assert.Contains(t, out, "2 enabled")
	assert.NotContains(t, out, "failed")
}

func TestCheck_BadKey(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.APIKey = "wrong"

	out, _, err := env.run(t, "--json", "check")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))

	var resp struct {
		Success bool      `json:"success"`
		Data    CheckData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Success)
	assert.False(t, resp.Data.Summary.Healthy)
	assert.Equal(t, 1, resp.Data.Summary.Failed)

	// Already printed in the envelope.
	var shown bytes.Buffer
	DisplayError(&shown, err, true)
	assert.Empty(t, shown.String())
}

func TestCheck_NotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ServerURL = ""

	out, _, err := env.run(t, "check")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	assert.Contains(t, out, "skipped")
}

func TestCheck_DefaultModelMissingWarns(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.DefaultModel = "gone"

	out, _, err := env.run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "1 warning")
}

// =============================================================================
// CONFIG COMMAND TESTS (config.go)
// =============================================================================

func runConfig(t *testing.T, argv ...string) (string, error) {
	t.Helper()
	_, args, err := ParseArgs(append([]string{"config"}, argv...))
	require.NoError(t, err)
	var out bytes.Buffer
	err = HandleConfig(args, &out)
	return out.String(), err
}

func TestConfigCommand_SetAndGet(t *testing.T) {
	t.Setenv("NANOCHAT_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runConfig(t, "--config", path, "set", "default_model", "gpt-4o")
	require.NoError(t, err)
	_, err = runConfig(t, "--config", path, "set", "api_key", "sk-nano-secret-value")
	require.NoError(t, err)

	out, err := runConfig(t, "--config", path, "get", "default_model")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o\n", out)

	out, err = runConfig(t, "--config", path, "get", "api_key")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-nano-secret-value")

	out, err = runConfig(t, "--config", path, "get", "api_key", "--reveal")
	require.NoError(t, err)
	assert.Equal(t, "sk-nano-secret-value\n", out)

	out, err = runConfig(t, "--config", path, "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-nano-secret-value")
	assert.Contains(t, out, "[chat]")

	out, err = runConfig(t, "--config", path, "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestConfigCommand_EncryptConfig(t *testing.T) {
	t.Setenv("NANOCHAT_HOME", t.TempDir())
	t.Setenv("NANOCHAT_PASSPHRASE", "")
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runConfig(t, "--config", path, "set", "api_key", "sk-nano-secret-value")
	require.NoError(t, err)
	_, err = runConfig(t, "--config", path, "set", "security.encrypt_config", "true")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-nano-secret-value")
	assert.Contains(t, string(data), "ENC:")

	out, err := runConfig(t, "--config", path, "get", "api_key", "--reveal")
	require.NoError(t, err)
	assert.Equal(t, "sk-nano-secret-value\n", out)
}

func TestConfigCommand_SetRejectsInvalid(t *testing.T) {
	t.Setenv("NANOCHAT_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runConfig(t, "--config", path, "set", "no_such_key", "x")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = runConfig(t, "--config", path, "set", "chat.poll_interval_ms", "1")
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "invalid values are not saved")

	_, err = runConfig(t, "--config", path, "set", "default_model")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestConfigCommand_SetKeepsEnvOutOfFile(t *testing.T) {
	t.Setenv("NANOCHAT_HOME", t.TempDir())
	t.Setenv("NANOCHAT_API_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runConfig(t, "--config", path, "set", "default_model", "gpt-4o")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "from-env")
}

// =============================================================================
// CHAT SESSION TESTS (chat.go)
// =============================================================================

func newTestSession(t *testing.T, env *testEnv) (*chatSession, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp(context.Background(), env.cfg, "", Args{}, zaptest.NewLogger(t), &out, &errOut)
	t.Cleanup(app.Close)

	model, err := app.resolveModel(context.Background(), "")
	require.NoError(t, err)
	app.prepareAssistants(context.Background())
	return newChatSession(app, model), &out
}

func TestChatSession_SlashCommands(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AddConversation(api.Conversation{ID: "c1", Title: "First talk", UpdatedAt: time.Now().UTC()})
	env.srv.AddMessage(api.Message{ConversationID: "c1", Role: api.RoleUser, Content: "remember me"})
	env.srv.SetAssistants(api.Assistant{ID: "a1", Name: "Coder"})
	s, out := newTestSession(t, env)
	ctx := context.Background()

	keep, err := s.handleSlashCommand(ctx, "/list")
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Contains(t, out.String(), "First talk")

	out.Reset()
	_, err = s.handleSlashCommand(ctx, "/open 1")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "remember me")
	assert.Equal(t, "c1", s.app.Chat.State().ConversationID)

	_, err = s.handleSlashCommand(ctx, "/open 9")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = s.handleSlashCommand(ctx, "/model gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", s.model)

	_, err = s.handleSlashCommand(ctx, "/model nope")
	assert.ErrorIs(t, err, store.ErrUnknownModel)
	assert.Equal(t, "gpt-4o", s.model)

	_, err = s.handleSlashCommand(ctx, "/assistant coder")
	require.NoError(t, err)
	assert.Equal(t, "a1", s.app.Assistants.SelectedAssistantID())

	_, err = s.handleSlashCommand(ctx, "/assistant ghost")
	assert.True(t, api.IsNotFound(err))

	_, err = s.handleSlashCommand(ctx, "/rename 1 Better title")
	require.NoError(t, err)
	conv, _ := env.srv.Conversation("c1")
	assert.Equal(t, "Better title", conv.Title)

	_, err = s.handleSlashCommand(ctx, "/new")
	require.NoError(t, err)
	assert.Empty(t, s.app.Chat.State().ConversationID)

	_, err = s.handleSlashCommand(ctx, "/bogus")
	assert.Error(t, err)

	keep, err = s.handleSlashCommand(ctx, "/quit")
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestChatSession_Send(t *testing.T) {
	env := newTestEnv(t)
	env.srv.AutoCompleteAfter = 1
	env.srv.Reply = "It works."
	s, out := newTestSession(t, env)

	require.NoError(t, s.send(context.Background(), "does it work?"))
	assert.Contains(t, out.String(), "It works.")

	id := s.app.Chat.State().ConversationID
	require.NotEmpty(t, id)
	sel, ok := s.app.Conversations.SelectedConversation()
	require.True(t, ok)
	assert.Equal(t, id, sel.ID)
	assert.False(t, s.interrupt(), "no wait is left running")
}

func TestChatSession_InterruptStopsWaiting(t *testing.T) {
	env := newTestEnv(t)
	s, _ := newTestSession(t, env)

	done := make(chan error, 1)
	go func() { done <- s.send(context.Background(), "never finishes") }()

	require.Eventually(t, s.app.Chat.IsPolling, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, s.interrupt, time.Second, 5*time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err, "a user interrupt is not an error")
	case <-time.After(5 * time.Second):
		t.Fatal("send did not return after interrupt")
	}
	assert.False(t, s.app.Chat.IsPolling())
}

// =============================================================================
// OUTPUT TESTS
// =============================================================================

func TestRenderer_ConversationList(t *testing.T) {
	r := NewRenderer(config.UIConfig{Width: 100}, false)
	var out bytes.Buffer
	r.RenderConversationList(&out, []api.Conversation{
		{ID: "a", Title: "Alpha\nsecond line", Pinned: true},
		{ID: "b", Title: "", Generating: true},
	}, "b")

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "1.")
	assert.Contains(t, lines[0], "[P]")
	assert.Contains(t, lines[0], "Alpha second line")
	assert.True(t, strings.HasPrefix(lines[1], "*"))
	assert.Contains(t, lines[1], "[~]")
	assert.Contains(t, lines[1], "(untitled)")
}

func TestRenderer_PendingReply(t *testing.T) {
	r := NewRenderer(config.UIConfig{}, false)
	var out bytes.Buffer
	r.RenderMessage(&out, api.Message{Role: api.RoleAssistant})
	assert.Contains(t, out.String(), "(generating...)")
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{4200 * time.Millisecond, "4.2s"},
		{72 * time.Second, "1m12s"},
		{90 * time.Minute, "1h30m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDurationShort(tt.d))
	}
	assert.Equal(t, "3h", formatAge(3*time.Hour+5*time.Minute))
	assert.Equal(t, "2d", formatAge(49*time.Hour))
}

func TestWrapText(t *testing.T) {
	wrapped := WrapText("one two three four five", 9)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 9, line)
	}
}
