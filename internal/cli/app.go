// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/config"
	"github.com/thejudge22/nanochat-desktop/internal/logging"
	"github.com/thejudge22/nanochat-desktop/internal/storage"
	"github.com/thejudge22/nanochat-desktop/internal/store"
)

// =============================================================================
// APP
// =============================================================================

// App wires the API client, the offline cache and the stores for one run
// of a command.
type App struct {
	ConfigPath string
	Log        *zap.Logger
	Client     *api.Client
	Cache      storage.Cache

	Conversations *store.ConversationsStore
	Models        *store.ModelsStore
	Assistants    *store.AssistantsStore
	Chat          *store.ChatStore

	Out   io.Writer
	Err   io.Writer
	JSON  bool
	Quiet bool

	// CacheErr is set when the configured cache could not be opened and
	// the app runs without one.
	CacheErr error

	mu     sync.RWMutex
	config *config.Config
}

// NewApp loads the configuration named by args and builds an App on it.
func NewApp(ctx context.Context, args Args, out, errOut io.Writer) (*App, error) {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(errOut, "%s %v\n", WarningStyle.Render("[WARN]"), err)
	}
	cfg, path, err := loadConfig(args.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Verbosity(cfg.Log, args.Verbose, args.Quiet))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return newApp(ctx, cfg, path, args, logger, out, errOut), nil
}

// loadConfig reads an explicit path or the default location. It returns the
// path edits should be saved to.
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.LoadFromPath(path)
		return cfg, path, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	path, err = config.ConfigPathTOML()
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newApp(ctx context.Context, cfg *config.Config, path string, args Args, logger *zap.Logger, out, errOut io.Writer) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := api.NewClient(&api.ClientConfig{
		BaseURL:           cfg.ServerURL,
		APIKey:            cfg.APIKey,
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		UserAgent:         "nanochat/" + Version,
		Logger:            logger,
	})

	cache, cacheErr := storage.New(ctx, cfg.Cache, cfg.ServerURL, logger)
	if cacheErr != nil {
		logger.Warn("offline cache disabled", zap.String("backend", cfg.Cache.Backend), zap.Error(cacheErr))
		cache = storage.NopCache{}
	}

	convs := store.NewConversationsStore(client, cache, logger)
	assistants := store.NewAssistantsStore(client, logger)
	chat := store.NewChatStore(store.ChatDeps{
		API:           client,
		Conversations: convs,
		Assistants:    assistants,
		Cache:         cache,
	}, chatConfig(cfg, logger))

	// A conversation created by a send shows up selected right away; the
	// full entry arrives with the list reload after the reply completes.
	chat.SetNewConversationCallback(func(id string) {
		convs.AddAndSelectConversation(api.Conversation{ID: id})
	})

	return &App{
		ConfigPath:    path,
		Log:           logger,
		Client:        client,
		Cache:         cache,
		CacheErr:      cacheErr,
		Conversations: convs,
		Models:        store.NewModelsStore(client, logger),
		Assistants:    assistants,
		Chat:          chat,
		Out:           out,
		Err:           errOut,
		JSON:          args.JSON,
		Quiet:         args.Quiet,
		config:        cfg,
	}
}

func chatConfig(cfg *config.Config, logger *zap.Logger) store.ChatConfig {
	return store.ChatConfig{
		PollInterval:    cfg.PollInterval(),
		MaxPolls:        cfg.Chat.MaxPolls,
		WebSearchMode:   api.WebSearchMode(cfg.Chat.WebSearchMode),
		ReasoningEffort: api.ReasoningEffort(cfg.Chat.ReasoningEffort),
		Logger:          logger,
	}
}

// Close stops polling and releases the cache.
func (a *App) Close() {
	a.Chat.Close()
	if err := a.Cache.Close(); err != nil {
		a.Log.Warn("failed to close cache", zap.Error(err))
	}
	_ = a.Log.Sync()
}

// Config returns the configuration in effect.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// ApplyConfig switches to a reloaded configuration. Credentials, the
// default model and display settings take effect immediately; polling and
// cache settings apply to the next run.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	prev := a.config
	a.config = cfg
	a.mu.Unlock()

	a.Client.SetCredentials(cfg.ServerURL, cfg.APIKey)
	if prev.Chat != cfg.Chat || prev.Cache != cfg.Cache {
		a.Log.Info("chat and cache settings change on restart")
	}
	a.Log.Debug("config applied", zap.String("server_url", cfg.ServerURL))
}

// requireConfigured fails when no server URL or API key is set.
func (a *App) requireConfigured() error {
	if !a.Config().IsConfigured() {
		return ErrNotConfigured
	}
	return nil
}

// resolveModel loads the enabled models and selects override, the
// configured default, or the store's pick, in that order.
func (a *App) resolveModel(ctx context.Context, override string) (string, error) {
	if err := a.Models.LoadModels(ctx); err != nil {
		return "", fmt.Errorf("load models: %w", err)
	}
	want := override
	if want == "" {
		want = a.Config().DefaultModel
	}
	if want != "" {
		if err := a.Models.SelectModel(want); err != nil {
			return "", err
		}
	}
	m, ok := a.Models.SelectedModel()
	if !ok {
		return "", errors.New("no enabled models: enable one in your NanoChat model settings")
	}
	return m.ModelID, nil
}

// prepareAssistants loads assistants and applies the configured default.
// Assistants are optional, so failures only warn.
func (a *App) prepareAssistants(ctx context.Context) {
	if err := a.Assistants.LoadAssistants(ctx); err != nil {
		a.warnf("assistants unavailable: %v", err)
		return
	}
	if id := a.Config().DefaultAssistant; id != "" {
		a.Assistants.SelectAssistant(id)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// printJSON writes data in the JSON envelope.
func (a *App) printJSON(command string, data interface{}) error {
	return NewJSONResponse(command, data).Print(a.Out)
}

// infof writes a progress note to stderr unless quiet or in JSON mode.
func (a *App) infof(format string, args ...interface{}) {
	if a.Quiet || a.JSON {
		return
	}
	fmt.Fprintln(a.Err, DimStyle.Render(fmt.Sprintf(format, args...)))
}

func (a *App) warnf(format string, args ...interface{}) {
	if a.JSON {
		return
	}
	fmt.Fprintf(a.Err, "%s %s\n", WarningStyle.Render("[WARN]"), fmt.Sprintf(format, args...))
}

// success prints a confirmation line, or data in JSON mode.
func (a *App) success(command string, data interface{}, format string, args ...interface{}) error {
	if a.JSON {
		return a.printJSON(command, data)
	}
	if !a.Quiet {
		fmt.Fprintf(a.Out, "%s %s\n", SuccessStyle.Render("[OK]"), fmt.Sprintf(format, args...))
	}
	return nil
}

// renderer builds the output renderer for the current UI settings.
func (a *App) renderer() *Renderer {
	return NewRenderer(a.Config().UI, IsStdoutTTY() && !a.JSON)
}
