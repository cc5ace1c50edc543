// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command.
//
// Command: chat [--conversation ID]
// Short:   Start an interactive chat session (default command)
//
// Examples:
//   nanochat                          Start a new conversation
//   nanochat chat --model gpt-4o      Use a specific model
//   nanochat chat --conversation ID   Continue a conversation
//
// Interactive Commands (during chat):
//   /help, /h               Show available commands
//   /new                    Start a new conversation
//   /list                   List conversations
//   /open ID|N              Open a conversation by id or list number
//   /models, /model ID      List or switch models
//   /assistants             List assistants
//   /assistant ID|none      Switch assistant
//   /delete ID|N            Delete a conversation
//   /rename ID|N TITLE      Rename a conversation
//   /pin ID|N               Toggle a pin
//   /stop                   Stop waiting for the current reply
//   /quit, /q               Exit chat
//   Ctrl+C                  Stop waiting for a reply (at the prompt: exit)
//   Ctrl+D                  Exit chat
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/config"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history loaded from the config dir.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession is the REPL state on top of the App's stores.
type chatSession struct {
	app   *App
	model string
	out   io.Writer

	// listed is the last printed conversation list, for /open N.
	listed []api.Conversation

	mu         sync.Mutex
	cancelWait context.CancelFunc
}

func newChatSession(app *App, model string) *chatSession {
	return &chatSession{app: app, model: model, out: app.Out}
}

// interrupt stops waiting for a reply. It reports whether a wait was
// running.
func (s *chatSession) interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelWait == nil {
		return false
	}
	s.cancelWait()
	s.cancelWait = nil
	return true
}

func (s *chatSession) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancelWait = cancel
	s.mu.Unlock()
}

// HandleChat runs the interactive REPL.
func HandleChat(ctx context.Context, a *App, args Args) error {
	if err := a.requireConfigured(); err != nil {
		return err
	}
	model, err := a.resolveModel(ctx, args.Model)
	if err != nil {
		return err
	}
	a.prepareAssistants(ctx)
	if _, err := a.Conversations.Hydrate(ctx); err != nil {
		a.Log.Debug("no cached conversation list", zap.Error(err))
	}
	if err := a.Conversations.LoadConversations(ctx); err != nil {
		a.warnf("could not load conversations: %v", err)
	}

	s := newChatSession(a, model)

	if id := args.Options.Flag("conversation"); id != "" {
		if err := s.open(ctx, id); err != nil {
			return err
		}
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	s.watchConfig(watchCtx)

	if !a.Quiet {
		s.printWelcome()
	}

	input := NewChatCLI()
	defer input.Close()

	// Ctrl+C outside the prompt stops the current wait. At the prompt liner
	// owns the terminal and reports it as ErrPromptAborted instead.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if s.interrupt() {
				fmt.Fprintln(a.Err, "\n"+WarningStyle.Render("[Stopped waiting]"))
			}
		}
	}()

	for {
		line, err := input.ReadInput("nanochat> ")
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed stdin
			fmt.Fprintln(s.out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, err := s.handleSlashCommand(ctx, line)
			if err != nil {
				fmt.Fprintf(a.Err, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !keepGoing {
				return nil
			}
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		if err := s.send(ctx, line); err != nil {
			fmt.Fprintf(a.Err, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// watchConfig applies config file edits while the REPL runs.
func (s *chatSession) watchConfig(ctx context.Context) {
	a := s.app
	if a.ConfigPath == "" {
		return
	}
	err := config.Watch(ctx, a.ConfigPath, func(cfg *config.Config, err error) {
		if err != nil {
			a.warnf("config not reloaded: %v", err)
			return
		}
		a.ApplyConfig(cfg)
		a.infof("[config reloaded]")
	})
	if err != nil {
		a.Log.Debug("config watch unavailable", zap.Error(err))
	}
}

// send posts one message and prints the reply once polling ends.
func (s *chatSession) send(ctx context.Context, text string) error {
	waitCtx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	defer func() {
		s.interrupt()
	}()

	reply, err := sendAndWait(waitCtx, s.app, text, s.model)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			// Interrupted by the user; not an error worth shouting about
			s.app.infof("%v", err)
			return nil
		}
		return err
	}
	fmt.Fprintln(s.out)
	s.app.renderer().RenderMessage(s.out, *reply)
	fmt.Fprintln(s.out)
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs one command. It reports false to end the REPL.
func (s *chatSession) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true, nil
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]
	a := s.app

	switch command {
	case "/help", "/h", "/?", "/":
		s.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		if err := a.Chat.SetConversation(ctx, ""); err != nil {
			return true, err
		}
		a.Conversations.StartNewChat()
		fmt.Fprintln(s.out, InfoStyle.Render("[New conversation]"))

	case "/list", "/ls", "/l":
		if err := a.Conversations.LoadConversations(ctx); err != nil {
			a.warnf("showing the last known list: %v", err)
		}
		st := a.Conversations.State()
		s.listed = st.Conversations
		a.renderer().RenderConversationList(s.out, st.Conversations, a.Chat.State().ConversationID)

	case "/open", "/o":
		id, err := s.conversationArg(args, "/open ID")
		if err != nil {
			return true, err
		}
		return true, s.open(ctx, id)

	case "/models":
		st := a.Models.State()
		a.renderer().RenderModels(s.out, st.Models, s.model)

	case "/model", "/m":
		if len(args) == 0 {
			fmt.Fprintf(s.out, "%s %s\n", InfoStyle.Render("[Model]"), s.model)
			return true, nil
		}
		if err := a.Models.SelectModel(args[0]); err != nil {
			return true, err
		}
		s.model = args[0]
		fmt.Fprintf(s.out, "%s %s\n", InfoStyle.Render("[Model]"), s.model)

	case "/assistants":
		st := a.Assistants.State()
		a.renderer().RenderAssistants(s.out, st.Assistants, st.SelectedAssistantID)

	case "/assistant":
		if len(args) == 0 {
			if as, ok := a.Assistants.SelectedAssistant(); ok {
				fmt.Fprintf(s.out, "%s %s\n", InfoStyle.Render("[Assistant]"), as.Name)
			} else {
				fmt.Fprintf(s.out, "%s none\n", InfoStyle.Render("[Assistant]"))
			}
			return true, nil
		}
		return true, s.selectAssistant(args[0])

	case "/delete":
		id, err := s.conversationArg(args, "/delete ID")
		if err != nil {
			return true, err
		}
		if err := a.Conversations.DeleteConversation(ctx, id); err != nil {
			return true, err
		}
		if a.Chat.State().ConversationID == id {
			if err := a.Chat.SetConversation(ctx, ""); err != nil {
				return true, err
			}
		}
		fmt.Fprintf(s.out, "%s deleted %s\n", SuccessStyle.Render("[OK]"), id)

	case "/rename":
		if len(args) < 2 {
			return true, ErrMissingArgument("title", "/rename ID New title")
		}
		id, err := s.conversationArg(args[:1], "/rename ID TITLE")
		if err != nil {
			return true, err
		}
		if err := a.Conversations.RenameConversation(ctx, id, strings.Join(args[1:], " ")); err != nil {
			return true, err
		}
		fmt.Fprintf(s.out, "%s renamed %s\n", SuccessStyle.Render("[OK]"), id)

	case "/pin":
		id, err := s.conversationArg(args, "/pin ID")
		if err != nil {
			return true, err
		}
		if err := a.Conversations.TogglePin(ctx, id); err != nil {
			return true, err
		}
		fmt.Fprintf(s.out, "%s toggled pin on %s\n", SuccessStyle.Render("[OK]"), id)

	case "/stop":
		if !a.Chat.IsPolling() {
			fmt.Fprintln(s.out, DimStyle.Render("Nothing to stop."))
			return true, nil
		}
		a.Chat.StopPolling()
		fmt.Fprintln(s.out, WarningStyle.Render("[Stopped waiting]"))

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

// conversationArg resolves an id or a 1-based number from the last /list.
func (s *chatSession) conversationArg(args []string, usage string) (string, error) {
	if len(args) == 0 {
		return "", ErrMissingArgument("conversation", usage)
	}
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(s.listed) {
			return "", ErrInvalidFormat("conversation number", args[0], "a number shown by /list")
		}
		return s.listed[n-1].ID, nil
	}
	return args[0], nil
}

// open switches to a conversation and prints its transcript.
func (s *chatSession) open(ctx context.Context, id string) error {
	a := s.app
	a.Conversations.SelectConversation(id)
	if err := a.Chat.SetConversation(ctx, id); err != nil {
		return err
	}
	st := a.Chat.State()
	a.renderer().RenderTranscript(s.out, st.Messages)
	fmt.Fprintln(s.out)
	return nil
}

func (s *chatSession) selectAssistant(arg string) error {
	a := s.app
	if strings.EqualFold(arg, "none") {
		a.Assistants.SelectAssistant("")
		fmt.Fprintf(s.out, "%s none\n", InfoStyle.Render("[Assistant]"))
		return nil
	}
	for _, as := range a.Assistants.State().Assistants {
		if as.ID == arg || strings.EqualFold(as.Name, arg) {
			a.Assistants.SelectAssistant(as.ID)
			fmt.Fprintf(s.out, "%s %s\n", InfoStyle.Render("[Assistant]"), as.Name)
			return nil
		}
	}
	return &api.NotFoundError{Resource: "assistant", ID: arg}
}

func (s *chatSession) printWelcome() {
	fmt.Fprintln(s.out, TitleStyle.Render("nanochat"))
	fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Server"), s.app.Client.BaseURL())
	fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Model"), s.model)
	if as, ok := s.app.Assistants.SelectedAssistant(); ok {
		fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Assistant"), as.Name)
	}
	fmt.Fprintln(s.out, DimStyle.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(s.out)
}

func (s *chatSession) printHelp() {
	help := [][2]string{
		{"/new", "Start a new conversation"},
		{"/list", "List conversations"},
		{"/open ID|N", "Open a conversation"},
		{"/models", "List enabled models"},
		{"/model [ID]", "Show or switch the model"},
		{"/assistants", "List assistants"},
		{"/assistant [ID|none]", "Show or switch the assistant"},
		{"/delete ID|N", "Delete a conversation"},
		{"/rename ID|N TITLE", "Rename a conversation"},
		{"/pin ID|N", "Toggle a pin"},
		{"/stop", "Stop waiting for the reply"},
		{"/quit", "Exit"},
	}
	fmt.Fprintln(s.out, TitleStyle.Render("Commands"))
	for _, h := range help {
		fmt.Fprintf(s.out, "  %s %s\n", RenderLabel(h[0]), h[1])
	}
}
