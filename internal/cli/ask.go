// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Command: ask TEXT [--conversation ID]
//
// Examples:
//   nanochat ask "What is a goroutine?"
//   nanochat ask --model gpt-4o "Summarize RFC 9110"
//   nanochat ask --conversation 8f1c... "And in Rust?"
//   nanochat --json ask "hello" | jq .data.reply
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
)

// AskResult is the JSON form of an answered question.
type AskResult struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Model          string `json:"model"`
	Reply          string `json:"reply"`
}

// HandleAsk sends one message, waits for the reply and prints it.
func HandleAsk(ctx context.Context, a *App, args Args) error {
	text := strings.TrimSpace(JoinPositionalArgs(args.Options, 0))
	if text == "" {
		return ErrMissingArgument("message", `nanochat ask "What is a goroutine?"`)
	}
	if err := a.requireConfigured(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	model, err := a.resolveModel(ctx, args.Model)
	if err != nil {
		return err
	}
	a.prepareAssistants(ctx)

	if id := args.Options.Flag("conversation"); id != "" {
		if err := a.Chat.SetConversation(ctx, id); err != nil {
			return err
		}
	}

	reply, err := sendAndWait(ctx, a, text, model)
	if err != nil {
		return err
	}

	convID := a.Chat.State().ConversationID
	if a.JSON {
		return a.printJSON("ask", AskResult{
			ConversationID: convID,
			MessageID:      reply.ID,
			Model:          model,
			Reply:          reply.Content,
		})
	}
	fmt.Fprint(a.Out, a.renderer().Markdown(reply.Content))
	a.infof("conversation %s", convID)
	return nil
}

// sendAndWait sends text and blocks until polling ends. When ctx is
// cancelled first, polling stops and the reply keeps generating
// server-side.
func sendAndWait(ctx context.Context, a *App, text, model string) (*api.Message, error) {
	if err := a.Chat.SendMessage(ctx, text, model); err != nil {
		return nil, err
	}
	a.infof("waiting for %s...", model)
	start := time.Now()

	if err := a.Chat.WaitIdle(ctx); err != nil {
		a.Chat.StopPolling()
		if id := a.Chat.State().ConversationID; id != "" {
			return nil, fmt.Errorf("stopped waiting; the reply continues on the server, see 'nanochat show %s': %w", id, err)
		}
		return nil, err
	}

	st := a.Chat.State()
	if st.Error != "" {
		return nil, errors.New(st.Error)
	}
	reply := api.LastAssistantMessage(st.Messages)
	if reply == nil || !reply.HasContent() {
		return nil, fmt.Errorf("%w: still generating, check later with 'nanochat show %s'", ErrReplyIncomplete, st.ConversationID)
	}
	a.Log.Debug("reply complete", zap.String("conversation_id", st.ConversationID), zap.Duration("elapsed", time.Since(start)))
	a.infof("replied in %s", formatDurationShort(time.Since(start)))
	return reply, nil
}
