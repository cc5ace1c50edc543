// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
)

// =============================================================================
// POLL CYCLE
// =============================================================================
//
// A cycle is armed after each accepted send. Ticks are chained: the next
// timer starts only after the previous fetch returned, so a slow server never
// sees overlapping polls. Every cycle has its own context derived from the
// store's base context and a sequence number; cancelPolling bumps the
// sequence and cancels the context, and results of an old cycle are dropped.

// IsPolling reports whether a poll cycle is running.
func (s *ChatStore) IsPolling() bool {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	return s.pollActive
}

func (s *ChatStore) startPolling(convID string) {
	s.pollMu.Lock()
	if s.pollCancel != nil {
		s.pollCancel()
	}
	s.cycle++
	cycle := s.cycle
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.pollCancel = cancel
	s.pollActive = true
	done := make(chan struct{})
	s.pollDone = done
	s.pollMu.Unlock()

	s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
		if st.ConversationID != convID || !s.isCurrentCycle(cycle) {
			return st, false
		}
		st.Generating = true
		st.Phase = PhasePolling
		return st, true
	})
	s.log.Debug("polling started",
		zap.String("conversation_id", convID),
		zap.Duration("interval", s.cfg.PollInterval),
		zap.Int("max_polls", s.cfg.MaxPolls))

	go s.pollLoop(ctx, cancel, cycle, convID, done)
}

// cancelPolling invalidates the current cycle and aborts its requests.
func (s *ChatStore) cancelPolling() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	s.cycle++
	s.pollActive = false
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
}

func (s *ChatStore) isCurrentCycle(cycle uint64) bool {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	return s.cycle == cycle && s.pollActive
}

func (s *ChatStore) pollLoop(ctx context.Context, cancel context.CancelFunc, cycle uint64, convID string, done chan struct{}) {
	defer close(done)
	defer cancel()

	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if s.pollTick(ctx, cycle, convID, tick) {
			return
		}
		timer.Reset(s.cfg.PollInterval)
	}
}

// pollTick fetches the messages and the conversation in parallel and applies
// them. It reports whether the cycle is over.
func (s *ChatStore) pollTick(ctx context.Context, cycle uint64, convID string, tick int) bool {
	var (
		msgs []api.Message
		conv *api.Conversation
	)

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		m, err := s.deps.API.GetMessages(ctx, convID)
		if err != nil {
			return fmt.Errorf("messages: %w", err)
		}
		msgs = m
		return nil
	})
	p.Go(func(ctx context.Context) error {
		c, err := s.deps.API.GetConversation(ctx, convID)
		if err != nil {
			return fmt.Errorf("conversation: %w", err)
		}
		conv = c
		return nil
	})
	err := p.Wait()

	if ctx.Err() != nil {
		return true
	}

	last := tick >= s.cfg.MaxPolls
	if err != nil {
		// Transient: the next tick tries again. Failed ticks still count.
		s.log.Warn("poll tick failed",
			zap.String("conversation_id", convID),
			zap.Int("tick", tick),
			zap.Error(err))
		if last {
			s.log.Warn("max polls reached", zap.String("conversation_id", convID), zap.Int("ticks", tick))
			s.finishPolling(ctx, cycle, convID, nil, nil)
			return true
		}
		return false
	}

	_, applied := s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
		if st.ConversationID != convID || !s.isCurrentCycle(cycle) {
			return st, false
		}
		st.Messages = msgs
		return st, true
	})
	if !applied {
		s.log.Debug("discarding stale poll result", zap.String("conversation_id", convID), zap.Int("tick", tick))
		return true
	}
	if s.deps.Conversations != nil {
		s.deps.Conversations.UpdateConversation(*conv)
	}

	complete := isComplete(conv, msgs)
	if !complete && !last {
		return false
	}
	if complete {
		s.log.Debug("generation complete", zap.String("conversation_id", convID), zap.Int("ticks", tick))
		s.finishPolling(ctx, cycle, convID, conv, msgs)
	} else {
		s.log.Warn("max polls reached", zap.String("conversation_id", convID), zap.Int("ticks", tick))
		s.finishPolling(ctx, cycle, convID, conv, nil)
	}
	return true
}

// isComplete reports whether the backend finished the reply: it no longer
// flags the conversation as generating and the latest assistant message has
// text.
func isComplete(conv *api.Conversation, msgs []api.Message) bool {
	if conv == nil || conv.Generating {
		return false
	}
	last := api.LastAssistantMessage(msgs)
	return last != nil && last.HasContent()
}

// finishPolling ends the cycle. Non-nil msgs are written to the offline cache
// before generating is cleared, so a waiter sees them cached. A non-nil conv is
// pushed to the conversation list after it was reloaded.
func (s *ChatStore) finishPolling(ctx context.Context, cycle uint64, convID string, conv *api.Conversation, msgs []api.Message) {
	s.pollMu.Lock()
	if s.cycle != cycle {
		s.pollMu.Unlock()
		return
	}
	s.pollActive = false
	s.pollMu.Unlock()

	if msgs != nil {
		s.saveMessages(ctx, convID, msgs)
	}

	_, applied := s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
		if st.ConversationID != convID {
			return st, false
		}
		st.Generating = false
		st.Initializing = false
		st.Phase = PhaseLoaded
		return st, true
	})
	if !applied || s.deps.Conversations == nil {
		return
	}

	if err := s.deps.Conversations.LoadConversations(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("failed to reload conversations", zap.Error(err))
	}
	if conv != nil {
		s.deps.Conversations.UpdateConversation(*conv)
	}
}
