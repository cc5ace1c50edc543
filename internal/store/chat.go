// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage is returned by SendMessage for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoModel is returned by SendMessage when no model id is given.
	ErrNoModel = errors.New("no model selected")
)

// =============================================================================
// STATE
// =============================================================================

// Phase is the position of the chat store in its send/poll cycle.
type Phase int

const (
	// PhaseIdle means no conversation is active.
	PhaseIdle Phase = iota
	// PhaseLoaded means a conversation is shown and nothing is pending.
	PhaseLoaded
	// PhaseSending means a generation request is in flight.
	PhaseSending
	// PhasePolling means the reply is being generated server-side.
	PhasePolling
	// PhaseError means the last send or load failed.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoaded:
		return "loaded"
	case PhaseSending:
		return "sending"
	case PhasePolling:
		return "polling"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ChatState is a snapshot of the active conversation.
type ChatState struct {
	ConversationID string
	Messages       []api.Message
	Loading        bool
	Generating     bool
	Error          string

	// Initializing is set while a conversation created by SendMessage is
	// being adopted. SetConversation for that same id is ignored meanwhile.
	Initializing bool

	Phase Phase
}

// restingPhase is the phase of a state with nothing pending.
func restingPhase(conversationID string) Phase {
	if conversationID == "" {
		return PhaseIdle
	}
	return PhaseLoaded
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Default polling settings. 180 ticks at 500ms gives a reply 90 seconds.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxPolls     = 180
)

// ChatAPI is the part of the API client the chat store needs.
type ChatAPI interface {
	GetMessages(ctx context.Context, conversationID string) ([]api.Message, error)
	GetConversation(ctx context.Context, id string) (*api.Conversation, error)
	GenerateMessage(ctx context.Context, req api.GenerateMessageRequest) (*api.GenerateMessageResponse, error)
}

// ConversationSink receives conversation updates from the chat store.
// *ConversationsStore implements it.
type ConversationSink interface {
	LoadConversations(ctx context.Context) error
	UpdateConversation(conv api.Conversation)
}

// ChatConfig tunes the chat store.
type ChatConfig struct {
	PollInterval    time.Duration
	MaxPolls        int
	WebSearchMode   api.WebSearchMode
	ReasoningEffort api.ReasoningEffort
	Logger          *zap.Logger
}

// DefaultChatConfig returns the default polling settings.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
	}
}

// ChatDeps are the collaborators of a chat store. Only API is required.
type ChatDeps struct {
	API           ChatAPI
	Conversations ConversationSink
	Assistants    AssistantSelector
	Cache         storage.Cache
}

// =============================================================================
// CHAT STORE
// =============================================================================

// ChatStore holds the active conversation and runs its send/poll cycle.
type ChatStore struct {
	state *Observable[ChatState]
	deps  ChatDeps
	cfg   ChatConfig
	log   *zap.Logger

	// baseCtx outlives individual calls so a poll cycle can continue after
	// SendMessage returns. Close cancels it.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	pollMu     sync.Mutex
	cycle      uint64
	pollActive bool
	pollCancel context.CancelFunc
	pollDone   chan struct{}

	cbMu              sync.Mutex
	onNewConversation func(id string)
}

// NewChatStore creates an idle chat store.
func NewChatStore(deps ChatDeps, cfg ChatConfig) *ChatStore {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Cache == nil {
		deps.Cache = storage.NopCache{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ChatStore{
		state:      NewObservable(ChatState{}),
		deps:       deps,
		cfg:        cfg,
		log:        logger.Named("chat"),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// State returns the current snapshot.
func (s *ChatStore) State() ChatState {
	return s.state.Get()
}

// Subscribe registers fn for state changes. See Observable.Subscribe.
func (s *ChatStore) Subscribe(fn func(ChatState)) func() {
	return s.state.Subscribe(fn)
}

// CanSendMessage reports whether a conversation is active and idle.
func (s *ChatStore) CanSendMessage() bool {
	st := s.state.Get()
	return st.ConversationID != "" && !st.Generating
}

// SetNewConversationCallback registers fn to be called with the id of each
// conversation SendMessage creates. The state already carries the id and
// Initializing when fn runs.
func (s *ChatStore) SetNewConversationCallback(fn func(id string)) {
	s.cbMu.Lock()
	s.onNewConversation = fn
	s.cbMu.Unlock()
}

func (s *ChatStore) newConversationCallback() func(string) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	return s.onNewConversation
}

// =============================================================================
// SENDING
// =============================================================================

// SendMessage starts a generation for content with modelID.
//
// With no active conversation the server creates one; its id is adopted, the
// new-conversation callback fires and the initial messages are loaded.
// SendMessage returns once the server accepted the request. The reply then
// arrives through polling; use WaitIdle to block until it is complete.
//
// Callers should not send concurrently into the same conversation.
func (s *ChatStore) SendMessage(ctx context.Context, content, modelID string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if modelID == "" {
		return ErrNoModel
	}

	s.cancelPolling()

	optimisticID := "local-" + uuid.NewString()
	st := s.state.Update(func(st ChatState) ChatState {
		st.Generating = true
		st.Error = ""
		st.Phase = PhaseSending
		msgs := make([]api.Message, 0, len(st.Messages)+1)
		msgs = append(msgs, st.Messages...)
		st.Messages = append(msgs, api.Message{
			ID:             optimisticID,
			ConversationID: st.ConversationID,
			Role:           api.RoleUser,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		})
		return st
	})
	convID := st.ConversationID

	req := api.GenerateMessageRequest{
		Message:         content,
		ModelID:         modelID,
		ConversationID:  convID,
		ReasoningEffort: s.cfg.ReasoningEffort,
	}
	if s.deps.Assistants != nil {
		req.AssistantID = s.deps.Assistants.SelectedAssistantID()
	}
	if mode := s.cfg.WebSearchMode; mode != "" && mode != api.WebSearchOff {
		req.WebSearchEnabled = true
		req.WebSearchMode = mode
	}

	resp, err := s.deps.API.GenerateMessage(ctx, req)
	if err != nil {
		s.failSend(convID, optimisticID, err)
		return fmt.Errorf("send message: %w", err)
	}

	if convID == "" {
		if resp.ConversationID == "" {
			err := errors.New("server returned no conversation id")
			s.failSend(convID, optimisticID, err)
			return fmt.Errorf("send message: %w", err)
		}
		convID = resp.ConversationID
		if err := s.adoptConversation(ctx, convID, optimisticID); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}

	if !s.isCurrentConversation(convID) {
		s.log.Debug("conversation changed during send, not polling", zap.String("conversation_id", convID))
		return nil
	}
	s.startPolling(convID)
	return nil
}

// adoptConversation switches an idle store to a conversation the server just
// created and loads its first messages.
func (s *ChatStore) adoptConversation(ctx context.Context, convID, optimisticID string) error {
	_, adopted := s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
		if st.ConversationID != "" {
			return st, false
		}
		st.ConversationID = convID
		st.Initializing = true
		msgs := make([]api.Message, len(st.Messages))
		for i, m := range st.Messages {
			if m.ID == optimisticID {
				m.ConversationID = convID
			}
			msgs[i] = m
		}
		st.Messages = msgs
		return st, true
	})
	if !adopted {
		s.log.Debug("store moved on before new conversation was adopted", zap.String("conversation_id", convID))
		return nil
	}
	s.log.Info("conversation created", zap.String("conversation_id", convID))

	if fn := s.newConversationCallback(); fn != nil {
		fn(convID)
	}

	msgs, err := s.deps.API.GetMessages(ctx, convID)
	if err != nil {
		s.failSend(convID, optimisticID, err)
		return err
	}
	s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
		if st.ConversationID != convID {
			return st, false
		}
		st.Messages = msgs
		st.Initializing = false
		return st, true
	})
	return nil
}

// failSend records a send failure for convID and drops the optimistic
// message.
func (s *ChatStore) failSend(convID, optimisticID string, err error) {
	s.log.Warn("send failed", zap.String("conversation_id", convID), zap.Error(err))
	s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
		if st.ConversationID != convID {
			return st, false
		}
		msgs := make([]api.Message, 0, len(st.Messages))
		for _, m := range st.Messages {
			if m.ID != optimisticID {
				msgs = append(msgs, m)
			}
		}
		st.Messages = msgs
		st.Generating = false
		st.Loading = false
		st.Initializing = false
		st.Error = err.Error()
		st.Phase = PhaseError
		return st, true
	})
}

// =============================================================================
// CONVERSATION SWITCHING
// =============================================================================

// SetConversation makes id the active conversation and loads its messages.
// An empty id returns the store to idle. While a conversation created by
// SendMessage is initializing, a call for that same id is ignored.
func (s *ChatStore) SetConversation(ctx context.Context, id string) error {
	_, switched := s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
		if st.Initializing && st.ConversationID == id {
			return st, false
		}
		return ChatState{ConversationID: id, Phase: restingPhase(id)}, true
	})
	if !switched {
		s.log.Debug("ignoring set conversation while initializing", zap.String("conversation_id", id))
		return nil
	}

	s.cancelPolling()
	if id == "" {
		return nil
	}
	return s.LoadMessages(ctx, id)
}

// LoadMessages fetches the messages of id and makes it the active
// conversation unless the store has moved to another one meanwhile.
func (s *ChatStore) LoadMessages(ctx context.Context, id string) error {
	s.state.Update(func(st ChatState) ChatState {
		st.Loading = true
		st.Error = ""
		return st
	})

	msgs, err := s.deps.API.GetMessages(ctx, id)
	if err != nil {
		s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
			if st.ConversationID != id && st.ConversationID != "" {
				return st, false
			}
			st.Loading = false
			st.Error = fmt.Sprintf("failed to load messages: %v", err)
			st.Phase = PhaseError
			return st, true
		})
		return fmt.Errorf("load messages: %w", err)
	}

	_, applied := s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
		if st.ConversationID != id && st.ConversationID != "" {
			return st, false
		}
		st.ConversationID = id
		st.Messages = msgs
		st.Loading = false
		if !st.Generating {
			st.Phase = PhaseLoaded
		}
		return st, true
	})
	if applied {
		s.saveMessages(ctx, id, msgs)
	}
	return nil
}

// LoadCachedMessages shows the offline copy of id without contacting the
// server. It returns when the copy was saved, or storage.ErrCacheMiss.
func (s *ChatStore) LoadCachedMessages(ctx context.Context, id string) (time.Time, error) {
	snap, err := s.deps.Cache.LoadMessages(ctx, id)
	if err != nil {
		return time.Time{}, err
	}

	s.cancelPolling()
	s.state.Set(ChatState{
		ConversationID: id,
		Messages:       snap.Messages,
		Phase:          PhaseLoaded,
	})
	return snap.SavedAt, nil
}

// =============================================================================
// STATE HELPERS
// =============================================================================

// StopPolling abandons the current poll cycle. The reply keeps generating
// server-side; reloading the conversation later shows it.
func (s *ChatStore) StopPolling() {
	s.cancelPolling()
	s.state.Update(func(st ChatState) ChatState {
		st.Generating = false
		st.Initializing = false
		if st.Phase == PhasePolling || st.Phase == PhaseSending {
			st.Phase = restingPhase(st.ConversationID)
		}
		return st
	})
}

// ClearError drops the last error.
func (s *ChatStore) ClearError() {
	s.state.Update(func(st ChatState) ChatState {
		st.Error = ""
		if st.Phase == PhaseError {
			st.Phase = restingPhase(st.ConversationID)
		}
		return st
	})
}

// SetError records an error raised outside the store. A running cycle keeps
// going; the error is only shown.
func (s *ChatStore) SetError(msg string) {
	s.state.Update(func(st ChatState) ChatState {
		st.Error = msg
		if !st.Generating {
			st.Phase = PhaseError
		}
		return st
	})
}

// ClearInitializing lifts the set-conversation guard.
func (s *ChatStore) ClearInitializing() {
	s.state.UpdateIf(func(st ChatState) (ChatState, bool) {
		if !st.Initializing {
			return st, false
		}
		st.Initializing = false
		return st, true
	})
}

// Reset stops polling and returns the store to idle.
func (s *ChatStore) Reset() {
	s.cancelPolling()
	s.state.Set(ChatState{})
}

// WaitIdle blocks until no generation is pending or ctx is done.
func (s *ChatStore) WaitIdle(ctx context.Context) error {
	idle := make(chan struct{}, 1)
	unsubscribe := s.state.Subscribe(func(st ChatState) {
		if !st.Generating {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops polling and waits for the poll goroutine to exit. The store
// must not be used afterwards.
func (s *ChatStore) Close() {
	s.baseCancel()
	s.pollMu.Lock()
	done := s.pollDone
	s.pollMu.Unlock()
	s.cancelPolling()
	if done != nil {
		<-done
	}
}

func (s *ChatStore) isCurrentConversation(id string) bool {
	return s.state.Get().ConversationID == id
}

func (s *ChatStore) saveMessages(ctx context.Context, id string, msgs []api.Message) {
	if err := s.deps.Cache.SaveMessages(ctx, id, msgs); err != nil {
		s.log.Warn("failed to cache messages", zap.String("conversation_id", id), zap.Error(err))
	}
}
