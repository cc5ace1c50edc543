// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest provides an in-memory NanoChat backend for tests.
//
// The fake server speaks the same JSON API as the real backend. Generation is
// driven by the test: GenerateMessage appends the user message and an empty
// assistant message and marks the conversation generating; the test then
// calls Complete (or sets AutoCompleteAfter) to fill in the reply.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/util"
)

// APIKey is the bearer token the fake server accepts.
const APIKey = "test-key"

// Server is a fake backend. All exported methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	conversations map[string]*api.Conversation
	public        map[string]bool
	messages      map[string][]api.Message
	models        []api.UserModel
	assistants    []api.Assistant

	// ticks counts message fetches per conversation since generation started.
	ticks map[string]int

	// AutoCompleteAfter completes a pending reply after this many message
	// fetches. Zero means never.
	AutoCompleteAfter int

	// Reply is the assistant text used by auto completion.
	Reply string

	// FailMessages makes message fetches fail with 500 while set.
	FailMessages atomic.Bool

	// GenerateStatus, when non-zero, makes generate requests fail with it.
	GenerateStatus atomic.Int32

	messageFetches      atomic.Int64
	conversationFetches atomic.Int64
	generateCalls       atomic.Int64
	lastGenerate        atomic.Pointer[api.GenerateMessageRequest]
}

// NewServer starts a fake backend. Call Close when done.
func NewServer() *Server {
	s := &Server{
		conversations: make(map[string]*api.Conversation),
		public:        make(map[string]bool),
		messages:      make(map[string][]api.Message),
		ticks:         make(map[string]int),
		Reply:         "Hello from the assistant.",
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// Client returns an API client pointed at the fake server.
func (s *Server) Client() *api.Client {
	return api.NewClient(&api.ClientConfig{BaseURL: s.URL, APIKey: APIKey, Timeout: 5 * time.Second})
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.auth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-message", s.handleGenerate)
		r.Get("/assistants", s.handleAssistants)
		r.Route("/db", func(r chi.Router) {
			r.Get("/conversations", s.handleGetConversations)
			r.Post("/conversations", s.handleConversationAction)
			r.Delete("/conversations", s.handleDeleteConversations)
			r.Get("/messages", s.handleMessages)
			r.Get("/user-models", s.handleUserModels)
		})
	})
	return r
}

// =============================================================================
// SEEDING AND CONTROL
// =============================================================================

// AddConversation stores a conversation and returns it with defaults filled.
func (s *Server) AddConversation(conv api.Conversation) api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	c := conv
	s.conversations[c.ID] = &c
	return c
}

// AddMessage appends a message to a conversation.
func (s *Server) AddMessage(msg api.Message) api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return msg
}

// SetModels replaces the user model list.
func (s *Server) SetModels(models ...api.UserModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
}

// SetAssistants replaces the assistant list.
func (s *Server) SetAssistants(assistants ...api.Assistant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistants = assistants
}

// SetGenerating sets the generating flag of a conversation.
func (s *Server) SetGenerating(id string, generating bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[id]; ok {
		c.Generating = generating
	}
}

// SetReplyHTML fills only the rendered HTML of the pending assistant reply.
// The generating flag is left alone.
func (s *Server) SetReplyHTML(id, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last := api.LastAssistantMessage(s.messages[id]); last != nil {
		last.ContentHTML = &html
	}
}

// Complete fills the pending assistant reply and clears the generating flag.
func (s *Server) Complete(id, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeLocked(id, reply)
}

func (s *Server) completeLocked(id, reply string) {
	msgs := s.messages[id]
	if last := api.LastAssistantMessage(msgs); last != nil && !last.HasContent() {
		last.Content = reply
	} else {
		s.messages[id] = append(msgs, api.Message{
			ID:             uuid.NewString(),
			ConversationID: id,
			Role:           api.RoleAssistant,
			Content:        reply,
			CreatedAt:      time.Now().UTC(),
		})
	}
	if c, ok := s.conversations[id]; ok {
		c.Generating = false
		c.UpdatedAt = time.Now().UTC()
	}
	delete(s.ticks, id)
}

// Conversation returns a copy of a stored conversation.
func (s *Server) Conversation(id string) (api.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return api.Conversation{}, false
	}
	return *c, true
}

// IsPublic reports the shared flag of a conversation.
func (s *Server) IsPublic(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.public[id]
}

// MessageFetches returns how many times messages were requested.
func (s *Server) MessageFetches() int64 { return s.messageFetches.Load() }

// ConversationFetches returns how many single-conversation fetches occurred.
func (s *Server) ConversationFetches() int64 { return s.conversationFetches.Load() }

// GenerateCalls returns how many generate requests were accepted or rejected.
func (s *Server) GenerateCalls() int64 { return s.generateCalls.Load() }

// LastGenerate returns the body of the latest generate request, or nil.
func (s *Server) LastGenerate() *api.GenerateMessageRequest { return s.lastGenerate.Load() }

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+APIKey {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.generateCalls.Add(1)

	var req api.GenerateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.ModelID == "" {
		writeError(w, http.StatusBadRequest, "model_id is required")
		return
	}
	s.lastGenerate.Store(&req)

	if status := s.GenerateStatus.Load(); status != 0 {
		writeError(w, int(status), "generation failed")
		return
	}

	s.mu.Lock()
	id := req.ConversationID
	now := time.Now().UTC()
	if id == "" {
		id = uuid.NewString()
		title := util.TruncateRunes(req.Message, 40)
		s.conversations[id] = &api.Conversation{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}
	}
	conv, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	conv.Generating = true
	conv.UpdatedAt = now
	model := req.ModelID
	s.messages[id] = append(s.messages[id],
		api.Message{ID: uuid.NewString(), ConversationID: id, Role: api.RoleUser, Content: req.Message, CreatedAt: now},
		api.Message{ID: uuid.NewString(), ConversationID: id, Role: api.RoleAssistant, ModelID: &model, CreatedAt: now},
	)
	s.ticks[id] = 0
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.GenerateMessageResponse{OK: true, ConversationID: id})
}

func (s *Server) handleGetConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		s.conversationFetches.Add(1)
		s.mu.Lock()
		c, ok := s.conversations[id]
		var out api.Conversation
		if ok {
			out = *c
		}
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusOK, []api.Conversation{})
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	search := strings.ToLower(q.Get("search"))
	s.mu.Lock()
	list := make([]api.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		if search != "" && !strings.Contains(strings.ToLower(c.Title), search) {
			continue
		}
		list = append(list, *c)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Pinned != list[j].Pinned {
			return list[i].Pinned
		}
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleConversationAction(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	str := func(key string) string {
		v, _ := body[key].(string)
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()

	switch action := str("action"); action {
	case "create":
		c := &api.Conversation{ID: uuid.NewString(), Title: str("title"), CreatedAt: now, UpdatedAt: now}
		s.conversations[c.ID] = c
		writeJSON(w, http.StatusOK, c)
	case "createWithMessage":
		c := &api.Conversation{ID: uuid.NewString(), Title: "New Chat", CreatedAt: now, UpdatedAt: now}
		s.conversations[c.ID] = c
		msg := api.Message{ID: uuid.NewString(), ConversationID: c.ID, Role: api.RoleUser, Content: str("content"), CreatedAt: now}
		s.messages[c.ID] = append(s.messages[c.ID], msg)
		writeJSON(w, http.StatusOK, api.CreateWithMessageResponse{ConversationID: c.ID, MessageID: msg.ID})
	case "updateTitle", "togglePin", "setPublic", "branch":
		c, ok := s.conversations[str("conversationId")]
		if !ok {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		switch action {
		case "updateTitle":
			c.Title = str("title")
			c.UpdatedAt = now
		case "togglePin":
			c.Pinned = !c.Pinned
		case "setPublic":
			pub, _ := body["public"].(bool)
			s.public[c.ID] = pub
		case "branch":
			branch := &api.Conversation{ID: uuid.NewString(), Title: c.Title, CreatedAt: now, UpdatedAt: now}
			for _, m := range s.messages[c.ID] {
				src := m.ID
				m.ID = uuid.NewString()
				m.ConversationID = branch.ID
				s.messages[branch.ID] = append(s.messages[branch.ID], m)
				if src == str("fromMessageId") {
					break
				}
			}
			s.conversations[branch.ID] = branch
			writeJSON(w, http.StatusOK, branch)
			return
		}
		writeJSON(w, http.StatusOK, c)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action))
	}
}

func (s *Server) handleDeleteConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.Get("all") == "true" {
		s.conversations = make(map[string]*api.Conversation)
		s.messages = make(map[string][]api.Message)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	id := q.Get("id")
	if _, ok := s.conversations[id]; !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	s.messageFetches.Add(1)
	if s.FailMessages.Load() {
		writeError(w, http.StatusInternalServerError, "temporary failure")
		return
	}

	id := r.URL.Query().Get("conversationId")
	s.mu.Lock()
	if c, ok := s.conversations[id]; ok && c.Generating {
		s.ticks[id]++
		if s.AutoCompleteAfter > 0 && s.ticks[id] >= s.AutoCompleteAfter {
			s.completeLocked(id, s.Reply)
		}
	}
	msgs := append([]api.Message(nil), s.messages[id]...)
	s.mu.Unlock()

	if msgs == nil {
		msgs = []api.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleUserModels(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	models := append([]api.UserModel{}, s.models...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleAssistants(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	list := append([]api.Assistant{}, s.assistants...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"message": msg, "status": status})
}
