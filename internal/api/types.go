// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "time"

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// WebSearchMode controls server-side web search for a generation.
type WebSearchMode string

const (
	WebSearchOff      WebSearchMode = "off"
	WebSearchStandard WebSearchMode = "standard"
	WebSearchDeep     WebSearchMode = "deep"
)

// WebSearchProvider selects the search backend.
type WebSearchProvider string

const (
	WebSearchLinkup WebSearchProvider = "linkup"
	WebSearchTavily WebSearchProvider = "tavily"
	WebSearchExa    WebSearchProvider = "exa"
	WebSearchKagi   WebSearchProvider = "kagi"
)

// ReasoningEffort is the requested reasoning budget for models that support it.
type ReasoningEffort string

const (
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// FileType is the kind of an attached document.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeMarkdown FileType = "markdown"
	FileTypeText     FileType = "text"
	FileTypeEPUB     FileType = "epub"
)

// SearchMode is the matching strategy for conversation search.
type SearchMode string

const (
	SearchExact SearchMode = "exact"
	SearchWords SearchMode = "words"
	SearchFuzzy SearchMode = "fuzzy"
)

// =============================================================================
// ATTACHMENTS
// =============================================================================

// ImageAttachment references an uploaded image.
type ImageAttachment struct {
	URL       string `json:"url"`
	StorageID string `json:"storage_id"`
	FileName  string `json:"fileName,omitempty"`
}

// DocumentAttachment references an uploaded document.
type DocumentAttachment struct {
	URL       string   `json:"url"`
	StorageID string   `json:"storage_id"`
	FileName  string   `json:"fileName,omitempty"`
	FileType  FileType `json:"fileType"`
}

// =============================================================================
// CONVERSATIONS AND MESSAGES
// =============================================================================

// Conversation is the server-side record of a chat.
type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	UserID     string    `json:"userId"`
	ProjectID  *string   `json:"projectId"`
	Pinned     bool      `json:"pinned"`
	Generating bool      `json:"generating"`
	CostUSD    *float64  `json:"costUsd"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Message is a single entry of a conversation.
// Assistant messages may exist with empty content while generation runs.
type Message struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversationId"`
	Role           Role                 `json:"role"`
	Content        string               `json:"content"`
	ContentHTML    *string              `json:"contentHtml"`
	ModelID        *string              `json:"modelId"`
	Reasoning      *string              `json:"reasoning"`
	Images         []ImageAttachment    `json:"images"`
	Documents      []DocumentAttachment `json:"documents"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// HasContent reports whether the message carries any text or rendered HTML.
func (m *Message) HasContent() bool {
	if m.Content != "" {
		return true
	}
	return m.ContentHTML != nil && *m.ContentHTML != ""
}

// LastAssistantMessage returns the most recent assistant message, or nil.
func LastAssistantMessage(messages []Message) *Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return &messages[i]
		}
	}
	return nil
}

// GenerateMessageRequest is the body of POST /api/generate-message.
// An empty ConversationID asks the backend to create a new conversation.
type GenerateMessageRequest struct {
	Message           string               `json:"message,omitempty"`
	ModelID           string               `json:"model_id"`
	AssistantID       string               `json:"assistant_id,omitempty"`
	ProjectID         string               `json:"project_id,omitempty"`
	SessionToken      string               `json:"session_token,omitempty"`
	ConversationID    string               `json:"conversation_id,omitempty"`
	WebSearchEnabled  bool                 `json:"web_search_enabled,omitempty"`
	WebSearchMode     WebSearchMode        `json:"web_search_mode,omitempty"`
	WebSearchProvider WebSearchProvider    `json:"web_search_provider,omitempty"`
	Images            []ImageAttachment    `json:"images,omitempty"`
	Documents         []DocumentAttachment `json:"documents,omitempty"`
	ReasoningEffort   ReasoningEffort      `json:"reasoning_effort,omitempty"`
	Temporary         bool                 `json:"temporary,omitempty"`
	ProviderID        string               `json:"provider_id,omitempty"`
}

// GenerateMessageResponse is returned as soon as generation has been started.
type GenerateMessageResponse struct {
	OK             bool   `json:"ok"`
	ConversationID string `json:"conversation_id"`
}

// CreateWithMessageResponse is returned by the createWithMessage action.
type CreateWithMessageResponse struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// =============================================================================
// MODELS AND ASSISTANTS
// =============================================================================

// UserModel is a model entry from the user's model settings.
type UserModel struct {
	ModelID  string `json:"modelId"`
	Provider string `json:"provider"`
	Enabled  bool   `json:"enabled"`
	Pinned   bool   `json:"pinned"`
}

// Assistant is a saved system prompt with default generation settings.
type Assistant struct {
	ID                       string             `json:"id"`
	Name                     string             `json:"name"`
	Description              *string            `json:"description"`
	SystemPrompt             string             `json:"systemPrompt"`
	IsDefault                bool               `json:"isDefault"`
	DefaultModelID           *string            `json:"defaultModelId"`
	DefaultWebSearchMode     *WebSearchMode     `json:"defaultWebSearchMode"`
	DefaultWebSearchProvider *WebSearchProvider `json:"defaultWebSearchProvider"`
	CreatedAt                time.Time          `json:"createdAt"`
	UpdatedAt                time.Time          `json:"updatedAt"`
}

// apiErrorBody is the structured error payload returned by the backend.
type apiErrorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Error   string `json:"error"`
}
