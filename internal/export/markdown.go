// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/thejudge22/nanochat-desktop/internal/api"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown. Message content is written as
// is since replies are already Markdown.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}
	if len(t.Messages) == 0 {
		return nil, ErrEmptyTranscript
	}

	conv := t.Conversation
	now := e.options.now()
	models := t.models()
	var sb strings.Builder

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(t.title()))
		fmt.Fprintf(&sb, "conversation_id: %s\n", conv.ID)
		if len(models) > 0 {
			fmt.Fprintf(&sb, "models: [%s]\n", strings.Join(models, ", "))
		}
		if !conv.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "date: %s\n", conv.CreatedAt.Format(time.RFC3339))
		}
		if !conv.UpdatedAt.IsZero() {
			fmt.Fprintf(&sb, "updated: %s\n", conv.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
		if conv.CostUSD != nil {
			fmt.Fprintf(&sb, "cost_usd: %.4f\n", *conv.CostUSD)
		}
		fmt.Fprintf(&sb, "exported: %s\n", now.Format(time.RFC3339))
		sb.WriteString("generator: nanochat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.title()))

	if e.options.IncludeMetadata {
		if len(models) > 0 {
			fmt.Fprintf(&sb, "- **Models**: %s\n", strings.Join(models, ", "))
		}
		if !conv.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(conv.CreatedAt))
		}
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(t.Messages))
		if conv.Pinned {
			sb.WriteString("- **Pinned**\n")
		}
		if t.CachedAt != nil {
			fmt.Fprintf(&sb, "- **Offline copy from**: %s\n", formatTimestamp(*t.CachedAt))
		}
		sb.WriteString("\n---\n\n")
	}

	for i, msg := range t.Messages {
		label := formatRoleLabel(msg)
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if msg.Reasoning != nil && strings.TrimSpace(*msg.Reasoning) != "" {
			sb.WriteString("<details><summary>Reasoning</summary>\n\n")
			sb.WriteString(strings.TrimSpace(*msg.Reasoning))
			sb.WriteString("\n\n</details>\n\n")
		}

		content := strings.TrimSpace(msg.Content)
		if content == "" && msg.Role == api.RoleAssistant {
			content = "_(no reply yet)_"
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")

		if att := formatAttachments(msg); att != "" {
			sb.WriteString(att)
			sb.WriteString("\n")
		}

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from nanochat on %s*\n", now.Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatRoleLabel names the speaker, with the model for replies.
func formatRoleLabel(msg api.Message) string {
	if msg.Role == "" {
		return "Unknown"
	}
	label := msg.Role.DisplayName()
	if msg.Role == api.RoleAssistant && msg.ModelID != nil && *msg.ModelID != "" {
		label += " (" + *msg.ModelID + ")"
	}
	return label
}

// formatAttachments lists images and documents as links.
func formatAttachments(msg api.Message) string {
	if len(msg.Images) == 0 && len(msg.Documents) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, img := range msg.Images {
		name := img.FileName
		if name == "" {
			name = "image"
		}
		fmt.Fprintf(&sb, "- ![%s](%s)\n", escapeMarkdown(name), img.URL)
	}
	for _, doc := range msg.Documents {
		name := doc.FileName
		if name == "" {
			name = string(doc.FileType)
		}
		fmt.Fprintf(&sb, "- [%s](%s)\n", escapeMarkdown(name), doc.URL)
	}
	return sb.String()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that break headings and link text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a frontmatter value when it holds special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
