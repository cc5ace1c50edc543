// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Text rendering of transcripts and listings.

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/config"
	"github.com/thejudge22/nanochat-desktop/internal/util"
)

// =============================================================================
// RENDERER
// =============================================================================

// Renderer turns assistant replies into terminal text. Markdown is rendered
// with glamour on a terminal; otherwise text passes through unchanged.
type Renderer struct {
	md    *glamour.TermRenderer
	width int
	tty   bool
}

// NewRenderer builds a renderer for the UI settings. tty reports whether
// output goes to a terminal.
func NewRenderer(ui config.UIConfig, tty bool) *Renderer {
	width := ui.Width
	if width <= 0 {
		width = DefaultTerminalWidth
		if tty {
			width = GetTerminalWidth()
		}
	}
	r := &Renderer{width: width, tty: tty}
	if !tty || !ui.Markdown {
		return r
	}

	style := glamour.WithAutoStyle()
	if ui.Style != "" && ui.Style != "auto" {
		style = glamour.WithStandardStyle(ui.Style)
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width-2))
	if err == nil {
		r.md = md
	}
	return r
}

// Width is the column budget of the output.
func (r *Renderer) Width() int {
	return r.width
}

// Markdown renders assistant text. Rendering failures fall back to the
// plain text.
func (r *Renderer) Markdown(text string) string {
	if r.md != nil {
		if out, err := r.md.Render(text); err == nil {
			return strings.TrimRight(out, "\n") + "\n"
		}
	}
	if r.tty {
		text = WrapText(text, r.width)
	}
	return strings.TrimRight(text, "\n") + "\n"
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// RenderTranscript writes every message with a speaker header.
func (r *Renderer) RenderTranscript(w io.Writer, msgs []api.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("(no messages)"))
		return
	}
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		r.RenderMessage(w, m)
	}
}

// RenderMessage writes one message.
func (r *Renderer) RenderMessage(w io.Writer, m api.Message) {
	switch m.Role {
	case api.RoleAssistant:
		header := m.Role.DisplayName()
		if m.ModelID != nil && *m.ModelID != "" {
			header += " (" + *m.ModelID + ")"
		}
		fmt.Fprintln(w, assistantRoleStyle.Render(header))
		if !m.HasContent() {
			fmt.Fprintln(w, DimStyle.Render("(generating...)"))
			return
		}
		fmt.Fprint(w, r.Markdown(m.Content))
	default:
		fmt.Fprintln(w, userRoleStyle.Render(m.Role.DisplayName()))
		fmt.Fprintln(w, m.Content)
	}
}

// =============================================================================
// LISTINGS
// =============================================================================

// selectionMarker marks the selected row of a listing.
func selectionMarker(selected bool) string {
	if selected {
		return HighlightStyle.Render("*")
	}
	return " "
}

// RenderConversationList writes one row per conversation, numbered from 1
// so the REPL can open them by index.
func (r *Renderer) RenderConversationList(w io.Writer, convs []api.Conversation, selectedID string) {
	if len(convs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations yet."))
		return
	}

	// marker, index, pin flag, two spaces, date, two spaces, id
	const fixed = 2 + 5 + 4 + 2 + 16 + 2 + 36
	titleWidth := r.width - fixed
	if titleWidth < 16 {
		titleWidth = 16
	}

	for i, c := range convs {
		title := util.SingleLine(c.Title)
		if title == "" {
			title = "(untitled)"
		}
		flags := "   "
		if c.Pinned {
			flags = "[P]"
		}
		if c.Generating {
			flags = "[~]"
		}
		fmt.Fprintf(w, "%s %3d. %s %s  %s  %s\n",
			selectionMarker(c.ID == selectedID),
			i+1,
			flags,
			util.PadWidth(title, titleWidth),
			DimStyle.Render(formatTime(c.UpdatedAt)),
			DimStyle.Render(c.ID))
	}
}

// RenderModels writes the enabled models with the selected one marked.
func (r *Renderer) RenderModels(w io.Writer, models []api.UserModel, selectedID string) {
	if len(models) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No enabled models."))
		return
	}
	for _, m := range models {
		pin := ""
		if m.Pinned {
			pin = DimStyle.Render(" (pinned)")
		}
		fmt.Fprintf(w, "%s %s  %s%s\n",
			selectionMarker(m.ModelID == selectedID),
			util.PadWidth(m.ModelID, 40),
			DimStyle.Render(m.Provider),
			pin)
	}
}

// RenderAssistants writes assistants with the selected one marked.
func (r *Renderer) RenderAssistants(w io.Writer, assistants []api.Assistant, selectedID string) {
	if len(assistants) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No assistants."))
		return
	}
	for _, a := range assistants {
		desc := ""
		if a.Description != nil {
			desc = util.TruncateWidth(util.SingleLine(*a.Description), r.width/2)
		}
		def := ""
		if a.IsDefault {
			def = DimStyle.Render(" (default)")
		}
		fmt.Fprintf(w, "%s %s  %s  %s%s\n",
			selectionMarker(a.ID == selectedID),
			util.PadWidth(a.Name, 24),
			DimStyle.Render(a.ID),
			desc,
			def)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return strings.Repeat(" ", 16)
	}
	return t.Local().Format("2006-01-02 15:04")
}
