// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/thejudge22/nanochat-desktop/internal/api"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts as JSON.
// JSON exports always carry the complete transcript; IncludeMetadata and
// IncludeTimestamps only apply to Markdown.
type JSONExporter struct {
	options *Options
}

// jsonDocument wraps a transcript with export details.
type jsonDocument struct {
	Transcript
	ExportedAt time.Time `json:"exported_at"`
	Generator  string    `json:"generator"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a transcript to indented JSON.
func (e *JSONExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}
	doc := jsonDocument{
		Transcript: *t,
		ExportedAt: e.options.now().UTC(),
		Generator:  "nanochat",
	}
	if doc.Messages == nil {
		doc.Messages = []api.Message{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
