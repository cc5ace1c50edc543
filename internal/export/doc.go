// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversation transcripts to files.
//
// # Key Types
//
//   - Transcript: A conversation with its messages
//   - Exporter: Converts a transcript to one format
//   - Options: Output directory and metadata switches
//
// # Supported Formats
//
//   - Markdown: Human-readable, with YAML frontmatter
//   - JSON: The transcript as returned by the server
//
// # Usage
//
//	exp, err := export.New("md", nil)
//	path, err := export.ToFile(transcript, exp, nil)
package export
