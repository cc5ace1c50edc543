// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for nanochat.
//
// Every command except help, version and config builds an App, which wires
// the API client, the offline cache and the stores from the configuration.
// Handlers return errors and never exit; main maps them to exit codes with
// GetExitCode.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Global flags plus an ArgParser over the command's arguments
//   - App: Client, cache and stores for one run
//   - JSONResponse: The --json envelope shared by all commands
//
// # Usage
//
//	cmd, args := cli.Parse()
//	if err := cli.Run(ctx, cmd, args, os.Stdout, os.Stderr); err != nil {
//	    cli.HandleErrorAndExit(err, args.JSON)
//	}
//
// # Commands Overview
//
//   - chat: Interactive REPL with slash commands (default)
//   - ask: Send one message and print the reply
//   - conversations: List, search, rename, pin, share, branch and delete
//   - show: Print a transcript, from the server or the offline cache
//   - models, assistants: List what the account can use
//   - config: Show and edit the config file
//   - check: Validate the server URL and API key
package cli
