// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and dispatch for nanochat.
//
// Global flags may appear anywhere on the command line. Everything after a
// bare "--" is passed through to the command untouched, so a message can
// start with a dash:
//
//	nanochat ask -- -1 is a valid exit code?
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (set at build time via main).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command identifies the command to run.
type Command int

const (
	// CmdChat starts the interactive REPL (default with no arguments).
	CmdChat Command = iota
	// CmdAsk sends one message and prints the reply.
	CmdAsk
	// CmdConversations lists and manages conversations.
	CmdConversations
	// CmdShow prints a conversation transcript.
	CmdShow
	// CmdExport saves a transcript to a file.
	CmdExport
	// CmdModels lists enabled models.
	CmdModels
	// CmdAssistants lists assistants.
	CmdAssistants
	// CmdConfig views and edits the config file.
	CmdConfig
	// CmdCheck validates the server connection.
	CmdCheck
	// CmdVersion prints version information.
	CmdVersion
	// CmdHelp prints usage.
	CmdHelp
)

var commandNames = map[Command]string{
	CmdChat:          "chat",
	CmdAsk:           "ask",
	CmdConversations: "conversations",
	CmdShow:          "show",
	CmdExport:        "export",
	CmdModels:        "models",
	CmdAssistants:    "assistants",
	CmdConfig:        "config",
	CmdCheck:         "check",
	CmdVersion:       "version",
	CmdHelp:          "help",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// commandAliases maps what users type to commands.
var commandAliases = map[string]Command{
	"chat":          CmdChat,
	"ask":           CmdAsk,
	"a":             CmdAsk,
	"conversations": CmdConversations,
	"conversation":  CmdConversations,
	"convs":         CmdConversations,
	"ls":            CmdConversations,
	"show":          CmdShow,
	"export":        CmdExport,
	"models":        CmdModels,
	"assistants":    CmdAssistants,
	"config":        CmdConfig,
	"check":         CmdCheck,
	"doctor":        CmdCheck,
	"version":       CmdVersion,
	"help":          CmdHelp,
}

// commandBoolFlags lists, per command, the flags that never take a value.
var commandBoolFlags = map[Command][]string{
	CmdShow:          {"offline"},
	CmdExport:        {"offline"},
	CmdConversations: {"yes", "y"},
	CmdConfig:        {"reveal"},
}

// Args holds the parsed command line.
type Args struct {
	// Global flags
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool
	Model      string

	// Subcommand is the first positional argument after the command.
	Subcommand string

	// Raw holds the command's arguments with global flags removed.
	Raw []string

	// Options parses Raw for command-level flags and positionals.
	Options *ArgParser
}

const usageText = `nanochat - terminal client for NanoChat

Usage:
  nanochat [global flags] [command] [arguments]

Commands:
  chat [--conversation ID]          Interactive chat (default)
  ask TEXT [--conversation ID]      Send one message and print the reply
  conversations [subcommand]        Manage conversations (alias: convs)
      list [--limit N]                List conversations (default)
      search QUERY [--mode MODE]      Search by text (exact, words, fuzzy)
      delete ID                       Delete a conversation
      delete-all --yes                Delete every conversation
      rename ID TITLE                 Change a title
      pin ID                          Toggle the pin
      public ID on|off                Share or unshare
      branch ID MESSAGE_ID            Branch from a message
  show ID [--offline]               Print a transcript (--offline reads the cache)
  export ID [--format md|json] [--out DIR] [--offline]
                                    Save a transcript to a file
  models                            List enabled models
  assistants                        List assistants
  config [show|path|get KEY|set KEY VALUE]
  check                             Validate server URL and API key
  version                           Show version information
  help                              Show this help

Global flags:
  --config PATH    Use this config file instead of ~/.nanochat/config.toml
  --model ID       Model for this run (overrides default_model)
  --json           Machine-readable output
  -v, --verbose    Debug logging
  -q, --quiet      Only print results

Environment:
  NANOCHAT_HOME, NANOCHAT_SERVER_URL, NANOCHAT_API_KEY, NANOCHAT_MODEL,
  NANOCHAT_LOG_LEVEL, NANOCHAT_CACHE_BACKEND, NANOCHAT_REDIS_URL,
  NANOCHAT_PASSPHRASE (key for security.encrypt_config)

Version: %s
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// VersionData is the JSON form of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// HandleVersion prints version information.
func HandleVersion(w io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print(w)
	}
	fmt.Fprintf(w, "nanochat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args. Usage errors end the process.
func Parse() (Command, Args) {
	cmd, args, err := ParseArgs(os.Args[1:])
	if err != nil {
		HandleErrorAndExit(err, args.JSON)
	}
	return cmd, args
}

// ParseArgs parses a command line without the program name.
func ParseArgs(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}

	cmd := CmdChat
	if len(remaining) > 0 && remaining[0] != "--" {
		name := strings.ToLower(remaining[0])
		switch name {
		case "-h", "--help":
			return CmdHelp, args, nil
		case "--version":
			return CmdVersion, args, nil
		}
		c, ok := commandAliases[name]
		if !ok {
			return CmdHelp, args, ErrInvalidFormat("command", remaining[0], "nanochat help")
		}
		cmd = c
		remaining = remaining[1:]
	}

	args.Raw = remaining
	args.Options = NewArgParser(remaining, commandBoolFlags[cmd]...)
	args.Subcommand = args.Options.Subcommand()
	return cmd, args, nil
}

// parseGlobalFlags extracts global flags and returns the rest in order.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var (
		remaining []string
		args      Args
	)

	value := func(i int, flag string) (string, error) {
		if i+1 >= len(argv) {
			return "", ErrMissingArgument(flag, "nanochat "+flag+" VALUE ...")
		}
		return argv[i+1], nil
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			remaining = append(remaining, argv[i:]...)
			return remaining, args, nil
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case arg == "--model" || arg == "-m":
			v, err := value(i, "--model")
			if err != nil {
				return nil, args, err
			}
			args.Model = v
			i++
		case strings.HasPrefix(arg, "--model="):
			args.Model = strings.TrimPrefix(arg, "--model=")
		case arg == "--config":
			v, err := value(i, "--config")
			if err != nil {
				return nil, args, err
			}
			args.ConfigPath = v
			i++
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args, nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes cmd. Commands that talk to the server share one App.
func Run(ctx context.Context, cmd Command, args Args, out, errOut io.Writer) error {
	switch cmd {
	case CmdHelp:
		PrintUsage(out)
		return nil
	case CmdVersion:
		return HandleVersion(out, args)
	case CmdConfig:
		return HandleConfig(args, out)
	}

	app, err := NewApp(ctx, args, out, errOut)
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case CmdChat:
		return HandleChat(ctx, app, args)
	case CmdAsk:
		return HandleAsk(ctx, app, args)
	case CmdConversations:
		return HandleConversations(ctx, app, args)
	case CmdShow:
		return HandleShow(ctx, app, args)
	case CmdExport:
		return HandleExport(ctx, app, args)
	case CmdModels:
		return HandleModels(ctx, app, args)
	case CmdAssistants:
		return HandleAssistants(ctx, app, args)
	case CmdCheck:
		return HandleCheck(ctx, app, args)
	}
	return fmt.Errorf("unhandled command %s", cmd)
}
