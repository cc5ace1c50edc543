// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display current configuration, credentials redacted
//   path                Show configuration file path
//   get KEY [--reveal]  Print one value
//   set KEY VALUE       Set a value and save the file
//
// Examples:
//   nanochat config set server_url https://nano-gpt.com
//   nanochat config set api_key sk-nano-xxxx
//   nanochat config set default_model gpt-4o
//   nanochat config set chat.web_search_mode standard
//   nanochat config set cache.backend redis
//   nanochat config get chat.max_polls
//
// Keys use dot notation for sections; see 'config show' for all of them.
// Environment overrides (NANOCHAT_*) are shown by show and get but never
// written by set.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/thejudge22/nanochat-desktop/internal/config"
)

// ConfigValue is the JSON form of config get and set.
type ConfigValue struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
	Path  string      `json:"path,omitempty"`
}

// HandleConfig runs the config subcommands. It works without a valid
// server connection.
func HandleConfig(args Args, out io.Writer) error {
	opts := args.Options
	if opts == nil {
		opts = NewArgParser(nil)
	}

	switch sub := strings.ToLower(opts.Subcommand()); sub {
	case "", "show":
		cfg, _, err := loadConfig(args.ConfigPath)
		if err != nil {
			return err
		}
		return configShow(cfg, args.JSON, out)

	case "path":
		path, err := configFilePath(args.ConfigPath)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config path", map[string]string{"path": path}).Print(out)
		}
		fmt.Fprintln(out, path)
		return nil

	case "get":
		key := opts.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "nanochat config get chat.max_polls")
		}
		cfg, _, err := loadConfig(args.ConfigPath)
		if err != nil {
			return err
		}
		value, err := cfg.Get(key)
		if err != nil {
			return ErrInvalidFormat("key", key, "one of: "+strings.Join(config.GetAllKeys(), ", "))
		}
		if !opts.BoolFlag("reveal") {
			value = redactValue(key, value)
		}
		if args.JSON {
			return NewJSONResponse("config get", ConfigValue{Key: key, Value: value}).Print(out)
		}
		fmt.Fprintln(out, value)
		return nil

	case "set":
		key := opts.Positional(1)
		value := JoinPositionalArgs(opts, 2)
		if key == "" || opts.PositionalCount() < 3 {
			return ErrMissingArgument("value", "nanochat config set default_model gpt-4o")
		}
		path, err := configSet(args.ConfigPath, key, value)
		if err != nil {
			return err
		}
		shown := redactValue(key, value)
		if args.JSON {
			return NewJSONResponse("config set", ConfigValue{Key: key, Value: shown, Path: path}).Print(out)
		}
		if !args.Quiet {
			fmt.Fprintf(out, "%s %s = %v\n", SuccessStyle.Render("[OK]"), key, shown)
			fmt.Fprintln(out, DimStyle.Render("saved to "+path))
		}
		return nil

	default:
		return ErrInvalidFormat("subcommand", sub, "nanochat config [show|path|get KEY|set KEY VALUE]")
	}
}

func configShow(cfg *config.Config, jsonMode bool, out io.Writer) error {
	if jsonMode {
		return NewJSONResponse("config", json.RawMessage(cfg.String())).Print(out)
	}

	fmt.Fprintln(out, TitleStyle.Render("Configuration"))
	fmt.Fprintln(out, RenderSeparator())
	section := ""
	for _, key := range config.GetAllKeys() {
		if head, _, ok := strings.Cut(key, "."); ok && head != section {
			section = head
			fmt.Fprintln(out)
			fmt.Fprintln(out, InfoStyle.Render("["+section+"]"))
		}
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "%s %s\n", RenderLabel(key), ValueStyle.Render(fmt.Sprint(redactValue(key, value))))
	}
	if !cfg.IsConfigured() {
		fmt.Fprintln(out)
		fmt.Fprintln(out, WarningStyle.Render("server_url and api_key are required for chat"))
	}
	return nil
}

// configSet changes one key in the config file and saves it. The file is
// read without environment overrides so they are not persisted.
func configSet(explicit, key, value string) (string, error) {
	path, err := configFilePath(explicit)
	if err != nil {
		return "", err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		cfg = &config.Config{}
		if strings.HasSuffix(path, ".json") {
			err = config.LoadJSON(cfg, path)
		} else {
			err = config.LoadTOML(cfg, path)
		}
		if err != nil {
			return "", err
		}
	}

	if err := cfg.Set(key, value); err != nil {
		return "", NewValidationErrorWithExample("key", key, err.Error(), "nanochat config set chat.max_polls 240")
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid config: %w", err)
	}

	if strings.HasSuffix(path, ".json") {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// configFilePath picks the file config commands read and write: an
// explicit --config path, else an existing TOML or JSON file, else the TOML
// default.
func configFilePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := config.ConfigPathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

func redactValue(key string, value interface{}) interface{} {
	s, ok := value.(string)
	if !ok || s == "" || !config.IsSecretKey(key) {
		return value
	}
	if key == "api_key" {
		return config.RedactKey(s)
	}
	return "[REDACTED]"
}
