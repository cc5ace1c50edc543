// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/thejudge22/nanochat-desktop/internal/security"
	"github.com/thejudge22/nanochat-desktop/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete nanochat client configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// ServerURL is the backend root, e.g. https://nano-gpt.com
	ServerURL string `toml:"server_url" json:"server_url"`

	// APIKey authenticates every request as a bearer token.
	APIKey string `toml:"api_key" json:"api_key"`

	// DefaultModel is preferred over the server's auto-selection when enabled.
	DefaultModel string `toml:"default_model" json:"default_model"`

	// DefaultAssistant is preferred over the server's default assistant.
	DefaultAssistant string `toml:"default_assistant" json:"default_assistant"`

	Chat     ChatConfig     `toml:"chat" json:"chat"`
	API      APIConfig      `toml:"api" json:"api"`
	Cache    CacheConfig    `toml:"cache" json:"cache"`
	Log      LogConfig      `toml:"log" json:"log"`
	UI       UIConfig       `toml:"ui" json:"ui"`
	Security SecurityConfig `toml:"security" json:"security"`
}

// ChatConfig controls reply polling and generation defaults.
type ChatConfig struct {
	// PollIntervalMs is the delay between poll ticks.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms"`
	// MaxPolls bounds one polling cycle; PollIntervalMs * MaxPolls is the reply timeout.
	MaxPolls int `toml:"max_polls" json:"max_polls"`
	// WebSearchMode is off, standard or deep.
	WebSearchMode string `toml:"web_search_mode" json:"web_search_mode"`
	// ReasoningEffort is empty, low, medium or high.
	ReasoningEffort string `toml:"reasoning_effort" json:"reasoning_effort"`
}

// APIConfig tunes the HTTP client.
type APIConfig struct {
	TimeoutSecs       int     `toml:"timeout_secs" json:"timeout_secs"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
}

// CacheConfig selects the offline snapshot cache.
type CacheConfig struct {
	// Backend is sqlite, redis or none.
	Backend string `toml:"backend" json:"backend"`
	// Path is the sqlite database file. Empty means ~/.nanochat/cache.db.
	Path string `toml:"path" json:"path"`
	// RedisURL is used when Backend is redis.
	RedisURL string `toml:"redis_url" json:"redis_url"`
	// TTLHours expires redis entries. 0 keeps them forever.
	TTLHours int `toml:"ttl_hours" json:"ttl_hours"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `toml:"development" json:"development"`
	// File receives logs instead of stderr when set.
	File string `toml:"file" json:"file"`
}

// UIConfig controls CLI rendering.
type UIConfig struct {
	// Markdown renders assistant replies with glamour on a terminal.
	Markdown bool `toml:"markdown" json:"markdown"`
	// Style is the glamour style: auto, dark, light or notty.
	Style string `toml:"style" json:"style"`
	// Width wraps rendered output. 0 uses the terminal width.
	Width int `toml:"width" json:"width"`
}

// SecurityConfig controls how credentials are stored.
type SecurityConfig struct {
	// EncryptConfig seals api_key and cache.redis_url with AES-256-GCM when
	// the file is saved. Sealed values are opened on load either way.
	EncryptConfig bool `toml:"encrypt_config" json:"encrypt_config"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

const currentVersion = "1"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version:   currentVersion,
		ServerURL: "https://nano-gpt.com",
		Chat: ChatConfig{
			PollIntervalMs: 500,
			MaxPolls:       180,
			WebSearchMode:  "off",
		},
		API: APIConfig{
			TimeoutSecs:       30,
			RequestsPerSecond: 0,
			Burst:             10,
		},
		Cache: CacheConfig{
			Backend: "sqlite",
		},
		Log: LogConfig{
			Level: "warn",
		},
		UI: UIConfig{
			Markdown: true,
			Style:    "auto",
		},
	}
}

// PollInterval returns Chat.PollIntervalMs as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Chat.PollIntervalMs) * time.Millisecond
}

// Timeout returns API.TimeoutSecs as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// IsConfigured reports whether a server URL and API key are present.
func (c *Config) IsConfigured() bool {
	return strings.TrimSpace(c.ServerURL) != "" && strings.TrimSpace(c.APIKey) != ""
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// dirOverride is set by tests to keep them out of the real home directory.
var dirOverride string

// ConfigDir returns the nanochat configuration directory path.
func ConfigDir() (string, error) {
	if dirOverride != "" {
		return dirOverride, nil
	}
	if dir := os.Getenv("NANOCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nanochat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultCachePath returns the sqlite cache location inside ConfigDir.
func DefaultCachePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600 since it holds the API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads a .env file from the working directory and from ConfigDir
// into the process environment. Existing variables win. Missing files are
// not an error.
func LoadDotEnv() error {
	candidates := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	if err := openSecrets(cfg); err != nil {
		return err
	}
	return fillDefaults(cfg)
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	if err := openSecrets(cfg); err != nil {
		return err
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
// Booleans are left alone: a file that omits ui.markdown gets false.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaults.ServerURL
	}

	if cfg.Chat.PollIntervalMs == 0 {
		cfg.Chat.PollIntervalMs = defaults.Chat.PollIntervalMs
	}
	if cfg.Chat.MaxPolls == 0 {
		cfg.Chat.MaxPolls = defaults.Chat.MaxPolls
	}
	if cfg.Chat.WebSearchMode == "" {
		cfg.Chat.WebSearchMode = defaults.Chat.WebSearchMode
	}

	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = defaults.API.Burst
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = defaults.Cache.Backend
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	if cfg.UI.Style == "" {
		cfg.UI.Style = defaults.UI.Style
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# nanochat configuration file\n")
	b.WriteString("# Generated by nanochat - edit with care\n\n")

	out, err := sealSecrets(cfg)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(&b).Encode(out); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	out, err := sealSecrets(cfg)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// SECRETS
// =============================================================================

// openKeyring opens the config encryption key. NANOCHAT_PASSPHRASE selects a
// passphrase-derived key over the stored master key.
func openKeyring() (*security.Keyring, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	kr, err := security.Open(dir, os.Getenv("NANOCHAT_PASSPHRASE"))
	if err != nil {
		return nil, fmt.Errorf("failed to open config key: %w", err)
	}
	return kr, nil
}

// secretFields lists the credential fields of cfg.
func secretFields(cfg *Config) []*string {
	return []*string{&cfg.APIKey, &cfg.Cache.RedisURL}
}

// openSecrets decrypts ENC: values in place. The key is only touched when a
// sealed value is present.
func openSecrets(cfg *Config) error {
	var kr *security.Keyring
	for _, field := range secretFields(cfg) {
		if !security.IsEncrypted(*field) {
			continue
		}
		if kr == nil {
			var err error
			if kr, err = openKeyring(); err != nil {
				return err
			}
		}
		plain, err := kr.DecryptString(*field)
		if err != nil {
			return fmt.Errorf("failed to decrypt config secret: %w", err)
		}
		*field = plain
	}
	return nil
}

// sealSecrets returns the copy of cfg to write to disk, with credentials
// encrypted when security.encrypt_config is set.
func sealSecrets(cfg *Config) (*Config, error) {
	if !cfg.Security.EncryptConfig {
		return cfg, nil
	}
	out := cfg.Clone()
	var kr *security.Keyring
	for _, field := range secretFields(out) {
		if *field == "" || security.IsEncrypted(*field) {
			continue
		}
		if kr == nil {
			var err error
			if kr, err = openKeyring(); err != nil {
				return nil, err
			}
		}
		sealed, err := kr.EncryptString(*field)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt config secret: %w", err)
		}
		*field = sealed
	}
	return out, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
// A missing API key is not an error; commands that need one check IsConfigured.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{
				Field:   "server_url",
				Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host", c.ServerURL),
			})
		}
	}

	if c.Chat.PollIntervalMs < 50 || c.Chat.PollIntervalMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "chat.poll_interval_ms",
			Message: fmt.Sprintf("must be between 50 and 60000, got %d", c.Chat.PollIntervalMs),
		})
	}
	if c.Chat.MaxPolls < 1 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_polls",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Chat.MaxPolls),
		})
	}
	if !oneOf(c.Chat.WebSearchMode, "off", "standard", "deep") {
		errs = append(errs, ValidationError{
			Field:   "chat.web_search_mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: off, standard, deep", c.Chat.WebSearchMode),
		})
	}
	if c.Chat.ReasoningEffort != "" && !oneOf(c.Chat.ReasoningEffort, "low", "medium", "high") {
		errs = append(errs, ValidationError{
			Field:   "chat.reasoning_effort",
			Message: fmt.Sprintf("invalid effort '%s', must be one of: low, medium, high", c.Chat.ReasoningEffort),
		})
	}

	if c.API.TimeoutSecs < 1 {
		errs = append(errs, ValidationError{Field: "api.timeout_secs", Message: "must be at least 1"})
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{Field: "api.requests_per_second", Message: "must not be negative"})
	}

	switch c.Cache.Backend {
	case "sqlite", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, ValidationError{Field: "cache.redis_url", Message: "required when cache.backend is redis"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "cache.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: sqlite, redis, none", c.Cache.Backend),
		})
	}
	if c.Cache.TTLHours < 0 {
		errs = append(errs, ValidationError{Field: "cache.ttl_hours", Message: "must not be negative"})
	}

	if !oneOf(c.Log.Level, "debug", "info", "warn", "error") {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if !oneOf(c.UI.Style, "auto", "dark", "light", "notty") {
		errs = append(errs, ValidationError{
			Field:   "ui.style",
			Message: fmt.Sprintf("invalid style '%s', must be one of: auto, dark, light, notty", c.UI.Style),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
// Supported variables:
//   - NANOCHAT_SERVER_URL: overrides server_url
//   - NANOCHAT_API_KEY: overrides api_key
//   - NANOCHAT_MODEL: overrides default_model
//   - NANOCHAT_LOG_LEVEL: overrides log.level
//   - NANOCHAT_CACHE_BACKEND: overrides cache.backend
//   - NANOCHAT_REDIS_URL: overrides cache.redis_url
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NANOCHAT_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("NANOCHAT_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("NANOCHAT_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("NANOCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("NANOCHAT_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("NANOCHAT_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.max_polls").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field
// equivalent. Matching is case-insensitive, so "api_key" finds APIKey.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := parseBool(strVal)
			if err != nil {
				return err
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %q", s)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"server_url",
		"api_key",
		"default_model",
		"default_assistant",
		"chat.poll_interval_ms",
		"chat.max_polls",
		"chat.web_search_mode",
		"chat.reasoning_effort",
		"api.timeout_secs",
		"api.requests_per_second",
		"api.burst",
		"cache.backend",
		"cache.path",
		"cache.redis_url",
		"cache.ttl_hours",
		"log.level",
		"log.development",
		"log.file",
		"ui.markdown",
		"ui.style",
		"ui.width",
		"security.encrypt_config",
	}
}

// IsSecretKey reports whether a dotted key holds a credential.
func IsSecretKey(key string) bool {
	return key == "api_key" || key == "cache.redis_url"
}

// Clone returns a copy of the configuration. Config holds only value fields.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as JSON with credentials redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.APIKey != "" {
		safe.APIKey = RedactKey(safe.APIKey)
	}
	if safe.Cache.RedisURL != "" {
		safe.Cache.RedisURL = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// RedactKey keeps the last four characters of a key for recognition.
func RedactKey(key string) string {
	if len(key) <= 8 {
		return "[REDACTED]"
	}
	return "****" + key[len(key)-4:]
}
