// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
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

	"github.com/disam-ia/disamia/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete disamia configuration.
type Config struct {
	Ollama    OllamaConfig    `toml:"ollama" json:"ollama"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Knowledge KnowledgeConfig `toml:"knowledge" json:"knowledge"`
	Prompt    PromptConfig    `toml:"prompt" json:"prompt"`
	Server    ServerConfig    `toml:"server" json:"server"`
	Log       LogConfig       `toml:"log" json:"log"`
}

// OllamaConfig points at the local model server.
type OllamaConfig struct {
	// URL is the base URL of the Ollama server.
	URL string `toml:"url" json:"url"`
	// Model is the preferred model. Empty means the first installed one.
	Model string `toml:"model" json:"model"`
	// TimeoutSecs bounds short requests like the model listing.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// StreamTimeoutSecs bounds the wait for response headers of a chat.
	StreamTimeoutSecs int `toml:"stream_timeout_secs" json:"stream_timeout_secs"`
}

// Timeout returns TimeoutSecs as a duration.
func (o OllamaConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSecs) * time.Second
}

// StreamTimeout returns StreamTimeoutSecs as a duration.
func (o OllamaConfig) StreamTimeout() time.Duration {
	return time.Duration(o.StreamTimeoutSecs) * time.Second
}

// StorageConfig selects where knowledge and conversations live.
type StorageConfig struct {
	// Driver is one of "file", "sqlite" or "memory".
	Driver string `toml:"driver" json:"driver"`
	// Dir holds one JSON document per key with the file driver
	// (empty = ~/.disamia/data).
	Dir string `toml:"dir" json:"dir"`
	// SQLitePath is the database file with the sqlite driver
	// (empty = <dir>/disamia.db).
	SQLitePath string `toml:"sqlite_path" json:"sqlite_path"`
}

// KnowledgeConfig tunes the knowledge store.
type KnowledgeConfig struct {
	// Watch reloads the store when another process edits it.
	Watch bool `toml:"watch" json:"watch"`
	// ContextHeader is the first line of the rendered knowledge block.
	ContextHeader string `toml:"context_header" json:"context_header"`
}

// PromptConfig overrides the fixed text around the knowledge block.
// Empty values keep the built-in DISAM text.
type PromptConfig struct {
	Preamble     string `toml:"preamble" json:"preamble"`
	Instructions string `toml:"instructions" json:"instructions"`
}

// ServerConfig configures `disamia serve`.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`
	// AdminTokenHash is a bcrypt hash of the bearer token required for
	// knowledge mutations. Empty disables the mutation endpoints.
	AdminTokenHash string `toml:"admin_token_hash" json:"admin_token_hash"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`
	// AllowedOrigins lists CORS and websocket origins. Empty allows same-origin only.
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level"`
	// Format is one of text, json, logfmt.
	Format string `toml:"format" json:"format"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default values.
const (
	DefaultOllamaURL         = "http://127.0.0.1:11434"
	DefaultTimeoutSecs       = 30
	DefaultStreamTimeoutSecs = 120
	DefaultStorageDriver     = "file"
	DefaultServerAddr        = "127.0.0.1:8080"
	DefaultRateLimit         = 5.0
	DefaultRateBurst         = 10
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:               DefaultOllamaURL,
			TimeoutSecs:       DefaultTimeoutSecs,
			StreamTimeoutSecs: DefaultStreamTimeoutSecs,
		},
		Storage: StorageConfig{
			Driver: DefaultStorageDriver,
		},
		Knowledge: KnowledgeConfig{
			Watch: true,
		},
		Server: ServerConfig{
			Addr:      DefaultServerAddr,
			RateLimit: DefaultRateLimit,
			RateBurst: DefaultRateBurst,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Ollama.URL == "" {
		c.Ollama.URL = d.Ollama.URL
	}
	if c.Ollama.TimeoutSecs == 0 {
		c.Ollama.TimeoutSecs = d.Ollama.TimeoutSecs
	}
	if c.Ollama.StreamTimeoutSecs == 0 {
		c.Ollama.StreamTimeoutSecs = d.Ollama.StreamTimeoutSecs
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// DataDir returns the storage directory, defaulting under ConfigDir.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the disamia configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("DISAMIA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".disamia"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600. It may hold the
// admin token hash.
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

// Load reads the configuration at path, or the default path when path is
// empty. A missing file is not an error: defaults are used. Dotenv files in
// the working directory and the config directory are loaded before the
// DISAMIA_* overrides are applied; they never replace variables already set.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := loadDotenv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys absent from the file keep the values
// already in cfg.
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
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func loadDotenv(configDir string) error {
	for _, f := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path (the default path when empty) as TOML with 0600
// permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# disamia configuration file")
	fmt.Fprintln(&buf, "# Generated by disamia - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String renders cfg as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("error encoding config: %v", err)
	}
	return buf.String()
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
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validDrivers   = map[string]bool{"file": true, "sqlite": true, "memory": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats   = map[string]bool{"text": true, "json": true, "logfmt": true}
)

// Validate checks every section and returns all problems at once as
// ValidateErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Ollama.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL '%s', expected http(s)://host:port", c.Ollama.URL),
		})
	}
	if c.Ollama.TimeoutSecs < 1 {
		errs = append(errs, ValidationError{Field: "ollama.timeout_secs", Message: "must be at least 1"})
	}
	if c.Ollama.StreamTimeoutSecs < 1 {
		errs = append(errs, ValidationError{Field: "ollama.stream_timeout_secs", Message: "must be at least 1"})
	}

	if !validDrivers[strings.ToLower(c.Storage.Driver)] {
		errs = append(errs, ValidationError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver '%s', must be one of: file, sqlite, memory", c.Storage.Driver),
		})
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, ValidationError{Field: "server.rate_burst", Message: "must be at least 1 when rate_limit is set"})
	}
	if c.Server.AdminTokenHash != "" && !strings.HasPrefix(c.Server.AdminTokenHash, "$2") {
		errs = append(errs, ValidationError{Field: "server.admin_token_hash", Message: "must be a bcrypt hash (see `disamia config hash-token`)"})
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: text, json, logfmt", c.Log.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - DISAMIA_OLLAMA_URL: overrides ollama.url (OLLAMA_HOST is honoured when unset)
//   - DISAMIA_MODEL: overrides ollama.model
//   - DISAMIA_STORAGE_DRIVER, DISAMIA_STORAGE_DIR, DISAMIA_SQLITE_PATH
//   - DISAMIA_KNOWLEDGE_WATCH: "1"/"true" or "0"/"false"
//   - DISAMIA_SERVER_ADDR, DISAMIA_ADMIN_TOKEN_HASH
//   - DISAMIA_LOG_LEVEL, DISAMIA_LOG_FORMAT
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DISAMIA_OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	} else if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Ollama.URL = normalizeOllamaHost(v)
	}
	if v := os.Getenv("DISAMIA_MODEL"); v != "" {
		c.Ollama.Model = v
	}
	if v := os.Getenv("DISAMIA_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("DISAMIA_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("DISAMIA_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("DISAMIA_KNOWLEDGE_WATCH"); v != "" {
		c.Knowledge.Watch = parseBool(v)
	}
	if v := os.Getenv("DISAMIA_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DISAMIA_ADMIN_TOKEN_HASH"); v != "" {
		c.Server.AdminTokenHash = v
	}
	if v := os.Getenv("DISAMIA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DISAMIA_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// normalizeOllamaHost turns OLLAMA_HOST forms like "0.0.0.0:11434" into a URL.
func normalizeOllamaHost(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	host = strings.Replace(host, "0.0.0.0", "127.0.0.1", 1)
	if !strings.Contains(host, ":") {
		host += ":11434"
	}
	return "http://" + host
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ollama.model").
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
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag is name.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
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
			field.SetBool(parseBool(strVal))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
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

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}
