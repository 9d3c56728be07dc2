// Package config loads and persists the assistant configuration from the
// inlay state directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LLMConfig selects the generation backend.
type LLMConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	TimeoutS int    `json:"timeout_seconds"`
}

// PatchConfig tunes the patch manager.
type PatchConfig struct {
	MaxAgeS     int  `json:"max_age_seconds"` // terminal patch GC age
	FlushMS     int  `json:"flush_interval_ms"`
	SortImports bool `json:"sort_imports"`
}

// ConflictConfig tunes the merge engine.
type ConflictConfig struct {
	Enabled    bool `json:"enabled"`     // stage conflicts instead of direct apply
	AutoFollow bool `json:"auto_follow"` // jump to the next conflict after resolving
}

// LintConfig configures the post-injection validator.
type LintConfig struct {
	Command []string `json:"command"` // e.g. ["golangci-lint", "run"]
}

// ServerConfig configures the editor bridge.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// WorkspaceConfig configures companion-file discovery.
type WorkspaceConfig struct {
	Root  string `json:"root"`
	Watch bool   `json:"watch"`
}

// Config is the root configuration object.
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Patches   PatchConfig     `json:"patches"`
	Conflicts ConflictConfig  `json:"conflicts"`
	Lint      LintConfig      `json:"lint"`
	Server    ServerConfig    `json:"server"`
	Workspace WorkspaceConfig `json:"workspace"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LLM:       LLMConfig{Provider: "ollama", Model: "qwen2.5-coder", TimeoutS: 120},
		Patches:   PatchConfig{MaxAgeS: 600, FlushMS: 500, SortImports: true},
		Conflicts: ConflictConfig{Enabled: false, AutoFollow: true},
		Server:    ServerConfig{Addr: "127.0.0.1:7420"},
		Workspace: WorkspaceConfig{Root: ".", Watch: true},
	}
}

// FlushInterval returns the flush tick as a duration.
func (c *Config) FlushInterval() time.Duration {
	if c.Patches.FlushMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Patches.FlushMS) * time.Millisecond
}

// PatchMaxAge returns the terminal-patch GC age as a duration.
func (c *Config) PatchMaxAge() time.Duration {
	if c.Patches.MaxAgeS <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Patches.MaxAgeS) * time.Second
}

// Load reads the config file at path, applying defaults for a missing
// file. A malformed file is an error; silently reverting a user's config
// to defaults hides real mistakes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as indented JSON, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
