// Package config handles Kira configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/kira/config.yaml, /etc/kira/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "kira", "config.yaml"))
	}

	paths = append(paths, "/etc/kira/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Kira configuration.
type Config struct {
	Listen      ListenConfig     `yaml:"listen"`
	Providers   []ProviderConfig `yaml:"providers"`
	Embeddings  EmbeddingsConfig `yaml:"embeddings"`
	Memory      MemoryConfig     `yaml:"memory"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Maintenance MaintConfig      `yaml:"maintenance"`
	DataDir     string           `yaml:"data_dir"`
	PersonaFile string           `yaml:"persona_file"`
	LogLevel    string           `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ProviderConfig defines a single LLM backend. Backends are tried in
// descending priority order when a chat call fails over.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // openai, anthropic, ollama
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Priority int    `yaml:"priority"`

	// Models maps a model class (fast, balanced, quality) to the
	// concrete model name this backend serves for that class.
	Models map[string]string `yaml:"models"`
}

// EmbeddingsConfig defines embedding generation settings.
type EmbeddingsConfig struct {
	BaseURL string `yaml:"base_url"` // Ollama-compatible embed endpoint
	Model   string `yaml:"model"`    // e.g. nomic-embed-text
}

// MemoryConfig defines long-term memory storage settings.
type MemoryConfig struct {
	Backend string `yaml:"backend"` // "json" or "sqlite"
	Path    string `yaml:"path"`    // file path (defaults under data_dir)
	// TauDays is the decay time constant in days. Nodes idle longer than
	// 2*tau with importance below 0.7 are removed by maintenance.
	TauDays float64 `yaml:"tau_days"`
}

// PipelineConfig tunes the response pipeline.
type PipelineConfig struct {
	// MaxReEdits caps the re-edit loop when a draft fails rating.
	MaxReEdits int `yaml:"max_re_edits"`
	// SummaryEvery refreshes the rolling conversation summary after
	// this many turns.
	SummaryEvery int `yaml:"summary_every"`
	// RateSample is the fraction of turns sampled for offline LLM
	// rating (analytics only, never gating).
	RateSample float64 `yaml:"rate_sample"`
}

// MaintConfig schedules the decay/rehearsal maintenance job.
type MaintConfig struct {
	// Cron is a standard 5-field cron spec. Default: "0 3 * * *".
	Cron string `yaml:"cron"`
}

// Load reads configuration from a YAML file. Environment variables in
// the file (e.g. ${ANTHROPIC_API_KEY}) are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8080},
		DataDir: "data",
		Memory: MemoryConfig{
			Backend: "json",
			TauDays: 30,
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: "http://localhost:11434",
			Model:   "nomic-embed-text",
		},
		Pipeline: PipelineConfig{
			MaxReEdits:   2,
			SummaryEvery: 15,
			RateSample:   0.1,
		},
		Maintenance: MaintConfig{Cron: "0 3 * * *"},
	}
}

// MemoryPath resolves the memory store path, defaulting under DataDir
// with an extension matching the backend.
func (c *Config) MemoryPath() string {
	if c.Memory.Path != "" {
		return c.Memory.Path
	}
	ext := "json"
	if c.Memory.Backend == "sqlite" {
		ext = "db"
	}
	return filepath.Join(c.DataDir, "memory."+ext)
}

// Tau returns the decay time constant as a duration.
func (c *Config) Tau() time.Duration {
	days := c.Memory.TauDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days * 24 * float64(time.Hour))
}
