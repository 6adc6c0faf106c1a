// Package config provides configuration loading and structs for the mitate server and batch jobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Reference   ReferenceConfig   `yaml:"reference"`
	Vocabulary  VocabularyConfig  `yaml:"vocabulary"`
	Histogram   HistogramConfig   `yaml:"histogram"`
	Descriptors DescriptorsConfig `yaml:"descriptors"`
	Search      SearchConfig      `yaml:"search"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ReferenceConfig locates the reference database used for recognition.
type ReferenceConfig struct {
	ObjectsPath     string `yaml:"objects_path"`
	DescriptorsPath string `yaml:"descriptors_path"`
	Dimension       int    `yaml:"dimension"`
	// MinVotes is the vote count at which a winner is reported as accepted.
	MinVotes int `yaml:"min_votes"`
}

// VocabularyConfig holds k-means settings and where the vocabulary is stored.
type VocabularyConfig struct {
	Path          string  `yaml:"path"`
	Size          int     `yaml:"size"`
	MaxIterations int     `yaml:"max_iterations"`
	Epsilon       float64 `yaml:"epsilon"`
	Seed          int64   `yaml:"seed"`
	Init          string  `yaml:"init"`
}

// HistogramConfig holds quantization settings.
type HistogramConfig struct {
	IndexType string `yaml:"index_type"`
	// OutputPath receives histogram rows; empty means stdout.
	OutputPath string `yaml:"output_path"`
}

// DescriptorsConfig describes the precomputed descriptor files.
type DescriptorsConfig struct {
	Extensions []string `yaml:"extensions"`
}

// SearchConfig holds object name search settings.
type SearchConfig struct {
	DefaultLimit int  `yaml:"default_limit"`
	MaxLimit     int  `yaml:"max_limit"`
	Fuzzy        bool `yaml:"fuzzy"`
}

// WatchConfig holds query inbox settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
	DebounceMS  int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to false when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return false
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Reference.ObjectsPath = expandPath(cfg.Reference.ObjectsPath, configDir)
	cfg.Reference.DescriptorsPath = expandPath(cfg.Reference.DescriptorsPath, configDir)
	cfg.Vocabulary.Path = expandPath(cfg.Vocabulary.Path, configDir)
	cfg.Histogram.OutputPath = expandPath(cfg.Histogram.OutputPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting inbox directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
