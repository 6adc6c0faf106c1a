package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
reference:
  objects_path: "/data/objects.txt"
  dimension: 64
vocabulary:
  size: 200
  epsilon: 0.01
  init: random
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Reference.ObjectsPath != "/data/objects.txt" {
		t.Errorf("objects_path = %s", cfg.Reference.ObjectsPath)
	}
	if cfg.Reference.Dimension != 64 {
		t.Errorf("dimension = %d, want 64", cfg.Reference.Dimension)
	}
	if cfg.Vocabulary.Size != 200 || cfg.Vocabulary.Epsilon != 0.01 || cfg.Vocabulary.Init != "random" {
		t.Errorf("unexpected vocabulary config: %+v", cfg.Vocabulary)
	}
	if cfg.Vocabulary.MaxIterations != 10 {
		t.Errorf("max_iterations should default to 10, got %d", cfg.Vocabulary.MaxIterations)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [1, 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
reference:
  objects_path: "./ref/objects.txt"
  descriptors_path: "./ref/descriptors.txt"
vocabulary:
  path: "./vocab.txt"
watch:
  directories: ["./inbox"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "ref", "objects.txt"); cfg.Reference.ObjectsPath != want {
		t.Errorf("objects_path = %s, want %s", cfg.Reference.ObjectsPath, want)
	}
	if want := filepath.Join(dir, "ref", "descriptors.txt"); cfg.Reference.DescriptorsPath != want {
		t.Errorf("descriptors_path = %s, want %s", cfg.Reference.DescriptorsPath, want)
	}
	if want := filepath.Join(dir, "vocab.txt"); cfg.Vocabulary.Path != want {
		t.Errorf("vocabulary path = %s, want %s", cfg.Vocabulary.Path, want)
	}
	if len(cfg.Watch.Directories) != 1 || cfg.Watch.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("watch directories = %v", cfg.Watch.Directories)
	}
	if cfg.Histogram.OutputPath != "" {
		t.Errorf("unset output_path should stay empty, got %q", cfg.Histogram.OutputPath)
	}
}

func TestExpandPath_home(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/mitate/vocab.txt", "/etc"); got != filepath.Join(home, "mitate", "vocab.txt") {
		t.Errorf("expandPath(~/...) = %s", got)
	}
	if got := expandPath("/abs/path", "/etc"); got != "/abs/path" {
		t.Errorf("absolute path changed: %s", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Reference.Dimension != 128 {
		t.Errorf("default dimension: got %d", cfg.Reference.Dimension)
	}
	if cfg.Reference.MinVotes != 50 {
		t.Errorf("default min_votes: got %d", cfg.Reference.MinVotes)
	}
	if cfg.Vocabulary.Size != 500 || cfg.Vocabulary.MaxIterations != 10 || cfg.Vocabulary.Epsilon != 1.0 {
		t.Errorf("vocabulary defaults: got %+v", cfg.Vocabulary)
	}
	if cfg.Vocabulary.Init != "farthest" {
		t.Errorf("default init: got %s", cfg.Vocabulary.Init)
	}
	if cfg.Histogram.IndexType != "kdtree" {
		t.Errorf("default index type: got %s", cfg.Histogram.IndexType)
	}
	if len(cfg.Descriptors.Extensions) != 2 || cfg.Descriptors.Extensions[0] != ".desc" {
		t.Errorf("descriptor extensions: got %v", cfg.Descriptors.Extensions)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.Search.MaxLimit != 100 {
		t.Errorf("search limits: got %+v", cfg.Search)
	}
	if cfg.Watch.DebounceMS != 400 {
		t.Errorf("debounce: got %d", cfg.Watch.DebounceMS)
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_false", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
	t.Run("true_returns_true", func(t *testing.T) {
		v := true
		w := &WatchConfig{Recursive: &v}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:    ServerConfig{Host: "localhost", Port: 9090},
		Reference: ReferenceConfig{ObjectsPath: "/tmp/objects.txt", Dimension: 4},
		Watch:     WatchConfig{Directories: []string{"/tmp/inbox"}},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Reference.Dimension != 4 {
		t.Errorf("loaded dimension: got %d", loaded.Reference.Dimension)
	}
	if len(loaded.Watch.Directories) != 1 || loaded.Watch.Directories[0] != "/tmp/inbox" {
		t.Errorf("loaded watch directories: %v", loaded.Watch.Directories)
	}
}
