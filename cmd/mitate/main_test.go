package main

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/mitate/internal/classifier"
	"github.com/hyperjump/mitate/internal/config"
	"github.com/hyperjump/mitate/internal/descriptor"
	"github.com/hyperjump/mitate/internal/histogram"
	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/refdb"
	"github.com/hyperjump/mitate/internal/server"
	"github.com/hyperjump/mitate/internal/vocabulary"
	"github.com/hyperjump/mitate/internal/watcher"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"empty", []string{}, []string{}},
		{"flags first", []string{"--format", "json", "q.desc"}, []string{"--format", "json", "q.desc"}},
		{"flags after file", []string{"q.desc", "--format", "json"}, []string{"--format", "json", "q.desc"}},
		{"flags after several files", []string{"a.desc", "b.desc", "--server", "http://x"}, []string{"--server", "http://x", "a.desc", "b.desc"}},
		{"no flags", []string{"red", "mug"}, []string{"red", "mug"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("argsReorder(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"mug"}, "mug"},
		{[]string{"red", "mug"}, "red mug"},
		{[]string{" red mug "}, "red mug"},
	}
	for _, tt := range tests {
		if got := buildQuery(tt.args); got != tt.want {
			t.Errorf("buildQuery(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
reference:
  objects_path: "./objects.txt"
  min_votes: 7
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
	if cfg.Reference.MinVotes != 7 {
		t.Errorf("min_votes = %d, want 7", cfg.Reference.MinVotes)
	}
	if filepath.Base(cfg.Reference.ObjectsPath) != "objects.txt" || !filepath.IsAbs(cfg.Reference.ObjectsPath) {
		t.Errorf("objects_path = %q, want absolute path to objects.txt", cfg.Reference.ObjectsPath)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "mitate.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_defaultsWhenNoFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("default config file exists on this machine")
	}
	chdir(t, t.TempDir())

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved path = %q, want empty", resolved)
	}
	if cfg.Reference.Dimension != 128 || cfg.Reference.MinVotes != 50 {
		t.Errorf("unexpected reference defaults: %+v", cfg.Reference)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// testClassifier loads a two-object, two-dimensional reference database.
func testClassifier(t *testing.T) (*classifier.Classifier, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Reference.ObjectsPath = writeFile(t, dir, "objects.txt", "0\tred mug\n1\tblue car\n")
	cfg.Reference.DescriptorsPath = writeFile(t, dir, "descriptors.txt",
		"0\t1\t0\t0\n0\t1\t0.1\t0\n1\t1\t10\t10\n1\t1\t10\t9.9\n")
	cfg.Reference.Dimension = 2
	cfg.Reference.MinVotes = 2
	cls, err := loadClassifier(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("loadClassifier: %v", err)
	}
	return cls, cfg
}

const carQuery = "1\t0.2\t0\n1\t9.8\t10\n1\t10\t10.1\n"

func newInboxHandler(cls *classifier.Classifier) *inboxHandler {
	return &inboxHandler{
		det:    descriptor.NewFileDetector(2),
		cls:    cls,
		cache:  classifier.NewResultCache(4),
		logger: zap.NewNop(),
	}
}

func TestInboxHandler_writesResult(t *testing.T) {
	cls, _ := testClassifier(t)
	query := writeFile(t, t.TempDir(), "q.desc", carQuery)

	newInboxHandler(cls).handle(context.Background(), query)

	data, err := os.ReadFile(query + resultSuffix)
	if err != nil {
		t.Fatalf("result file: %v", err)
	}
	var got struct {
		Query    string `json:"query"`
		ObjectID int    `json:"object_id"`
		Name     string `json:"name"`
		MaxVotes int    `json:"max_votes"`
		Accepted bool   `json:"accepted"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ObjectID != 1 || got.Name != "blue car" || got.MaxVotes != 2 || !got.Accepted {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.Query != query {
		t.Errorf("query = %q, want %q", got.Query, query)
	}
}

func TestInboxHandler_cachesByContent(t *testing.T) {
	cls, _ := testClassifier(t)
	dir := t.TempDir()
	first := writeFile(t, dir, "first.desc", carQuery)
	second := writeFile(t, dir, "second.desc", carQuery)
	h := newInboxHandler(cls)

	h.handle(context.Background(), first)
	h.handle(context.Background(), second)

	hits, misses := h.cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("cache hits/misses = %d/%d, want 1/1", hits, misses)
	}
	if _, err := os.Stat(second + resultSuffix); err != nil {
		t.Errorf("cached query should still write a result: %v", err)
	}
}

func TestInboxHandler_badFileWritesNothing(t *testing.T) {
	cls, _ := testClassifier(t)
	query := writeFile(t, t.TempDir(), "bad.desc", "1\t0.2\n")

	newInboxHandler(cls).handle(context.Background(), query)

	if _, err := os.Stat(query + resultSuffix); !os.IsNotExist(err) {
		t.Errorf("expected no result file, stat err = %v", err)
	}
}

func TestClassifyViaHTTP(t *testing.T) {
	cls, cfg := testClassifier(t)
	ts := httptest.NewServer(server.NewServer(cls, cfg, nil).Handler())
	defer ts.Close()
	query := writeFile(t, t.TempDir(), "q.desc", carQuery)

	c, err := classifyViaHTTP(context.Background(), ts.URL, descriptor.NewFileDetector(2), query)
	if err != nil {
		t.Fatal(err)
	}
	if c.ObjectID != 1 || c.Name != "blue car" || !c.Accepted {
		t.Errorf("unexpected classification: %+v", c.Result)
	}
	if c.Votes[0] != 1 || c.Votes[1] != 2 {
		t.Errorf("votes = %v, want 0:1 1:2", c.Votes)
	}
	if c.Query != query {
		t.Errorf("query = %q, want %q", c.Query, query)
	}
}

func TestClassifyViaHTTP_serverError(t *testing.T) {
	cls, cfg := testClassifier(t)
	ts := httptest.NewServer(server.NewServer(cls, cfg, nil).Handler())
	defer ts.Close()
	// Three components against a two-dimensional reference database.
	query := writeFile(t, t.TempDir(), "q.desc", "1\t0\t0\t0\n")

	_, err := classifyViaHTTP(context.Background(), ts.URL, descriptor.NewFileDetector(3), query)
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected 400 error, got %v", err)
	}
}

func TestWatchRequest(t *testing.T) {
	cls, cfg := testClassifier(t)
	inbox := watcher.NewInbox(nil, []string{".desc"}, func(string) {})
	ts := httptest.NewServer(server.NewServer(cls, cfg, nil, server.WithInbox(inbox, "")).Handler())
	defer ts.Close()
	ctx := context.Background()
	dir := t.TempDir()

	body := map[string]interface{}{"path": dir, "handle_existing": false}
	if err := watchRequest(ctx, http.MethodPost, ts.URL, "", body, http.StatusCreated, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := watchRequest(ctx, http.MethodGet, ts.URL, "", nil, http.StatusOK, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out.Directories) != 1 || out.Directories[0] != dir {
		t.Errorf("directories = %v, want [%s]", out.Directories, dir)
	}
	if err := watchRequest(ctx, http.MethodDelete, ts.URL, "?path="+url.QueryEscape(dir), nil, http.StatusOK, nil); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := inbox.Directories(); len(got) != 0 {
		t.Errorf("directories after remove = %v", got)
	}

	missing := map[string]interface{}{"path": filepath.Join(dir, "missing")}
	err := watchRequest(ctx, http.MethodPost, ts.URL, "", missing, http.StatusCreated, nil)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 for missing directory, got %v", err)
	}
}

func TestBuildVocabularyAndWriteHistograms(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.desc", "1\t0\t0\n1\t0.1\t0\n1\t10\t10\n")
	writeFile(t, root, "sub/b.desc", "-1\t10\t10.1\n-1\t9.9\t10\n")
	writeFile(t, root, "notes.txt", "ignored")

	ctx := context.Background()
	images, err := descriptor.Collect(ctx, descriptor.NewFileDetector(2), root, []string{".desc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 2 {
		t.Fatalf("collected %d images, want 2", len(images))
	}

	vocabPath := filepath.Join(t.TempDir(), "vocab.txt")
	res, err := buildVocabulary(ctx, vocabulary.NewBuilder(vocabulary.WithSeed(1)), images, 2, vocabPath)
	if err != nil {
		t.Fatal(err)
	}
	if res.Vocabulary.Size() != 2 {
		t.Fatalf("vocabulary size = %d, want 2", res.Vocabulary.Size())
	}
	vocab, err := vocabulary.ReadFile(vocabPath)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(vocab.Words(), res.Vocabulary.Words()) {
		t.Errorf("written vocabulary differs: %v vs %v", vocab.Words(), res.Vocabulary.Words())
	}

	q, err := histogram.NewQuantizer(vocab)
	if err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	n, err := writeHistograms(&sb, q, images)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("wrote %d rows, want 2", n)
	}
	rows, err := histogram.ReadHistograms(strings.NewReader(sb.String()), "out")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != "a.desc" || rows[1].ID != "sub/b.desc" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	for _, r := range rows {
		if math.Abs(r.Histogram.Sum()-1) > 1e-9 {
			t.Errorf("%s sums to %v, want 1", r.ID, r.Histogram.Sum())
		}
	}
	// b.desc has both descriptors near (10, 10): one full bin.
	b := rows[1].Histogram
	if !(b[0] == 1 && b[1] == 0) && !(b[0] == 0 && b[1] == 1) {
		t.Errorf("b.desc histogram = %v, want a single full bin", b)
	}
}

func TestWriteHistogramFile(t *testing.T) {
	vocab, err := vocabulary.New([][]float64{{0, 0}, {10, 10}})
	if err != nil {
		t.Fatal(err)
	}
	q, err := histogram.NewQuantizer(vocab)
	if err != nil {
		t.Fatal(err)
	}
	good := descriptor.Image{ID: "a.desc", Descriptors: []models.Descriptor{{Vector: models.FeatureVector{1, 1}}}}
	bad := descriptor.Image{ID: "b.desc", Descriptors: []models.Descriptor{{Vector: models.FeatureVector{1, 1, 1}}}}
	dir := t.TempDir()

	out := filepath.Join(dir, "ok.txt")
	n, err := writeHistogramFile(out, q, []descriptor.Image{good})
	if err != nil || n != 1 {
		t.Fatalf("writeHistogramFile = %d, %v", n, err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a.desc\t1\t0\n" {
		t.Errorf("output = %q", data)
	}

	partial := filepath.Join(dir, "partial.txt")
	if _, err := writeHistogramFile(partial, q, []descriptor.Image{good, bad}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Errorf("partial output should be removed, stat err = %v", err)
	}
}

func TestBuildVocabulary_tooFewDescriptors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.desc", "1\t0\t0\n")
	images, err := descriptor.Collect(context.Background(), descriptor.NewFileDetector(2), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	vocabPath := filepath.Join(t.TempDir(), "vocab.txt")
	if _, err := buildVocabulary(context.Background(), vocabulary.NewBuilder(), images, 3, vocabPath); err == nil {
		t.Fatal("expected error for k larger than corpus")
	}
	if _, err := os.Stat(vocabPath); !os.IsNotExist(err) {
		t.Error("no vocabulary file should be written on failure")
	}
}

func TestFindObjects(t *testing.T) {
	path := writeFile(t, t.TempDir(), "objects.txt", "2\tgreen bottle\n0\tred mug\n1\tblue car\n")
	catalog, err := refdb.LoadCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	t.Run("empty query lists all in id order", func(t *testing.T) {
		lines, _, err := findObjects(ctx, catalog, "", 10, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(lines) != 3 || lines[0].Name != "red mug" || lines[2].Name != "green bottle" {
			t.Errorf("unexpected listing: %+v", lines)
		}
	})

	t.Run("search by name", func(t *testing.T) {
		lines, _, err := findObjects(ctx, catalog, "mug", 10, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(lines) != 1 || lines[0].ID != 0 {
			t.Errorf("unexpected hits: %+v", lines)
		}
	})

	t.Run("fuzzy search", func(t *testing.T) {
		lines, _, err := findObjects(ctx, catalog, "botle", 10, true)
		if err != nil {
			t.Fatal(err)
		}
		if len(lines) == 0 || lines[0].ID != 2 {
			t.Errorf("unexpected fuzzy hits: %+v", lines)
		}
	})

	t.Run("no hits returns suggestions", func(t *testing.T) {
		lines, suggestions, err := findObjects(ctx, catalog, "mugg", 10, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(lines) != 0 {
			t.Errorf("expected no hits, got %+v", lines)
		}
		if len(suggestions) == 0 || suggestions[0].Term != "mug" {
			t.Errorf("suggestions = %+v, want mug first", suggestions)
		}
	})
}
