package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/mitate/internal/cli"
	"github.com/hyperjump/mitate/internal/descriptor"
	"github.com/hyperjump/mitate/internal/keyword"
	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/refdb"
	"go.uber.org/zap"
)

func runClassify() {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	format := fs.String("format", "text", "output format: text, compact, or json")
	serverURL := fs.String("server", "", "server URL (empty = classify locally)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: mitate classify [flags] <descriptor-file...>")
		os.Exit(1)
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()

	ctx := context.Background()
	det := descriptor.NewFileDetector(cfg.Reference.Dimension)

	if *serverURL != "" {
		failed := false
		for _, path := range fs.Args() {
			c, err := classifyViaHTTP(ctx, *serverURL, det, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				failed = true
				continue
			}
			_ = cli.WriteClassification(os.Stdout, c, outFormat)
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	start := time.Now()
	cls, err := loadClassifier(cfg, logger)
	if err != nil {
		fmt.Printf("Failed to load reference database: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("classifier ready", zap.Duration("elapsed", time.Since(start)))

	failed := false
	for _, path := range fs.Args() {
		res, err := classifyFile(ctx, det, cls, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		_ = cli.WriteClassification(os.Stdout, cli.NewClassification(path, res), outFormat)
	}
	if failed {
		os.Exit(1)
	}
}

// classifyViaHTTP reads the query locally and sends its descriptors to a running server.
func classifyViaHTTP(ctx context.Context, serverURL string, det descriptor.Detector, path string) (*cli.Classification, error) {
	descs, err := det.Detect(ctx, path)
	if err != nil {
		return nil, err
	}
	if descs == nil {
		descs = []models.Descriptor{}
	}
	body, err := json.Marshal(map[string]interface{}{"descriptors": descs})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var c cli.Classification
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if c.Result == nil {
		return nil, fmt.Errorf("decode response: missing result")
	}
	c.Query = path
	return &c, nil
}

func runObjects() {
	fs := flag.NewFlagSet("objects", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("format", "text", "output format: text or json")
	fuzzy := fs.Bool("fuzzy", false, "typo-tolerant name search")
	limit := fs.Int("limit", 0, "number of results (0 = config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	catalog, err := refdb.LoadCatalog(cfg.Reference.ObjectsPath)
	if err != nil {
		fmt.Printf("Failed to load objects: %v\n", err)
		os.Exit(1)
	}
	n := cfg.Search.DefaultLimit
	if *limit > 0 {
		n = *limit
	}
	if n > cfg.Search.MaxLimit {
		n = cfg.Search.MaxLimit
	}
	lines, suggestions, err := findObjects(context.Background(), catalog, buildQuery(fs.Args()), n, *fuzzy || cfg.Search.Fuzzy)
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteObjects(os.Stdout, lines, outFormat); err != nil {
		fmt.Printf("Write failed: %v\n", err)
		os.Exit(1)
	}
	if len(lines) == 0 && len(suggestions) > 0 && outFormat != cli.OutputJSON {
		fmt.Print("No objects found. Did you mean:")
		for _, s := range suggestions {
			fmt.Printf(" %s", s.Term)
		}
		fmt.Println()
	}
}

// findObjects lists the whole catalog when query is empty, otherwise searches
// object names. Suggestions are returned only when a search finds nothing.
func findObjects(ctx context.Context, catalog *refdb.Catalog, query string, limit int, fuzzy bool) ([]cli.ObjectLine, []keyword.Suggestion, error) {
	if query == "" {
		ids := catalog.IDs()
		lines := make([]cli.ObjectLine, len(ids))
		for i, id := range ids {
			name, _ := catalog.Name(id)
			lines[i] = cli.ObjectLine{ID: id, Name: name}
		}
		return lines, nil, nil
	}
	idx, err := keyword.NewCatalogIndex(catalog)
	if err != nil {
		return nil, nil, err
	}
	defer idx.Close()
	results, err := idx.Search(ctx, query, limit, &keyword.SearchOptions{FuzzyEnabled: fuzzy})
	if err != nil {
		return nil, nil, err
	}
	lines := make([]cli.ObjectLine, len(results))
	for i, r := range results {
		lines[i] = cli.ObjectLine{ID: r.ID, Name: r.Name, Score: r.Score}
	}
	if len(lines) > 0 {
		return lines, nil, nil
	}
	suggestions, err := idx.Suggest(query, 2, 5)
	if err != nil {
		return lines, nil, nil
	}
	return lines, suggestions, nil
}

// statusResponse mirrors GET /api/v1/status.
type statusResponse struct {
	Objects              int                    `json:"objects"`
	ReferenceDescriptors int                    `json:"reference_descriptors"`
	Dimensions           int                    `json:"dimensions"`
	Classified           int64                  `json:"classified"`
	UptimeSeconds        int64                  `json:"uptime_seconds"`
	Config               map[string]interface{} `json:"config,omitempty"`
	WatchDirectories     []string               `json:"watch_directories,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	fmt.Printf("Objects:                %d\n", status.Objects)
	fmt.Printf("Reference descriptors:  %d\n", status.ReferenceDescriptors)
	fmt.Printf("Dimensions:             %d\n", status.Dimensions)
	fmt.Printf("Queries classified:     %d\n", status.Classified)
	fmt.Printf("Uptime:                 %s\n", time.Duration(status.UptimeSeconds)*time.Second)
	if size, ok := status.Config["vocabulary_size"]; ok {
		fmt.Printf("Vocabulary words:       %v\n", size)
	}
	for _, d := range status.WatchDirectories {
		fmt.Printf("Inbox:                  %s\n", d)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: mitate watch <add|remove|list> [path]")
		fmt.Println("  mitate watch add <path>     Add a query inbox directory")
		fmt.Println("  mitate watch remove <path>  Remove a query inbox directory")
		fmt.Println("  mitate watch list           List query inbox directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	existing := fs.Bool("existing", true, "classify files already in the directory")
	_ = fs.Parse(argsReorder(os.Args[3:]))

	if (sub == "add" || sub == "remove") && fs.NArg() < 1 {
		fmt.Printf("Usage: mitate watch %s <path>\n", sub)
		os.Exit(1)
	}
	ctx := context.Background()
	switch sub {
	case "add":
		path, _ := filepath.Abs(fs.Arg(0))
		body := map[string]interface{}{"path": path, "handle_existing": *existing}
		if err := watchRequest(ctx, http.MethodPost, *serverURL, "", body, http.StatusCreated, nil); err != nil {
			fmt.Printf("Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		path, _ := filepath.Abs(fs.Arg(0))
		if err := watchRequest(ctx, http.MethodDelete, *serverURL, "?path="+url.QueryEscape(path), nil, http.StatusOK, nil); err != nil {
			fmt.Printf("Remove failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := watchRequest(ctx, http.MethodGet, *serverURL, "", nil, http.StatusOK, &out); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// watchRequest calls the inbox directory endpoint. body, when set, is sent as JSON;
// out, when set, receives the decoded response.
func watchRequest(ctx context.Context, method, serverURL, query string, body interface{}, want int, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, serverURL+"/api/v1/watch/directories"+query, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
