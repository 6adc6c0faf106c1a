// Package main is the mitate CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/mitate/internal/classifier"
	"github.com/hyperjump/mitate/internal/config"
	"github.com/hyperjump/mitate/internal/refdb"
	"github.com/hyperjump/mitate/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mitate/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// When the default path does not exist either, built-in defaults are returned with an
// empty resolved path. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServe()
	case "classify":
		runClassify()
	case "vocab":
		runVocab()
	case "histogram":
		runHistogram()
	case "objects":
		runObjects()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("mitate version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every command.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	cfg.Debug = debugMode
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

// loadClassifier reads the reference database named in cfg.
func loadClassifier(cfg *config.Config, logger *zap.Logger) (*classifier.Classifier, error) {
	db, catalog, err := refdb.Load(cfg.Reference.ObjectsPath, cfg.Reference.DescriptorsPath, cfg.Reference.Dimension)
	if err != nil {
		return nil, err
	}
	logger.Info("reference database loaded",
		zap.Int("objects", catalog.Len()),
		zap.Int("descriptors", db.Len()),
		zap.Int("dimensions", db.Dimensions()),
	)
	opts := []classifier.Option{classifier.WithMinVotes(cfg.Reference.MinVotes)}
	if cfg.Debug {
		opts = append(opts, classifier.WithLogger(logger))
	}
	return classifier.New(db, catalog, opts...)
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument, so "mitate classify q.desc --format json" would
// otherwise leave --format unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printUsage() {
	fmt.Println(`mitate - Local-feature object recognition and visual-word histograms

Usage:
  mitate serve [flags]                 Start the HTTP server and query inbox
  mitate classify [flags] <file...>    Classify descriptor files against the reference database
  mitate vocab [flags] <dir>           Build a visual vocabulary from descriptor files
  mitate histogram [flags] <dir>       Write one visual-word histogram per descriptor file
  mitate objects [flags] [query]       List or search reference objects
  mitate status [flags]                Show server status
  mitate watch <add|remove|list> [path]  Manage query inbox directories on a running server
  mitate version                       Show version
  mitate help                          Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/mitate/config.yaml)
  --debug            Enable debug logging

Classify Flags:
  --format string    Output format: text, compact, or json (default: text)
  --server string    Server URL; empty classifies locally (default: "")

Vocab Flags:
  --k int            Vocabulary size (default from config, 500)
  --iterations int   Maximum k-means iterations (default from config, 10)
  --epsilon float    Stop when no centroid moves further than this (default from config, 1.0)
  --seed int         Random seed (default from config, 1)
  --init string      Initialization: farthest or random
  --out string       Vocabulary output path (default from config)

Histogram Flags:
  --vocab string     Vocabulary path (default from config)
  --index string     Nearest-word index: kdtree or linear
  --out string       Output path; empty writes to stdout

Objects Flags:
  --fuzzy            Typo-tolerant name search
  --limit int        Number of results (default from config, 10)
  --format string    Output format: text or json

Status Flags:
  --server string    Server URL (default: http://localhost:8080)

Descriptor files hold one descriptor per line: tag, then the vector components,
tab-separated. Lines starting with '#' are ignored.

Examples:
  mitate serve --debug
  mitate classify --format json query.desc
  mitate vocab --k 500 --out vocab.txt ./corpus
  mitate histogram --vocab vocab.txt ./images > histograms.txt
  mitate objects mug`)
}
