package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/mitate/internal/classifier"
	"github.com/hyperjump/mitate/internal/cli"
	"github.com/hyperjump/mitate/internal/config"
	"github.com/hyperjump/mitate/internal/descriptor"
	"github.com/hyperjump/mitate/internal/fileid"
	"github.com/hyperjump/mitate/internal/histogram"
	"github.com/hyperjump/mitate/internal/keyword"
	"github.com/hyperjump/mitate/internal/server"
	"github.com/hyperjump/mitate/internal/vocabulary"
	"github.com/hyperjump/mitate/internal/watcher"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// inboxCacheSize bounds the number of inbox results remembered by content.
const inboxCacheSize = 256

// resultSuffix is appended to an inbox query file's path to name its result.
const resultSuffix = ".result.json"

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, logger := setup(*configPath, *debug)
	defer logger.Sync()

	cls, err := loadClassifier(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to load reference database", zap.Error(err))
	}

	names, err := keyword.NewCatalogIndex(cls.Catalog())
	if err != nil {
		logger.Fatal("Failed to index object names", zap.Error(err))
	}
	defer names.Close()

	opts := []server.Option{server.WithCatalogIndex(names)}
	q, err := loadQuantizer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to load vocabulary", zap.Error(err))
	}
	if q != nil {
		opts = append(opts, server.WithQuantizer(q))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := &inboxHandler{
		det:    descriptor.NewFileDetector(cfg.Reference.Dimension),
		cls:    cls,
		cache:  classifier.NewResultCache(inboxCacheSize),
		logger: logger,
	}
	inbox := watcher.NewInbox(cfg.Watch.Directories, cfg.Descriptors.Extensions,
		func(path string) { h.handle(ctx, path) },
		watcher.WithLogger(logger),
		watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS)*time.Millisecond),
		watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
	)
	opts = append(opts, server.WithInbox(inbox, resolved))
	srv := server.NewServer(cls, cfg, logger, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return inbox.Run(gctx) })
	inbox.HandleExisting()

	if err := g.Wait(); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// loadQuantizer builds a quantizer from the configured vocabulary file. It returns
// nil without error when no vocabulary file exists yet.
func loadQuantizer(cfg *config.Config, logger *zap.Logger) (*histogram.Quantizer, error) {
	if cfg.Vocabulary.Path == "" {
		return nil, nil
	}
	if _, err := os.Stat(cfg.Vocabulary.Path); errors.Is(err, os.ErrNotExist) {
		logger.Info("No vocabulary file, quantization disabled", zap.String("path", cfg.Vocabulary.Path))
		return nil, nil
	}
	vocab, err := vocabulary.ReadFile(cfg.Vocabulary.Path)
	if err != nil {
		return nil, err
	}
	return histogram.NewQuantizer(vocab,
		histogram.WithIndexType(cfg.Histogram.IndexType),
		histogram.WithLogger(logger),
	)
}

// inboxHandler classifies descriptor files dropped into inbox directories and
// writes each JSON result next to its query. Results are cached by file content.
type inboxHandler struct {
	det    descriptor.Detector
	cls    *classifier.Classifier
	cache  *classifier.ResultCache
	logger *zap.Logger
}

func (h *inboxHandler) handle(ctx context.Context, path string) {
	key, err := fileid.FileContentID(path)
	if err != nil {
		h.logger.Warn("inbox query unreadable", zap.String("path", path), zap.Error(err))
		return
	}
	res, cached := h.cache.Get(key)
	if !cached {
		res, err = classifyFile(ctx, h.det, h.cls, path)
		if err != nil {
			h.logger.Warn("inbox query failed", zap.String("path", path), zap.Error(err))
			return
		}
		h.cache.Put(key, res)
	}
	out := path + resultSuffix
	if err := writeResultFile(out, cli.NewClassification(path, res)); err != nil {
		h.logger.Error("write inbox result failed", zap.String("path", out), zap.Error(err))
		return
	}
	h.logger.Info("inbox query classified",
		zap.String("path", path),
		zap.Int("object_id", int(res.ObjectID)),
		zap.String("name", res.Name),
		zap.Int("votes", res.MaxVotes),
		zap.Bool("accepted", res.Accepted()),
		zap.Bool("cached", cached),
	)
}

func classifyFile(ctx context.Context, det descriptor.Detector, cls *classifier.Classifier, path string) (*classifier.Result, error) {
	descs, err := det.Detect(ctx, path)
	if err != nil {
		return nil, err
	}
	return cls.Classify(ctx, descs)
}

func writeResultFile(path string, c *cli.Classification) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result: %w", err)
	}
	if err := cli.WriteClassification(f, c, cli.OutputJSON); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
