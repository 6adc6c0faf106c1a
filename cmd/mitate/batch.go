package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hyperjump/mitate/internal/descriptor"
	"github.com/hyperjump/mitate/internal/histogram"
	"github.com/hyperjump/mitate/internal/vocabulary"
	"go.uber.org/zap"
)

func runVocab() {
	fs := flag.NewFlagSet("vocab", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	k := fs.Int("k", 0, "vocabulary size (0 = config)")
	iterations := fs.Int("iterations", 0, "maximum k-means iterations (0 = config)")
	epsilon := fs.Float64("epsilon", -1, "convergence threshold (negative = config)")
	seed := fs.Int64("seed", 0, "random seed (0 = config)")
	initMode := fs.String("init", "", "initialization: farthest or random (empty = config)")
	out := fs.String("out", "", "vocabulary output path (empty = config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: mitate vocab [flags] <descriptor-directory>")
		os.Exit(1)
	}
	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()

	vc := cfg.Vocabulary
	if *k > 0 {
		vc.Size = *k
	}
	if *iterations > 0 {
		vc.MaxIterations = *iterations
	}
	if *epsilon >= 0 {
		vc.Epsilon = *epsilon
	}
	if *seed != 0 {
		vc.Seed = *seed
	}
	if *initMode != "" {
		vc.Init = *initMode
	}
	if *out != "" {
		vc.Path = *out
	}
	if vc.Path == "" {
		fmt.Println("No vocabulary output path: set --out or vocabulary.path")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det := descriptor.NewFileDetector(cfg.Reference.Dimension)
	images, err := descriptor.Collect(ctx, det, fs.Arg(0), cfg.Descriptors.Extensions)
	if err != nil {
		fmt.Printf("Failed to read descriptors: %v\n", err)
		os.Exit(1)
	}
	builder := vocabulary.NewBuilder(
		vocabulary.WithSeed(vc.Seed),
		vocabulary.WithMaxIterations(vc.MaxIterations),
		vocabulary.WithEpsilon(vc.Epsilon),
		vocabulary.WithInit(vocabulary.Init(vc.Init)),
		vocabulary.WithLogger(logger),
	)
	res, err := buildVocabulary(ctx, builder, images, vc.Size, vc.Path)
	if err != nil {
		fmt.Printf("Failed to build vocabulary: %v\n", err)
		os.Exit(1)
	}
	logger.Info("vocabulary written",
		zap.String("path", vc.Path),
		zap.Int("images", len(images)),
		zap.Int("words", res.Vocabulary.Size()),
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged),
		zap.Float64("inertia", res.Inertia),
	)
	fmt.Printf("Wrote %d words to %s (%d iterations, converged: %v)\n",
		res.Vocabulary.Size(), vc.Path, res.Iterations, res.Converged)
}

// buildVocabulary clusters every descriptor in images into k words and writes them to path.
func buildVocabulary(ctx context.Context, b *vocabulary.Builder, images []descriptor.Image, k int, path string) (*vocabulary.Result, error) {
	res, err := b.Train(ctx, descriptor.Corpus(images), k)
	if err != nil {
		return nil, err
	}
	if err := res.Vocabulary.WriteFile(path); err != nil {
		return nil, err
	}
	return res, nil
}

func runHistogram() {
	fs := flag.NewFlagSet("histogram", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	vocabPath := fs.String("vocab", "", "vocabulary path (empty = config)")
	indexType := fs.String("index", "", "nearest-word index: kdtree or linear (empty = config)")
	out := fs.String("out", "", "output path (empty = stdout or config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: mitate histogram [flags] <descriptor-directory>")
		os.Exit(1)
	}
	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()

	if *vocabPath != "" {
		cfg.Vocabulary.Path = *vocabPath
	}
	if *indexType != "" {
		cfg.Histogram.IndexType = *indexType
	}
	outPath := cfg.Histogram.OutputPath
	if *out != "" {
		outPath = *out
	}

	vocab, err := vocabulary.ReadFile(cfg.Vocabulary.Path)
	if err != nil {
		fmt.Printf("Failed to load vocabulary: %v\n", err)
		os.Exit(1)
	}
	q, err := histogram.NewQuantizer(vocab,
		histogram.WithIndexType(cfg.Histogram.IndexType),
		histogram.WithLogger(logger),
	)
	if err != nil {
		fmt.Printf("Failed to build quantizer: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det := descriptor.NewFileDetector(vocab.Dimensions())
	images, err := descriptor.Collect(ctx, det, fs.Arg(0), cfg.Descriptors.Extensions)
	if err != nil {
		fmt.Printf("Failed to read descriptors: %v\n", err)
		os.Exit(1)
	}

	var n int
	if outPath == "" {
		n, err = writeHistograms(os.Stdout, q, images)
	} else {
		n, err = writeHistogramFile(outPath, q, images)
	}
	if err != nil {
		fmt.Printf("Failed to write histograms: %v\n", err)
		os.Exit(1)
	}
	logger.Info("histograms written", zap.Int("images", n), zap.Int("bins", q.Size()), zap.String("out", outPath))
}

// writeHistogramFile writes the histograms of images to path. On failure the
// partial file is removed.
func writeHistogramFile(path string, q *histogram.Quantizer, images []descriptor.Image) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	n, err := writeHistograms(f, q, images)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

// writeHistograms quantizes each image and writes one row per image to w.
// It returns the number of rows written.
func writeHistograms(w io.Writer, q *histogram.Quantizer, images []descriptor.Image) (int, error) {
	hw := histogram.NewWriter(w)
	for _, img := range images {
		h, err := q.QuantizeImage(img.ID, img.Vectors())
		if err != nil {
			return hw.Count(), err
		}
		if err := hw.WriteHistogram(img.ID, h); err != nil {
			return hw.Count(), err
		}
	}
	if err := hw.Flush(); err != nil {
		return hw.Count(), err
	}
	return hw.Count(), nil
}
