package vocabulary

import (
	"context"
	"time"

	"github.com/hyperjump/mitate/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultSize is the number of visual words used for Caltech-style corpora.
	DefaultSize = 500
	// DefaultMaxIterations bounds the Lloyd iterations.
	DefaultMaxIterations = 10
	// DefaultEpsilon stops iteration once no centroid moves this far.
	DefaultEpsilon = 1.0
)

// Init selects how initial centroids are chosen.
type Init string

const (
	// InitFarthest picks a seeded random first centroid, then repeatedly the point
	// farthest from every centroid chosen so far.
	InitFarthest Init = "farthest"
	// InitRandom picks k distinct corpus points by seeded random permutation.
	InitRandom Init = "random"
)

// Builder clusters descriptor corpora into vocabularies. A Builder is stateless
// between calls and deterministic for a fixed seed.
type Builder struct {
	seed          int64
	maxIterations int
	epsilon       float64
	init          Init
	logger        *zap.Logger // optional
}

// Option configures a Builder.
type Option func(*Builder)

// WithSeed sets the random seed used for initialization.
func WithSeed(seed int64) Option {
	return func(b *Builder) { b.seed = seed }
}

// WithMaxIterations bounds the number of Lloyd iterations. Values <= 0 are ignored.
func WithMaxIterations(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxIterations = n
		}
	}
}

// WithEpsilon sets the convergence threshold on the largest centroid shift.
// Iteration stops once the shift is below epsilon; at zero it stops when no centroid
// moves. Negative values are treated as zero.
func WithEpsilon(eps float64) Option {
	return func(b *Builder) {
		if eps < 0 {
			eps = 0
		}
		b.epsilon = eps
	}
}

// WithInit selects the initialization strategy. Unknown values fall back to InitFarthest.
func WithInit(init Init) Option {
	return func(b *Builder) {
		switch init {
		case InitFarthest, InitRandom:
			b.init = init
		default:
			b.init = InitFarthest
		}
	}
}

// WithLogger sets a logger for per-iteration debug output.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a builder with the default iteration bound and epsilon.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		seed:          1,
		maxIterations: DefaultMaxIterations,
		epsilon:       DefaultEpsilon,
		init:          InitFarthest,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result is a trained vocabulary plus clustering diagnostics.
type Result struct {
	Vocabulary *Vocabulary
	// Iterations is the number of Lloyd iterations run.
	Iterations int
	// Converged is true when the largest centroid shift fell below epsilon.
	Converged bool
	// Shift is the largest centroid movement in the last iteration.
	Shift float64
	// Inertia is the sum of squared distances from each vector to its nearest word.
	Inertia float64
	// Reseeded counts empty clusters that were re-seeded across all iterations.
	Reseeded int
}

// Build partitions corpus into k clusters and returns their centroids as a vocabulary.
// Cluster assignments are discarded.
func (b *Builder) Build(ctx context.Context, corpus []models.FeatureVector, k int) (*Vocabulary, error) {
	res, err := b.Train(ctx, corpus, k)
	if err != nil {
		return nil, err
	}
	return res.Vocabulary, nil
}

// Train is Build with diagnostics. It fails with *models.BuildError when the corpus
// is empty, k is not in [1, len(corpus)], or the corpus has ragged dimensions.
// ctx is checked before every iteration.
func (b *Builder) Train(ctx context.Context, corpus []models.FeatureVector, k int) (*Result, error) {
	dim, err := validateCorpus(corpus, k)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	km := newKMeans(corpus, dim, k, b.seed)
	switch b.init {
	case InitRandom:
		km.initRandom()
	default:
		km.initFarthest()
	}

	res := &Result{}
	for iter := 1; iter <= b.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		km.assign()
		shift, reseeded := km.update()
		res.Iterations = iter
		res.Shift = shift
		res.Reseeded += reseeded
		if b.logger != nil {
			b.logger.Debug("k-means iteration",
				zap.Int("iteration", iter),
				zap.Float64("max_shift", shift),
				zap.Int("reseeded", reseeded),
			)
		}
		if shift < b.epsilon || shift == 0 {
			res.Converged = true
			break
		}
	}
	res.Inertia = km.assign()
	res.Vocabulary = &Vocabulary{dimensions: dim, words: km.centroids}

	if b.logger != nil {
		b.logger.Info("vocabulary built",
			zap.Int("k", k),
			zap.Int("corpus", len(corpus)),
			zap.Int("iterations", res.Iterations),
			zap.Bool("converged", res.Converged),
			zap.Float64("inertia", res.Inertia),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return res, nil
}

func validateCorpus(corpus []models.FeatureVector, k int) (int, error) {
	if len(corpus) == 0 {
		return 0, &models.BuildError{K: k, Err: models.ErrEmptyCorpus}
	}
	if k <= 0 || k > len(corpus) {
		return 0, &models.BuildError{K: k, Corpus: len(corpus), Err: models.ErrInvalidK}
	}
	dim := len(corpus[0])
	for _, v := range corpus {
		if dim == 0 || len(v) != dim {
			return 0, &models.BuildError{K: k, Corpus: len(corpus), Err: models.ErrDimensionMismatch}
		}
	}
	return dim, nil
}
