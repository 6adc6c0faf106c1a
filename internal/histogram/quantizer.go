// Package histogram quantizes per-image descriptor sets into normalized
// visual-word frequency histograms.
package histogram

import (
	"errors"
	"fmt"

	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/vector"
	"github.com/hyperjump/mitate/internal/vocabulary"
	"go.uber.org/zap"
)

// Histogram has one bin per visual word. Bins sum to 1 for an image with at
// least one descriptor and are all zero otherwise.
type Histogram []float64

// Sum returns the total of all bins.
func (h Histogram) Sum() float64 {
	var s float64
	for _, v := range h {
		s += v
	}
	return s
}

// Quantizer maps descriptors to their nearest visual word. The word index is
// built once and reused for every image; a Quantizer is safe for concurrent use.
type Quantizer struct {
	index  vector.Index
	size   int
	logger *zap.Logger // optional
}

type quantizerOptions struct {
	indexType string
	logger    *zap.Logger
}

// Option configures a Quantizer.
type Option func(*quantizerOptions)

// WithIndexType selects the nearest-word index ("kdtree" or "linear").
func WithIndexType(t string) Option {
	return func(o *quantizerOptions) { o.indexType = t }
}

// WithLogger sets a logger for per-image debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *quantizerOptions) { o.logger = l }
}

// NewQuantizer builds the nearest-word index over vocab.
func NewQuantizer(vocab *vocabulary.Vocabulary, opts ...Option) (*Quantizer, error) {
	o := quantizerOptions{indexType: string(vector.IndexTypeKDTree)}
	for _, opt := range opts {
		opt(&o)
	}
	if vocab.Size() == 0 {
		return nil, &models.QuantizeError{Err: models.ErrEmptyVocabulary}
	}
	index, err := vector.NewIndex(o.indexType, vocab.Words())
	if err != nil {
		return nil, &models.QuantizeError{Err: err}
	}
	return &Quantizer{index: index, size: vocab.Size(), logger: o.logger}, nil
}

// Size returns the number of bins (K).
func (q *Quantizer) Size() int {
	return q.size
}

// IndexType reports which nearest-word index is in use.
func (q *Quantizer) IndexType() string {
	return q.index.Type()
}

// Quantize assigns each descriptor to its nearest word, counts the assignments
// and divides by the descriptor count.
func (q *Quantizer) Quantize(descs []models.FeatureVector) (Histogram, error) {
	h := make(Histogram, q.size)
	if len(descs) == 0 {
		return h, nil
	}
	dim := q.index.Dimensions()
	for i, d := range descs {
		if len(d) != dim {
			return nil, &models.QuantizeError{
				Err: fmt.Errorf("descriptor %d: %w: got %d, expected %d", i, models.ErrDimensionMismatch, len(d), dim),
			}
		}
		word, _ := q.index.Nearest(d)
		if word < 0 {
			return nil, &models.QuantizeError{Err: fmt.Errorf("descriptor %d: no nearest word", i)}
		}
		h[word]++
	}
	n := float64(len(descs))
	for i := range h {
		h[i] /= n
	}
	return h, nil
}

// QuantizeImage is Quantize with the image id attached to any error.
func (q *Quantizer) QuantizeImage(id string, descs []models.FeatureVector) (Histogram, error) {
	h, err := q.Quantize(descs)
	if err != nil {
		var qe *models.QuantizeError
		if errors.As(err, &qe) {
			qe.Image = id
		}
		return nil, err
	}
	if q.logger != nil {
		q.logger.Debug("image quantized",
			zap.String("image", id),
			zap.Int("descriptors", len(descs)),
		)
	}
	return h, nil
}
