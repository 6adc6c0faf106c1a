package histogram

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/vocabulary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustVocab(t *testing.T, words [][]float64) *vocabulary.Vocabulary {
	t.Helper()
	v, err := vocabulary.New(words)
	require.NoError(t, err)
	return v
}

func TestQuantize_SumsToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := make([][]float64, 20)
	for i := range words {
		words[i] = []float64{rng.Float64() * 10, rng.Float64() * 10, rng.Float64() * 10}
	}
	for _, indexType := range []string{"kdtree", "linear"} {
		q, err := NewQuantizer(mustVocab(t, words), WithIndexType(indexType))
		require.NoError(t, err)
		assert.Equal(t, indexType, q.IndexType())

		for _, n := range []int{1, 7, 333} {
			descs := make([]models.FeatureVector, n)
			for i := range descs {
				descs[i] = models.FeatureVector{rng.Float64() * 10, rng.Float64() * 10, rng.Float64() * 10}
			}
			h, err := q.Quantize(descs)
			require.NoError(t, err)
			require.Len(t, h, 20)
			assert.InDelta(t, 1.0, h.Sum(), 1e-6)
			for _, b := range h {
				assert.GreaterOrEqual(t, b, 0.0)
				assert.LessOrEqual(t, b, 1.0)
			}
		}
	}
}

func TestQuantize_EmptyImageIsAllZero(t *testing.T) {
	q, err := NewQuantizer(mustVocab(t, [][]float64{{0}, {1}, {2}}))
	require.NoError(t, err)
	h, err := q.Quantize(nil)
	require.NoError(t, err)
	assert.Equal(t, Histogram{0, 0, 0}, h)
}

func TestQuantize_OverflowingDescriptor(t *testing.T) {
	for _, typ := range []string{"linear", "kdtree"} {
		q, err := NewQuantizer(mustVocab(t, [][]float64{{0, 0}, {10, 10}}), WithIndexType(typ))
		require.NoError(t, err)
		h, err := q.Quantize([]models.FeatureVector{{1e200, 0}, {9, 9}})
		require.NoError(t, err, typ)
		assert.Equal(t, Histogram{0.5, 0.5}, h, typ)
	}
}

func TestQuantize_CountsNearestWords(t *testing.T) {
	q, err := NewQuantizer(mustVocab(t, [][]float64{{0, 0}, {10, 0}, {0, 10}, {10, 10}}))
	require.NoError(t, err)
	h, err := q.Quantize([]models.FeatureVector{{1, 1}, {9, 1}, {8, 2}, {9, 9}})
	require.NoError(t, err)
	assert.Equal(t, Histogram{0.25, 0.5, 0, 0.25}, h)
}

func TestQuantize_BuiltVocabulary(t *testing.T) {
	corpus := []models.FeatureVector{
		{0, 0}, {0.2, 0.1}, {0.1, 0.3},
		{9, 9}, {9.2, 8.8}, {8.9, 9.1},
	}
	vocab, err := vocabulary.NewBuilder(vocabulary.WithSeed(3)).Build(context.Background(), corpus, 2)
	require.NoError(t, err)
	require.Equal(t, 2, vocab.Size())

	q, err := NewQuantizer(vocab)
	require.NoError(t, err)

	near := 0
	if vocab.Word(1)[0] < vocab.Word(0)[0] {
		near = 1
	}
	h, err := q.Quantize([]models.FeatureVector{{0.15, 0.2}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, h[near])
	assert.Equal(t, 0.0, h[1-near])
}

func TestNewQuantizer_Errors(t *testing.T) {
	var qe *models.QuantizeError

	_, err := NewQuantizer(nil)
	require.True(t, errors.As(err, &qe))
	assert.ErrorIs(t, err, models.ErrEmptyVocabulary)

	_, err = NewQuantizer(mustVocab(t, nil))
	assert.ErrorIs(t, err, models.ErrEmptyVocabulary)

	_, err = NewQuantizer(mustVocab(t, [][]float64{{1}}), WithIndexType("lsh"))
	assert.True(t, errors.As(err, &qe))
}

func TestQuantizeImage_DimensionMismatch(t *testing.T) {
	q, err := NewQuantizer(mustVocab(t, [][]float64{{0, 0}}))
	require.NoError(t, err)
	_, err = q.QuantizeImage("img_001", []models.FeatureVector{{1, 2}, {1, 2, 3}})
	var qe *models.QuantizeError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "img_001", qe.Image)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHistogram("a/img 1.txt", Histogram{0.5, 0.25, 0.25}))
	require.NoError(t, w.WriteHistogram("b\tc", Histogram{0, 0, 0}))
	require.Error(t, w.WriteHistogram("", Histogram{1, 0, 0}))
	require.NoError(t, w.Flush())
	assert.Equal(t, 2, w.Count())
	assert.Equal(t, "a/img 1.txt\t0.5\t0.25\t0.25\nb c\t0\t0\t0\n", buf.String())

	rows, err := ReadHistograms(&buf, "hist.txt")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b c", rows[1].ID)
	assert.Equal(t, Histogram{0.5, 0.25, 0.25}, rows[0].Histogram)
}

func TestReadHistograms_Errors(t *testing.T) {
	for name, input := range map[string]string{
		"no bins":     "img\n",
		"ragged":      "a\t1\t0\nb\t1\n",
		"non-numeric": "a\tone\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadHistograms(strings.NewReader(input), "h.txt")
			var le *models.LoadError
			assert.True(t, errors.As(err, &le), "got %v", err)
		})
	}
}
