// Package vocabulary builds visual-word vocabularies by k-means clustering of
// local descriptors and persists them as flat tab-separated tables.
package vocabulary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/table"
)

// Vocabulary is an ordered, immutable set of visual words (cluster centroids).
// A word is identified by its position.
type Vocabulary struct {
	dimensions int
	words      [][]float64
}

// New copies words into a vocabulary. All words must share one dimension.
func New(words [][]float64) (*Vocabulary, error) {
	v := &Vocabulary{words: make([][]float64, len(words))}
	for i, w := range words {
		if i == 0 {
			v.dimensions = len(w)
		}
		if len(w) == 0 || len(w) != v.dimensions {
			return nil, fmt.Errorf("word %d: %w: got %d, expected %d", i, models.ErrDimensionMismatch, len(w), v.dimensions)
		}
		v.words[i] = append([]float64(nil), w...)
	}
	return v, nil
}

// Size returns the number of visual words (K).
func (v *Vocabulary) Size() int {
	if v == nil {
		return 0
	}
	return len(v.words)
}

// Dimensions returns the word dimension, or 0 for an empty vocabulary.
func (v *Vocabulary) Dimensions() int {
	if v == nil {
		return 0
	}
	return v.dimensions
}

// Word returns visual word i as a read-only view.
func (v *Vocabulary) Word(i int) []float64 {
	return v.words[i][:len(v.words[i]):len(v.words[i])]
}

// Words returns a deep copy of every word in order.
func (v *Vocabulary) Words() [][]float64 {
	out := make([][]float64, len(v.words))
	for i, w := range v.words {
		out[i] = append([]float64(nil), w...)
	}
	return out
}

// Save writes one word per line, components tab-separated.
func (v *Vocabulary) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, word := range v.words {
		if err := table.WriteRow(bw, "", word); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile saves the vocabulary to path, creating parent directories.
func (v *Vocabulary) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create vocabulary dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vocabulary file: %w", err)
	}
	if err := v.Save(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write vocabulary: %w", err)
	}
	return f.Close()
}

// Read parses a vocabulary table. name is used in error messages.
// Malformed rows, ragged widths and empty input return a *models.LoadError.
func Read(r io.Reader, name string) (*Vocabulary, error) {
	var words [][]float64
	err := table.Scan(r, func(line int, fields []string) error {
		vec, err := table.ParseFloats(fields)
		if err != nil {
			return &models.LoadError{Path: name, Line: line, Err: err}
		}
		if len(words) > 0 && len(vec) != len(words[0]) {
			return &models.LoadError{Path: name, Line: line,
				Err: fmt.Errorf("%w: got %d values, expected %d", models.ErrDimensionMismatch, len(vec), len(words[0]))}
		}
		words = append(words, vec)
		return nil
	})
	if err != nil {
		var le *models.LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &models.LoadError{Path: name, Err: err}
	}
	if len(words) == 0 {
		return nil, &models.LoadError{Path: name, Err: models.ErrEmptyVocabulary}
	}
	return &Vocabulary{dimensions: len(words[0]), words: words}, nil
}

// ReadFile loads a vocabulary saved by WriteFile.
func ReadFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.LoadError{Path: path, Err: err}
	}
	defer f.Close()
	return Read(f, path)
}
