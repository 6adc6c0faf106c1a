package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadError(t *testing.T) {
	err := &LoadError{Path: "desc.txt", Line: 3, Err: ErrDimensionMismatch}
	assert.Equal(t, "load desc.txt:3: dimension mismatch", err.Error())
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	noLine := &LoadError{Path: "objects.txt", Err: errors.New("missing")}
	assert.Equal(t, "load objects.txt: missing", noLine.Error())
}

func TestErrorsAs(t *testing.T) {
	var wrapped error = fmt.Errorf("vocab: %w", &BuildError{K: 5, Corpus: 2, Err: ErrInvalidK})

	var be *BuildError
	assert.True(t, errors.As(wrapped, &be))
	assert.Equal(t, 5, be.K)
	assert.ErrorIs(t, wrapped, ErrInvalidK)

	qe := &QuantizeError{Image: "a.desc", Err: ErrEmptyVocabulary}
	assert.Equal(t, "quantize a.desc: vocabulary is empty", qe.Error())
	assert.ErrorIs(t, qe, ErrEmptyVocabulary)

	de := &DetectorError{Image: "b.desc", Line: 2, Err: ErrDimensionMismatch}
	assert.Contains(t, de.Error(), "b.desc:2")
}

func TestVectors(t *testing.T) {
	descs := []Descriptor{{Vector: FeatureVector{1, 2}, Tag: 1}, {Vector: FeatureVector{3, 4}, Tag: -1}}
	vecs := Vectors(descs)
	assert.Len(t, vecs, 2)
	assert.Equal(t, FeatureVector{3, 4}, vecs[1])
}
