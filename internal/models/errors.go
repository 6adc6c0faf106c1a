package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector does not have the expected length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrUnknownObject is returned when a descriptor references an object id missing from the catalog.
	ErrUnknownObject = errors.New("unknown object id")
	// ErrEmptyCatalog is returned when classification is attempted without any objects.
	ErrEmptyCatalog = errors.New("object catalog is empty")
	// ErrEmptyCorpus is returned when a vocabulary is built from no vectors.
	ErrEmptyCorpus = errors.New("corpus is empty")
	// ErrInvalidK is returned when the vocabulary size is not positive or exceeds the corpus size.
	ErrInvalidK = errors.New("invalid vocabulary size")
	// ErrEmptyVocabulary is returned when quantizing against a vocabulary with no words.
	ErrEmptyVocabulary = errors.New("vocabulary is empty")
)

// LoadError reports malformed or missing reference or vocabulary data.
// Line is 1-based; zero means the error is not tied to a row.
type LoadError struct {
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// BuildError reports invalid clustering parameters or input.
type BuildError struct {
	K      int
	Corpus int
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build vocabulary (k=%d, corpus=%d): %v", e.K, e.Corpus, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// QuantizeError reports a histogram that cannot be computed.
type QuantizeError struct {
	Image string
	Err   error
}

func (e *QuantizeError) Error() string {
	if e.Image != "" {
		return fmt.Sprintf("quantize %s: %v", e.Image, e.Err)
	}
	return fmt.Sprintf("quantize: %v", e.Err)
}

func (e *QuantizeError) Unwrap() error { return e.Err }

// DetectorError is propagated from the external feature detector.
type DetectorError struct {
	Image string
	Line  int
	Err   error
}

func (e *DetectorError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("detect %s:%d: %v", e.Image, e.Line, e.Err)
	}
	return fmt.Sprintf("detect %s: %v", e.Image, e.Err)
}

func (e *DetectorError) Unwrap() error { return e.Err }
