// Package keyword provides full-text search over reference object names.
package keyword

import "github.com/hyperjump/mitate/internal/models"

// SearchOptions optional parameters for name search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled matches terms within Fuzziness edits for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default 2.
	Fuzziness int
}

// NameResult is a single name search hit.
type NameResult struct {
	ID    models.ObjectID `json:"id"`
	Name  string          `json:"name"`
	Score float64         `json:"score"`
}

// Suggestion is an indexed term close to a misspelled query term.
type Suggestion struct {
	Term      string `json:"term"`
	Distance  int    `json:"distance"`
	Frequency int    `json:"frequency"`
}
