// Package refdb holds the reference database of labeled descriptors and the
// object catalog used by the classifier, and loads both from tab-separated tables.
package refdb

import (
	"fmt"

	"github.com/hyperjump/mitate/internal/models"
)

// Entry is one labeled reference descriptor.
type Entry struct {
	Vector models.FeatureVector
	Tag    models.Tag
	Object models.ObjectID
}

// Database is an ordered, immutable collection of labeled descriptors.
// It exclusively owns its descriptor storage; iteration order is row order.
type Database struct {
	vectors *Matrix
	tags    []models.Tag
	labels  []models.ObjectID
}

// NewDatabase copies entries into a database of the given dimension.
func NewDatabase(dim int, entries []Entry) (*Database, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	db := newDatabase(dim, len(entries))
	for i, e := range entries {
		if err := db.add(e.Vector, e.Tag, e.Object); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return db, nil
}

func newDatabase(dim, hint int) *Database {
	return &Database{
		vectors: NewMatrix(dim, hint),
		tags:    make([]models.Tag, 0, hint),
		labels:  make([]models.ObjectID, 0, hint),
	}
}

func (db *Database) add(vec []float64, tag models.Tag, obj models.ObjectID) error {
	if len(vec) != db.vectors.Cols() {
		return fmt.Errorf("%w: got %d, expected %d", models.ErrDimensionMismatch, len(vec), db.vectors.Cols())
	}
	if obj < 0 {
		return fmt.Errorf("negative object id %d", obj)
	}
	if err := db.vectors.AppendRow(vec); err != nil {
		return err
	}
	db.tags = append(db.tags, tag)
	db.labels = append(db.labels, obj)
	return nil
}

// Len returns the number of reference descriptors.
func (db *Database) Len() int {
	return len(db.labels)
}

// Dimensions returns the descriptor dimension.
func (db *Database) Dimensions() int {
	return db.vectors.Cols()
}

// Vector returns the feature vector of row i. Callers must not modify it.
func (db *Database) Vector(i int) []float64 {
	return db.vectors.Row(i)
}

// Tag returns the descriptor tag of row i.
func (db *Database) Tag(i int) models.Tag {
	return db.tags[i]
}

// Object returns the object id of row i.
func (db *Database) Object(i int) models.ObjectID {
	return db.labels[i]
}

// Entry returns row i as an Entry. The vector is a view, not a copy.
func (db *Database) Entry(i int) Entry {
	return Entry{Vector: db.vectors.Row(i), Tag: db.tags[i], Object: db.labels[i]}
}

// Objects returns the distinct object ids referenced by the database, in first-seen order.
func (db *Database) Objects() []models.ObjectID {
	seen := make(map[models.ObjectID]bool)
	var out []models.ObjectID
	for _, id := range db.labels {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Validate checks that every object id referenced by db exists in catalog.
func (db *Database) Validate(catalog *Catalog) error {
	for i, id := range db.labels {
		if !catalog.Contains(id) {
			return fmt.Errorf("row %d: %w: %d", i, models.ErrUnknownObject, id)
		}
	}
	return nil
}
