// Package classifier recognizes objects by 1-nearest-neighbor matching of query
// descriptors against a reference database, with per-object majority voting.
package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/refdb"
	"github.com/hyperjump/mitate/internal/vector"
	"go.uber.org/zap"
)

// Classifier owns a reference database and catalog for its lifetime. Both are
// read-only, so one Classifier may serve concurrent Classify calls.
type Classifier struct {
	db       *refdb.Database
	catalog  *refdb.Catalog
	ids      []models.ObjectID
	pos      map[models.ObjectID]int
	minVotes int
	logger   *zap.Logger // optional
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets a logger for debug output (per-query vote summaries).
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// WithMinVotes sets the vote count a winner needs for Result.Accepted.
// It never changes which object wins.
func WithMinVotes(n int) Option {
	return func(c *Classifier) { c.minVotes = n }
}

// New creates a classifier. Every object id in db must be present in catalog.
func New(db *refdb.Database, catalog *refdb.Catalog, opts ...Option) (*Classifier, error) {
	if db == nil || catalog == nil {
		return nil, fmt.Errorf("database and catalog are required")
	}
	if catalog.Len() == 0 {
		return nil, models.ErrEmptyCatalog
	}
	if err := db.Validate(catalog); err != nil {
		return nil, err
	}
	c := &Classifier{
		db:      db,
		catalog: catalog,
		ids:     catalog.IDs(),
		pos:     make(map[models.ObjectID]int, catalog.Len()),
	}
	for i, id := range c.ids {
		c.pos[id] = i
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewTally returns a zeroed tally sized to the catalog.
func (c *Classifier) NewTally() *Tally {
	return newTally(c.ids, c.pos)
}

// Catalog returns the object catalog.
func (c *Classifier) Catalog() *refdb.Catalog {
	return c.catalog
}

// Database returns the reference database.
func (c *Classifier) Database() *refdb.Database {
	return c.db
}

// Match is the nearest same-tag reference row for one query descriptor.
type Match struct {
	Row      int
	Object   models.ObjectID
	Distance float64
}

// Nearest scans the database in row order for the closest entry whose tag equals
// tag. Rows with another tag are never compared. The first strict minimum wins, and
// the first same-tag row is taken even when its distance overflows.
// ok is false when no row shares the tag.
func (c *Classifier) Nearest(vec []float64, tag models.Tag) (m Match, ok bool) {
	best := -1
	bestDist := math.Inf(1)
	for i := 0; i < c.db.Len(); i++ {
		if c.db.Tag(i) != tag {
			continue
		}
		d := vector.SquaredEuclideanBounded(vec, c.db.Vector(i), bestDist)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return Match{Row: -1}, false
	}
	return Match{Row: best, Object: c.db.Object(best), Distance: math.Sqrt(bestDist)}, true
}

// ClassifyInto resets tally, casts one vote per query descriptor for the object of
// its nearest same-tag reference descriptor, and returns the winning object id.
// A query with no descriptors is valid and yields the lowest object id with zero votes.
// ctx is checked before each query descriptor.
func (c *Classifier) ClassifyInto(ctx context.Context, query []models.Descriptor, tally *Tally) (models.ObjectID, error) {
	if tally == nil || tally.Len() != len(c.ids) {
		return 0, fmt.Errorf("tally must come from NewTally")
	}
	tally.Reset()
	dim := c.db.Dimensions()
	for i, q := range query {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if len(q.Vector) != dim {
			return 0, fmt.Errorf("query descriptor %d: %w: got %d, expected %d", i, models.ErrDimensionMismatch, len(q.Vector), dim)
		}
		if m, ok := c.Nearest(q.Vector, q.Tag); ok {
			tally.vote(m.Object)
		}
	}
	winner, _ := tally.Max()
	return winner, nil
}

// Classify runs ClassifyInto with a fresh tally and summarizes the outcome.
func (c *Classifier) Classify(ctx context.Context, query []models.Descriptor) (*Result, error) {
	tally := c.NewTally()
	winner, err := c.ClassifyInto(ctx, query, tally)
	if err != nil {
		return nil, err
	}
	_, maxVotes := tally.Max()
	name, _ := c.catalog.Name(winner)
	total := tally.Total()
	res := &Result{
		ObjectID:    winner,
		Name:        name,
		Votes:       tally.Map(),
		MaxVotes:    maxVotes,
		TotalVotes:  total,
		Descriptors: len(query),
		Unmatched:   len(query) - total,
		MinVotes:    c.minVotes,
	}
	if c.logger != nil {
		c.logger.Debug("classified query",
			zap.Int("object_id", int(winner)),
			zap.String("name", name),
			zap.Int("max_votes", maxVotes),
			zap.Int("total_votes", total),
			zap.Int("descriptors", len(query)),
		)
	}
	return res, nil
}
