// Package vector provides distance functions and exact nearest-neighbor indexes
// over fixed-dimension float64 vectors.
package vector

// Index answers single nearest-neighbor queries over a fixed point set.
// Implementations are read-only after construction and safe for concurrent use.
type Index interface {
	// Nearest returns the position of the closest point to q and its Euclidean distance.
	// Equal distances resolve to the lowest position. Returns -1 for an empty index.
	Nearest(q []float64) (int, float64)
	Size() int
	Dimensions() int
	Type() string
}
