package vector

import "fmt"

// IndexType represents the type of nearest-neighbor index to use.
type IndexType string

const (
	// IndexTypeLinear scans every point. Good for small sets and cross-checking.
	IndexTypeLinear IndexType = "linear"
	// IndexTypeKDTree uses an exact kd-tree. Default for vocabulary lookups.
	IndexTypeKDTree IndexType = "kdtree"
)

// NewIndex creates an index of the specified type over points.
// Supported types: "kdtree" (default), "linear".
func NewIndex(indexType string, points [][]float64) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeKDTree, "":
		return NewKDTree(points)
	case IndexTypeLinear:
		return NewLinearIndex(points)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: kdtree, linear)", indexType)
	}
}
