package vector

import (
	"fmt"
	"math"
)

// LinearIndex is an exact brute-force index. Suitable for small point sets and as the
// reference the kd-tree is checked against.
type LinearIndex struct {
	dimensions int
	points     [][]float64
}

// NewLinearIndex copies points into a brute-force index. All points must share one dimension.
func NewLinearIndex(points [][]float64) (*LinearIndex, error) {
	dim, err := commonDimension(points)
	if err != nil {
		return nil, err
	}
	owned := make([][]float64, len(points))
	for i, p := range points {
		owned[i] = append([]float64(nil), p...)
	}
	return &LinearIndex{dimensions: dim, points: owned}, nil
}

// Type returns the index type identifier.
func (l *LinearIndex) Type() string {
	return string(IndexTypeLinear)
}

// Nearest scans every point and keeps the first strict minimum. The first point is
// always a candidate, so a distance that overflows to +Inf still yields a result.
func (l *LinearIndex) Nearest(q []float64) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range l.points {
		d := SquaredEuclideanBounded(q, p, bestDist)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return -1, math.Inf(1)
	}
	return best, math.Sqrt(bestDist)
}

// Size returns the number of indexed points.
func (l *LinearIndex) Size() int {
	return len(l.points)
}

// Dimensions returns the point dimension, or 0 for an empty index.
func (l *LinearIndex) Dimensions() int {
	return l.dimensions
}

func commonDimension(points [][]float64) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	dim := len(points[0])
	if dim == 0 {
		return 0, fmt.Errorf("point 0 has zero dimensions")
	}
	for i, p := range points {
		if len(p) != dim {
			return 0, fmt.Errorf("point %d dimension mismatch: got %d, expected %d", i, len(p), dim)
		}
	}
	return dim, nil
}
