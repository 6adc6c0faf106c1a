package vector

import (
	"gonum.org/v1/gonum/floats"
)

// Euclidean returns the L2 distance between a and b. Both must have the same length.
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// SquaredEuclidean returns the squared L2 distance between a and b.
// Ordering by squared distance is the same as ordering by distance.
func SquaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// SquaredEuclideanBounded is SquaredEuclidean with early abandon: once the partial
// sum exceeds bound the scan stops and the partial sum (> bound) is returned.
func SquaredEuclideanBounded(a, b []float64, bound float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
		if sum > bound {
			return sum
		}
	}
	return sum
}
