package vocabulary

import (
	"math"
	"math/rand"

	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/vector"
	"gonum.org/v1/gonum/floats"
)

// kmeans holds the state of one Lloyd clustering run.
type kmeans struct {
	points      []models.FeatureVector
	dim         int
	k           int
	rng         *rand.Rand
	centroids   [][]float64
	assignments []int
	// dists[i] is the squared distance from point i to its assigned centroid.
	dists []float64
}

func newKMeans(points []models.FeatureVector, dim, k int, seed int64) *kmeans {
	return &kmeans{
		points:      points,
		dim:         dim,
		k:           k,
		rng:         rand.New(rand.NewSource(seed)),
		centroids:   make([][]float64, k),
		assignments: make([]int, len(points)),
		dists:       make([]float64, len(points)),
	}
}

func (km *kmeans) initRandom() {
	perm := km.rng.Perm(len(km.points))
	for c := 0; c < km.k; c++ {
		km.centroids[c] = append([]float64(nil), km.points[perm[c]]...)
	}
}

func (km *kmeans) initFarthest() {
	n := len(km.points)
	chosen := make([]bool, n)
	first := km.rng.Intn(n)
	chosen[first] = true
	km.centroids[0] = append([]float64(nil), km.points[first]...)

	minDist := make([]float64, n)
	for i, p := range km.points {
		minDist[i] = vector.SquaredEuclidean(p, km.centroids[0])
	}
	for c := 1; c < km.k; c++ {
		best := -1
		for i := range km.points {
			if chosen[i] {
				continue
			}
			if best < 0 || minDist[i] > minDist[best] {
				best = i
			}
		}
		chosen[best] = true
		km.centroids[c] = append([]float64(nil), km.points[best]...)
		for i, p := range km.points {
			if d := vector.SquaredEuclidean(p, km.centroids[c]); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
}

// assign moves every point to its nearest centroid (lowest index on ties) and
// returns the total squared distance.
func (km *kmeans) assign() float64 {
	var inertia float64
	for i, p := range km.points {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range km.centroids {
			d := vector.SquaredEuclideanBounded(p, centroid, bestDist)
			if d < bestDist {
				best, bestDist = c, d
			}
		}
		km.assignments[i] = best
		km.dists[i] = bestDist
		inertia += bestDist
	}
	return inertia
}

// update recomputes each centroid as the mean of its points. A centroid with no
// points is re-seeded from the point farthest from its own centroid, each point
// used at most once per update; if no point is left with a positive distance the
// centroid stays where it is. Returns the largest centroid shift and the number
// of re-seeded clusters.
func (km *kmeans) update() (float64, int) {
	sums := make([][]float64, km.k)
	counts := make([]int, km.k)
	for c := range sums {
		sums[c] = make([]float64, km.dim)
	}
	for i, p := range km.points {
		c := km.assignments[i]
		floats.Add(sums[c], p)
		counts[c]++
	}

	var shift float64
	reseeded := 0
	used := make(map[int]bool)
	for c := 0; c < km.k; c++ {
		var next []float64
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), sums[c])
			next = sums[c]
		} else {
			p, ok := km.farthestPoint(used)
			if !ok {
				continue
			}
			used[p] = true
			next = append([]float64(nil), km.points[p]...)
			reseeded++
		}
		if s := vector.Euclidean(km.centroids[c], next); s > shift {
			shift = s
		}
		km.centroids[c] = next
	}
	return shift, reseeded
}

func (km *kmeans) farthestPoint(used map[int]bool) (int, bool) {
	best := -1
	for i, d := range km.dists {
		if used[i] || d <= 0 {
			continue
		}
		if best < 0 || d > km.dists[best] {
			best = i
		}
	}
	return best, best >= 0
}
