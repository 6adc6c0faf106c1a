package vector

import (
	"math"
	"sort"
)

// leafSize is the maximum number of points stored in a kd-tree leaf.
const leafSize = 8

// KDTree is an exact kd-tree. Internal nodes split on the axis with the widest
// spread at the median point; search is branch-and-bound on squared distances.
type KDTree struct {
	dimensions int
	points     [][]float64
	perm       []int
	nodes      []kdNode
	root       int
}

type kdNode struct {
	// leaf nodes: perm[lo:hi] are the point positions.
	lo, hi int
	// internal nodes: axis < 0 marks a leaf.
	axis        int
	split       float64
	left, right int
}

// NewKDTree copies points and builds the tree.
func NewKDTree(points [][]float64) (*KDTree, error) {
	dim, err := commonDimension(points)
	if err != nil {
		return nil, err
	}
	t := &KDTree{dimensions: dim, root: -1}
	t.points = make([][]float64, len(points))
	for i, p := range points {
		t.points[i] = append([]float64(nil), p...)
	}
	if len(points) == 0 {
		return t, nil
	}
	t.perm = make([]int, len(points))
	for i := range t.perm {
		t.perm[i] = i
	}
	t.root = t.build(0, len(t.perm))
	return t, nil
}

func (t *KDTree) build(lo, hi int) int {
	if hi-lo <= leafSize {
		return t.addLeaf(lo, hi)
	}
	axis, spread := t.widestAxis(t.perm[lo:hi])
	if spread == 0 {
		// every point in this range is identical
		return t.addLeaf(lo, hi)
	}
	seg := t.perm[lo:hi]
	sort.Slice(seg, func(i, j int) bool {
		a, b := t.points[seg[i]][axis], t.points[seg[j]][axis]
		if a != b {
			return a < b
		}
		return seg[i] < seg[j]
	})
	mid := lo + (hi-lo)/2
	split := t.points[t.perm[mid]][axis]

	idx := len(t.nodes)
	t.nodes = append(t.nodes, kdNode{axis: axis, split: split})
	left := t.build(lo, mid)
	right := t.build(mid, hi)
	t.nodes[idx].left = left
	t.nodes[idx].right = right
	return idx
}

func (t *KDTree) addLeaf(lo, hi int) int {
	sort.Ints(t.perm[lo:hi])
	t.nodes = append(t.nodes, kdNode{lo: lo, hi: hi, axis: -1})
	return len(t.nodes) - 1
}

func (t *KDTree) widestAxis(seg []int) (int, float64) {
	bestAxis, bestSpread := 0, -1.0
	for axis := 0; axis < t.dimensions; axis++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range seg {
			v := t.points[p][axis]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi-lo > bestSpread {
			bestAxis, bestSpread = axis, hi-lo
		}
	}
	return bestAxis, bestSpread
}

// Type returns the index type identifier.
func (t *KDTree) Type() string {
	return string(IndexTypeKDTree)
}

// Size returns the number of indexed points.
func (t *KDTree) Size() int {
	return len(t.points)
}

// Dimensions returns the point dimension, or 0 for an empty tree.
func (t *KDTree) Dimensions() int {
	return t.dimensions
}

// Nearest returns the exact nearest point. Ties resolve to the lowest position,
// matching LinearIndex.
func (t *KDTree) Nearest(q []float64) (int, float64) {
	if t.root < 0 {
		return -1, math.Inf(1)
	}
	s := kdSearch{tree: t, query: q, best: -1, bestDist: math.Inf(1)}
	s.visit(t.root)
	return s.best, math.Sqrt(s.bestDist)
}

type kdSearch struct {
	tree     *KDTree
	query    []float64
	best     int
	bestDist float64
}

func (s *kdSearch) visit(n int) {
	node := &s.tree.nodes[n]
	if node.axis < 0 {
		for _, p := range s.tree.perm[node.lo:node.hi] {
			d := SquaredEuclideanBounded(s.query, s.tree.points[p], s.bestDist)
			if s.best < 0 || d < s.bestDist || (d == s.bestDist && p < s.best) {
				s.best, s.bestDist = p, d
			}
		}
		return
	}
	diff := s.query[node.axis] - node.split
	near, far := node.left, node.right
	if diff >= 0 {
		near, far = node.right, node.left
	}
	s.visit(near)
	// Points on the far side are at least |diff| away along this axis.
	// Equality is still explored so a lower-positioned tie can win.
	if diff*diff <= s.bestDist {
		s.visit(far)
	}
}
