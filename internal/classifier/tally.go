package classifier

import "github.com/hyperjump/mitate/internal/models"

// Tally holds per-object vote counts for one classification. It is sized once
// from the catalog and owned by a single caller; it is not safe for concurrent use.
type Tally struct {
	ids    []models.ObjectID
	counts []int
	pos    map[models.ObjectID]int
}

func newTally(ids []models.ObjectID, pos map[models.ObjectID]int) *Tally {
	return &Tally{ids: ids, counts: make([]int, len(ids)), pos: pos}
}

// Reset zeroes every count without reallocating.
func (t *Tally) Reset() {
	for i := range t.counts {
		t.counts[i] = 0
	}
}

// Len returns the number of objects the tally tracks.
func (t *Tally) Len() int {
	return len(t.counts)
}

// Votes returns the vote count for id, or 0 when id is not tracked.
func (t *Tally) Votes(id models.ObjectID) int {
	if p, ok := t.pos[id]; ok {
		return t.counts[p]
	}
	return 0
}

// Total returns the number of votes cast.
func (t *Tally) Total() int {
	var n int
	for _, c := range t.counts {
		n += c
	}
	return n
}

// Max returns the winning object id and its votes: the strict maximum, with ties
// (including the all-zero tally) going to the lowest object id.
func (t *Tally) Max() (models.ObjectID, int) {
	best := 0
	for i, c := range t.counts {
		if c > t.counts[best] {
			best = i
		}
	}
	return t.ids[best], t.counts[best]
}

// Map returns a copy of the counts keyed by object id.
func (t *Tally) Map() map[models.ObjectID]int {
	out := make(map[models.ObjectID]int, len(t.ids))
	for i, id := range t.ids {
		out[id] = t.counts[i]
	}
	return out
}

func (t *Tally) vote(id models.ObjectID) {
	t.counts[t.pos[id]]++
}
