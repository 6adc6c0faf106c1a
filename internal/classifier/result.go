package classifier

import "github.com/hyperjump/mitate/internal/models"

// Result summarizes one classification.
type Result struct {
	ObjectID models.ObjectID         `json:"object_id"`
	Name     string                  `json:"name"`
	Votes    map[models.ObjectID]int `json:"votes"`
	// MaxVotes is the winner's vote count.
	MaxVotes int `json:"max_votes"`
	// TotalVotes is the number of query descriptors that found a same-tag neighbor.
	TotalVotes  int `json:"total_votes"`
	Descriptors int `json:"descriptors"`
	// Unmatched counts query descriptors whose tag matched no reference descriptor.
	Unmatched int `json:"unmatched"`
	MinVotes  int `json:"min_votes,omitempty"`
}

// LowConfidence reports whether no votes were cast, in which case ObjectID is only
// the tie-break default.
func (r *Result) LowConfidence() bool {
	return r.TotalVotes == 0
}

// Accepted reports whether the winner has at least MinVotes votes and at least one vote.
func (r *Result) Accepted() bool {
	return r.MaxVotes > 0 && r.MaxVotes >= r.MinVotes
}
