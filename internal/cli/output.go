// Package cli formats mitate results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/mitate/internal/classifier"
	"github.com/hyperjump/mitate/internal/models"
)

// OutputFormat is the format for classification output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per query.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --format value. Empty selects OutputText.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact:
		return OutputCompact, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, compact, json)", s)
	}
}

// maxVoteLines bounds the per-object breakdown in text output.
const maxVoteLines = 10

// Classification is one labelled classification result.
type Classification struct {
	Query string `json:"query"`
	*classifier.Result
	Accepted      bool `json:"accepted"`
	LowConfidence bool `json:"low_confidence"`
}

// NewClassification labels res with the query it came from.
func NewClassification(query string, res *classifier.Result) *Classification {
	return &Classification{
		Query:         query,
		Result:        res,
		Accepted:      res.Accepted(),
		LowConfidence: res.LowConfidence(),
	}
}

// WriteClassification writes c to w in the given format.
func WriteClassification(w io.Writer, c *Classification, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case OutputCompact:
		_, err := fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\n", c.Query, c.ObjectID, c.Name, c.MaxVotes, c.TotalVotes)
		return err
	default:
		return writeClassificationText(w, c)
	}
}

func writeClassificationText(w io.Writer, c *Classification) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\nQuery: %s\n", c.Query)
	fmt.Fprintf(&b, "Object: %s (id %d)\n", c.Name, c.ObjectID)
	fmt.Fprintf(&b, "Votes: %d of %d descriptors (%d unmatched)\n", c.MaxVotes, c.Descriptors, c.Unmatched)
	switch {
	case c.LowConfidence:
		b.WriteString("Confidence: none (no descriptor found a same-tag neighbor)\n")
	case c.MinVotes > 0 && !c.Accepted:
		fmt.Fprintf(&b, "Confidence: low (below %d votes)\n", c.MinVotes)
	}

	type row struct {
		id    models.ObjectID
		votes int
	}
	rows := make([]row, 0, len(c.Votes))
	for id, v := range c.Votes {
		if v > 0 {
			rows = append(rows, row{id, v})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].votes != rows[j].votes {
			return rows[i].votes > rows[j].votes
		}
		return rows[i].id < rows[j].id
	})
	if len(rows) > maxVoteLines {
		rows = rows[:maxVoteLines]
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %6d  %5d  %s\n", r.id, r.votes, voteBar(r.votes, c.MaxVotes))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func voteBar(votes, most int) string {
	const width = 30
	if most <= 0 {
		return ""
	}
	return strings.Repeat("#", (votes*width+most-1)/most)
}

// ObjectLine is one catalog entry for listing.
type ObjectLine struct {
	ID    models.ObjectID `json:"id"`
	Name  string          `json:"name"`
	Score float64         `json:"score,omitempty"`
}

// WriteObjects lists catalog entries as "id<TAB>name" lines or JSON.
func WriteObjects(w io.Writer, objects []ObjectLine, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(objects)
	}
	for _, o := range objects {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", o.ID, o.Name); err != nil {
			return err
		}
	}
	return nil
}
