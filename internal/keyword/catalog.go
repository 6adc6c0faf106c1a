package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/refdb"
)

const termsField = "terms"

type nameDoc struct {
	Terms string `json:"terms"`
}

// CatalogIndex is an in-memory Bleve index over catalog object names.
type CatalogIndex struct {
	index bleve.Index
	names map[models.ObjectID]string
}

// NewCatalogIndex indexes every name in catalog. Underscores, hyphens and dots
// separate words, so "red_mug" matches "mug".
func NewCatalogIndex(catalog *refdb.Catalog) (*CatalogIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// standard analyzer: lowercase + tokenize, no stemming
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(termsField, textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}

	ci := &CatalogIndex{index: index, names: make(map[models.ObjectID]string, catalog.Len())}
	batch := index.NewBatch()
	for _, id := range catalog.IDs() {
		name, _ := catalog.Name(id)
		ci.names[id] = name
		if err := batch.Index(strconv.Itoa(int(id)), nameDoc{Terms: nameTerms(name)}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index object %d: %w", id, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index catalog: %w", err)
	}
	return ci, nil
}

func nameTerms(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', '/':
			return ' '
		}
		return r
	}, name)
}

// Search returns up to limit objects whose names match query, best first.
// Equal scores are ordered by ascending object id.
func (c *CatalogIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*NameResult, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 || limit <= 0 {
		return []*NameResult{}, nil
	}
	fuzzy := opts != nil && opts.FuzzyEnabled
	fuzziness := 2
	if opts != nil && opts.Fuzziness > 0 {
		fuzziness = opts.Fuzziness
	}

	var q blevequery.Query
	if fuzzy {
		queries := make([]blevequery.Query, 0, len(terms))
		for _, term := range terms {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(fuzziness)
			fq.SetField(termsField)
			queries = append(queries, fq)
		}
		q = bleve.NewDisjunctionQuery(queries...)
	} else {
		mq := bleve.NewMatchQuery(strings.Join(terms, " "))
		mq.SetField(termsField)
		q = mq
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*NameResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		n, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		id := models.ObjectID(n)
		out = append(out, &NameResult{ID: id, Name: c.names[id], Score: hit.Score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Suggest returns indexed terms within maxDistance edits of term, closest first,
// then most frequent. At most limit suggestions are returned.
func (c *CatalogIndex) Suggest(term string, maxDistance, limit int) ([]Suggestion, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || limit <= 0 {
		return nil, nil
	}
	dict, err := c.index.FieldDict(termsField)
	if err != nil {
		return nil, fmt.Errorf("read term dictionary: %w", err)
	}
	defer dict.Close()

	var out []Suggestion
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("read term dictionary: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Term == term {
			continue
		}
		d := levenshtein(term, entry.Term)
		if d <= maxDistance {
			out = append(out, Suggestion{Term: entry.Term, Distance: d, Frequency: int(entry.Count)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of indexed names.
func (c *CatalogIndex) Len() int {
	return len(c.names)
}

// Close releases the index.
func (c *CatalogIndex) Close() error {
	return c.index.Close()
}

// tokenizeQuery splits query into lowercase terms using the same separators as names.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(nameTerms(query)))
}

// levenshtein counts single-rune insertions, deletions and substitutions
// needed to turn a into b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
