// Package suggest offers "did you mean" name suggestions over the medicine table
// using an in-memory Bleve index.
package suggest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kusuri/pkg/utils"
)

const (
	defaultFuzziness = 2
	// maxFuzziness is the largest edit distance Bleve's fuzzy query supports.
	maxFuzziness = 2
	prefixBoost  = 2.0
	exactBoost   = 4.0
)

// nameDoc is the indexed document for one medicine.
type nameDoc struct {
	Name string `json:"name"`
}

// Index is an immutable in-memory name index. It is safe for concurrent use.
type Index struct {
	index     bleve.Index
	names     []string
	fuzziness int
}

// Option configures an Index.
type Option func(*Index)

// WithFuzziness sets the maximum edit distance per query term (capped at 2).
func WithFuzziness(n int) Option {
	return func(ix *Index) {
		if n >= 0 {
			ix.fuzziness = min(n, maxFuzziness)
		}
	}
}

// Build indexes names; document i refers to names[i].
func Build(names []string, opts ...Option) (*Index, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	nameField := bleve.NewTextFieldMapping()
	// Standard analyzer only lowercases and tokenizes; stemming would turn "Tablets" into "tablet"
	// and hide exact-prefix matches.
	nameField.Analyzer = standard.Name
	nameField.Store = false
	docMapping.AddFieldMappingsAt("name", nameField)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create name index: %w", err)
	}

	batch := index.NewBatch()
	for i, name := range names {
		if err := batch.Index(strconv.Itoa(i), nameDoc{Name: name}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index %q: %w", name, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to build name index: %w", err)
	}

	ix := &Index{
		index:     index,
		names:     append([]string(nil), names...),
		fuzziness: defaultFuzziness,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

type hit struct {
	index    int
	score    float64
	distance int
}

// Suggest returns up to limit names resembling query, best first. Names matching a term by
// prefix rank above fuzzy matches. Equal scores are ordered by edit distance to the query,
// then by storage order. Names equal apart from case are reported once.
func (ix *Index) Suggest(query string, limit int) ([]string, error) {
	terms := tokenize(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(ix.buildQuery(terms))
	req.Size = max(limit*4, 20)
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("name search failed: %w", err)
	}

	folded := utils.FoldName(strings.TrimSpace(query))
	hits := make([]hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		i, err := strconv.Atoi(h.ID)
		if err != nil || i < 0 || i >= len(ix.names) {
			continue
		}
		hits = append(hits, hit{
			index:    i,
			score:    h.Score,
			distance: LevenshteinDistance(folded, utils.FoldName(ix.names[i])),
		})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		if hits[a].distance != hits[b].distance {
			return hits[a].distance < hits[b].distance
		}
		return hits[a].index < hits[b].index
	})

	seen := make(map[string]bool, limit)
	out := make([]string, 0, limit)
	for _, h := range hits {
		name := ix.names[h.index]
		key := utils.FoldName(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// buildQuery ORs, per term, an exact term match, a prefix match and (for terms long
// enough to tolerate typos) a fuzzy match.
func (ix *Index) buildQuery(terms []string) blevequery.Query {
	queries := make([]blevequery.Query, 0, len(terms)*3)
	for _, term := range terms {
		tq := bleve.NewTermQuery(term)
		tq.SetField("name")
		tq.SetBoost(exactBoost)
		queries = append(queries, tq)

		pq := bleve.NewPrefixQuery(term)
		pq.SetField("name")
		pq.SetBoost(prefixBoost)
		queries = append(queries, pq)

		if f := fuzzinessFor(term, ix.fuzziness); f > 0 {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetField("name")
			fq.SetFuzziness(f)
			queries = append(queries, fq)
		}
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// fuzzinessFor keeps short terms from matching nearly everything.
func fuzzinessFor(term string, limit int) int {
	n := len([]rune(term))
	switch {
	case n <= 2:
		return 0
	case n <= 5:
		return min(1, limit)
	default:
		return limit
	}
}

// tokenize splits query into lowercase terms the way the standard analyzer does for
// plain words.
func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !isWordRune(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

func isWordRune(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 127
}

// Names returns the first limit names in storage order (all when limit <= 0).
func (ix *Index) Names(limit int) []string {
	if limit <= 0 || limit > len(ix.names) {
		limit = len(ix.names)
	}
	return append([]string(nil), ix.names[:limit]...)
}

// Len returns the number of indexed names.
func (ix *Index) Len() int {
	return len(ix.names)
}

// Close releases the index.
func (ix *Index) Close() error {
	return ix.index.Close()
}
