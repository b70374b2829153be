// Package recommend implements the recommendation pipeline:
// Lookup → Select → Normalize → Score → Rank → Project.
package recommend

import (
	"math"
	"sort"

	"github.com/hyperjump/kusuri/internal/similarity"
)

// DefaultOverFetch is the number of candidates fetched beyond the requested result size,
// so that re-scoring can reorder within a slightly larger pool before truncation.
const DefaultOverFetch = 10

// Candidate is a record under consideration during one request.
type Candidate struct {
	Index                  int
	Similarity             float64
	NormalizedSatisfaction float64
	// ManufacturerWeight is the record's precomputed reliability weight.
	ManufacturerWeight float64
	Score              float64
}

// SelectCandidates returns the min(n+k, len(row)-1) most similar entries of row, excluding
// query itself. Order is similarity descending, ties by ascending index.
func SelectCandidates(query int, row []similarity.Entry, n, k int) []Candidate {
	if n < 0 {
		n = 0
	}
	if k < 0 {
		k = 0
	}
	cands := make([]Candidate, 0, len(row))
	for _, e := range row {
		if e.Index == query {
			continue
		}
		cands = append(cands, Candidate{Index: e.Index, Similarity: e.Similarity})
	}
	sort.Slice(cands, func(a, b int) bool {
		return before(cands[a].Similarity, cands[a].Index, cands[b].Similarity, cands[b].Index)
	})
	// n+k may overflow for huge n; compare without adding.
	if len(cands)-k > n {
		cands = cands[:n+k]
	}
	return cands
}

// before orders by value descending, then index ascending. NaN sorts after every number so
// the order stays total.
func before(va float64, ia int, vb float64, ib int) bool {
	aNaN, bNaN := math.IsNaN(va), math.IsNaN(vb)
	switch {
	case aNaN && bNaN:
		return ia < ib
	case aNaN:
		return false
	case bNaN:
		return true
	case va != vb:
		return va > vb
	default:
		return ia < ib
	}
}
