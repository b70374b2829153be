package recommend

import "sort"

// Rank returns the best n candidates by score descending, ties by ascending index.
// cands is not modified.
func Rank(cands []Candidate, n int) []Candidate {
	ranked := make([]Candidate, len(cands))
	copy(ranked, cands)
	sort.Slice(ranked, func(a, b int) bool {
		return before(ranked[a].Score, ranked[a].Index, ranked[b].Score, ranked[b].Index)
	})
	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
