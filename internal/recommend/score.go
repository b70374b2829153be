package recommend

// Weights are the caller-tunable scoring coefficients. None are range-checked.
type Weights struct {
	Alpha              float64
	SatisfactionWeight float64
	SideEffectWeight   float64
	// ManufacturerWeight is carried for API compatibility and has no effect on scores.
	// The manufacturer term is the record's own reliability weight scaled by SideEffectWeight.
	ManufacturerWeight float64
}

// CompositeScore returns
//
//	alpha*similarity + (1-alpha)*satisfactionWeight*normalizedSatisfaction - sideEffectWeight*manufacturerWeight
//
// where manufacturerWeight is the candidate record's reliability weight.
func CompositeScore(c Candidate, w Weights) float64 {
	return w.Alpha*c.Similarity +
		(1-w.Alpha)*w.SatisfactionWeight*c.NormalizedSatisfaction -
		w.SideEffectWeight*c.ManufacturerWeight
}

// Score sets the composite score of every candidate.
func Score(cands []Candidate, w Weights) {
	for i := range cands {
		cands[i].Score = CompositeScore(cands[i], w)
	}
}
