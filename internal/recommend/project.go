package recommend

import "github.com/hyperjump/kusuri/internal/models"

// Project converts ranked candidates to the public result shape. Similarity and score are
// dropped. The satisfaction field carries the normalized or stored value per projection.
func Project(cands []Candidate, store RecordSource, projection models.SatisfactionProjection) []models.Recommendation {
	out := make([]models.Recommendation, len(cands))
	for i, c := range cands {
		rec := store.Get(c.Index)
		sat := c.NormalizedSatisfaction
		if projection == models.ProjectionRaw {
			sat = rec.SatisfactionScore
		}
		out[i] = models.Recommendation{
			Name:              rec.Name,
			Composition:       rec.Composition,
			Uses:              rec.Uses,
			SatisfactionScore: sat,
			SideEffects:       rec.SideEffects,
			Manufacturer:      rec.Manufacturer,
		}
	}
	return out
}
