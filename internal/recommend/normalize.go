package recommend

import (
	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/pkg/utils"
)

// RecordSource gives index-based access to records.
type RecordSource interface {
	Get(i int) models.ItemRecord
}

// NormalizeSatisfaction annotates each candidate with its record's satisfaction score
// min–max normalized over cands only, and with the record's manufacturer weight.
// When every candidate has the same satisfaction the normalized value is 0 for all.
func NormalizeSatisfaction(cands []Candidate, store RecordSource) {
	raw := make([]float64, len(cands))
	for i := range cands {
		rec := store.Get(cands[i].Index)
		raw[i] = rec.SatisfactionScore
		cands[i].ManufacturerWeight = rec.ManufacturerWeight
	}
	lo, hi, ok := utils.MinMax(raw)
	if !ok {
		return
	}
	span := hi - lo
	for i := range cands {
		if span == 0 {
			cands[i].NormalizedSatisfaction = 0
			continue
		}
		cands[i].NormalizedSatisfaction = (raw[i] - lo) / span
	}
}
