package models

// Recommendation is one recommended medicine. Internal scores (similarity, final score)
// are never exposed.
type Recommendation struct {
	Name              string  `json:"name"`
	Composition       string  `json:"composition"`
	Uses              string  `json:"uses"`
	SatisfactionScore float64 `json:"satisfaction_score"`
	SideEffects       string  `json:"side_effects"`
	Manufacturer      string  `json:"manufacturer"`
}

// RecommendationResponse is the response for a recommendation request.
// Results are in rank order, best first.
type RecommendationResponse struct {
	Query           string           `json:"query"`
	Results         []Recommendation `json:"results"`
	Count           int              `json:"count"`
	Projection      string           `json:"satisfaction_projection"`
	SnapshotVersion string           `json:"snapshot_version,omitempty"`
	QueryTime       int64            `json:"query_time_ms"`
}

// LegacyRecommendation uses the dataset column names of the v0 recommendation API
// so existing clients keep working against POST /recommend.
type LegacyRecommendation struct {
	Name              string  `json:"Medicine Name"`
	Composition       string  `json:"Composition"`
	Uses              string  `json:"Uses"`
	SatisfactionScore float64 `json:"Satisfaction Score"`
	SideEffects       string  `json:"Side_effects"`
	Manufacturer      string  `json:"Manufacturer"`
}

// Legacy converts r to the v0 API shape.
func (r Recommendation) Legacy() LegacyRecommendation {
	return LegacyRecommendation{
		Name:              r.Name,
		Composition:       r.Composition,
		Uses:              r.Uses,
		SatisfactionScore: r.SatisfactionScore,
		SideEffects:       r.SideEffects,
		Manufacturer:      r.Manufacturer,
	}
}
