package models

import "fmt"

// SatisfactionProjection selects which satisfaction value is exposed in results.
type SatisfactionProjection string

const (
	// ProjectionNormalized exposes the satisfaction score min-max normalized within the candidate set.
	ProjectionNormalized SatisfactionProjection = "normalized"
	// ProjectionRaw exposes the satisfaction score as stored in the dataset.
	ProjectionRaw SatisfactionProjection = "raw"
)

// ParseProjection parses s into a SatisfactionProjection. Empty input yields ProjectionNormalized.
func ParseProjection(s string) (SatisfactionProjection, error) {
	switch SatisfactionProjection(s) {
	case "", ProjectionNormalized:
		return ProjectionNormalized, nil
	case ProjectionRaw:
		return ProjectionRaw, nil
	default:
		return "", fmt.Errorf("unknown satisfaction projection %q (supported: normalized, raw)", s)
	}
}

// RecommendationRequest is a fully resolved recommendation request.
// Weights are deliberately unconstrained: out-of-range values are accepted as-is.
type RecommendationRequest struct {
	Query              string                 `json:"medicine_name" validate:"required"`
	ResultSize         int                    `json:"top_n" validate:"min=1"`
	Alpha              float64                `json:"alpha"`
	SatisfactionWeight float64                `json:"satisfaction_weight"`
	SideEffectWeight   float64                `json:"side_effect_weight"`
	// ManufacturerWeight is accepted for API compatibility but does not take part in scoring.
	ManufacturerWeight float64                `json:"manufacturer_weight"`
	Projection         SatisfactionProjection `json:"satisfaction_projection" validate:"oneof=normalized raw"`
}

// RequestDefaults are the values used for fields a caller leaves out.
type RequestDefaults struct {
	ResultSize         int
	Alpha              float64
	SatisfactionWeight float64
	SideEffectWeight   float64
	ManufacturerWeight float64
	Projection         SatisfactionProjection
}

// DefaultRequestDefaults returns the stock defaults of the recommendation API.
func DefaultRequestDefaults() RequestDefaults {
	return RequestDefaults{
		ResultSize:         5,
		Alpha:              0.8,
		SatisfactionWeight: 0.3,
		SideEffectWeight:   0.2,
		ManufacturerWeight: 0.3,
		Projection:         ProjectionNormalized,
	}
}

// RecommendationInput is the wire form of a recommendation request.
// Nil fields were absent from the payload and take their defaults in Resolve,
// so an explicit zero (e.g. "alpha": 0) is kept.
type RecommendationInput struct {
	MedicineName       string   `json:"medicine_name"`
	TopN               *int     `json:"top_n,omitempty"`
	Alpha              *float64 `json:"alpha,omitempty"`
	SatisfactionWeight *float64 `json:"satisfaction_weight,omitempty"`
	SideEffectWeight   *float64 `json:"side_effect_weight,omitempty"`
	ManufacturerWeight *float64 `json:"manufacturer_weight,omitempty"`
	Projection         string   `json:"satisfaction_projection,omitempty"`
}

// Resolve fills absent fields from d and returns the resulting request.
func (in *RecommendationInput) Resolve(d RequestDefaults) *RecommendationRequest {
	req := &RecommendationRequest{
		Query:              in.MedicineName,
		ResultSize:         d.ResultSize,
		Alpha:              d.Alpha,
		SatisfactionWeight: d.SatisfactionWeight,
		SideEffectWeight:   d.SideEffectWeight,
		ManufacturerWeight: d.ManufacturerWeight,
		Projection:         d.Projection,
	}
	if in.TopN != nil {
		req.ResultSize = *in.TopN
	}
	if in.Alpha != nil {
		req.Alpha = *in.Alpha
	}
	if in.SatisfactionWeight != nil {
		req.SatisfactionWeight = *in.SatisfactionWeight
	}
	if in.SideEffectWeight != nil {
		req.SideEffectWeight = *in.SideEffectWeight
	}
	if in.ManufacturerWeight != nil {
		req.ManufacturerWeight = *in.ManufacturerWeight
	}
	if in.Projection != "" {
		req.Projection = SatisfactionProjection(in.Projection)
	}
	if req.Projection == "" {
		req.Projection = ProjectionNormalized
	}
	return req
}
