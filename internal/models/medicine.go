// Package models defines core data structures for medicine records, recommendation requests, and results.
package models

// ItemRecord is one row of medicine metadata. Records are immutable once loaded.
type ItemRecord struct {
	Name              string  `json:"name" db:"name"`
	Composition       string  `json:"composition" db:"composition"`
	Uses              string  `json:"uses" db:"uses"`
	SatisfactionScore float64 `json:"satisfaction_score" db:"satisfaction_score"`
	SideEffects       string  `json:"side_effects" db:"side_effects"`
	Manufacturer      string  `json:"manufacturer" db:"manufacturer"`
	// ManufacturerWeight is the precomputed manufacturer reliability weight of the record.
	// It is unrelated to the manufacturer_weight a caller may send with a request.
	ManufacturerWeight float64 `json:"manufacturer_weight" db:"manufacturer_weight"`
}
