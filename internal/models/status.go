package models

import "time"

// DataFile describes one dataset artifact on disk.
type DataFile struct {
	Path     string    `json:"path"`
	Bytes    int64     `json:"bytes"`
	Exists   bool      `json:"exists"`
	Modified time.Time `json:"modified,omitempty"`
}

// Status is the response of GET /api/v1/status.
type Status struct {
	Records            int          `json:"records"`
	SnapshotVersion    string       `json:"snapshot_version"`
	LoadedAt           time.Time    `json:"loaded_at"`
	SuggestionsEnabled bool         `json:"suggestions_enabled"`
	WatchEnabled       bool         `json:"watch_enabled"`
	DiskUsageBytes     int64        `json:"disk_usage_bytes"`
	Files              []DataFile   `json:"files"`
	Config             StatusConfig `json:"config"`
}

// StatusConfig is the part of the configuration reported by status.
type StatusConfig struct {
	RecordsPath            string  `json:"records_path"`
	SimilarityPath         string  `json:"similarity_path"`
	DatabasePath           string  `json:"database_path"`
	DefaultResultSize      int     `json:"default_result_size"`
	MaxResultSize          int     `json:"max_result_size"`
	OverFetch              int     `json:"over_fetch"`
	Alpha                  float64 `json:"alpha"`
	SatisfactionWeight     float64 `json:"satisfaction_weight"`
	SideEffectWeight       float64 `json:"side_effect_weight"`
	ManufacturerWeight     float64 `json:"manufacturer_weight"`
	SatisfactionProjection string  `json:"satisfaction_projection"`
}
