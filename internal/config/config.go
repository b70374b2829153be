// Package config provides configuration loading and structs for the Kusuri server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kusuri/internal/models"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Recommend RecommendConfig `yaml:"recommend"`
	Suggest   SuggestConfig   `yaml:"suggest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DataConfig holds the paths of the dataset artifacts.
type DataConfig struct {
	// RecordsPath is the medicine table (.csv, .xlsx, .db or .sqlite).
	RecordsPath string `yaml:"records_path"`
	// SimilarityPath is the precomputed similarity matrix aligned with RecordsPath.
	SimilarityPath string `yaml:"similarity_path"`
	// DatabasePath is where `kusuri import` writes records.
	DatabasePath string `yaml:"database_path"`
	// Watch reloads the snapshot when either artifact changes; defaults to true when unset.
	Watch *bool `yaml:"watch"`
}

// WatchOrDefault returns whether to hot-reload the dataset; defaults to true when unset.
func (d *DataConfig) WatchOrDefault() bool {
	if d.Watch != nil {
		return *d.Watch
	}
	return true
}

// RecommendConfig holds scoring defaults and limits.
type RecommendConfig struct {
	DefaultResultSize      int     `yaml:"default_result_size"`
	MaxResultSize          int     `yaml:"max_result_size"`
	OverFetch              int     `yaml:"over_fetch"`
	Alpha                  float64 `yaml:"alpha"`
	SatisfactionWeight     float64 `yaml:"satisfaction_weight"`
	SideEffectWeight       float64 `yaml:"side_effect_weight"`
	ManufacturerWeight     float64 `yaml:"manufacturer_weight"`
	SatisfactionProjection string  `yaml:"satisfaction_projection"`
}

// RequestDefaults returns the request defaults described by c.
func (c *RecommendConfig) RequestDefaults() models.RequestDefaults {
	projection, err := models.ParseProjection(c.SatisfactionProjection)
	if err != nil {
		projection = models.ProjectionNormalized
	}
	return models.RequestDefaults{
		ResultSize:         c.DefaultResultSize,
		Alpha:              c.Alpha,
		SatisfactionWeight: c.SatisfactionWeight,
		SideEffectWeight:   c.SideEffectWeight,
		ManufacturerWeight: c.ManufacturerWeight,
		Projection:         projection,
	}
}

// SuggestConfig holds "did you mean" settings for unknown medicine names.
type SuggestConfig struct {
	Enabled   *bool `yaml:"enabled"`
	Limit     int   `yaml:"limit"`
	Fuzziness int   `yaml:"fuzziness"`
}

// EnabledOrDefault returns whether suggestions are enabled; defaults to true when unset.
func (s *SuggestConfig) EnabledOrDefault() bool {
	if s.Enabled != nil {
		return *s.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies defaults and validates.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Data.RecordsPath = expandPath(cfg.Data.RecordsPath, configDir)
	cfg.Data.SimilarityPath = expandPath(cfg.Data.SimilarityPath, configDir)
	cfg.Data.DatabasePath = expandPath(cfg.Data.DatabasePath, configDir)

	return &cfg, nil
}

// Save writes the config to path. Used by `kusuri init`.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports settings that cannot be served.
func (c *Config) Validate() error {
	if _, err := models.ParseProjection(c.Recommend.SatisfactionProjection); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Recommend.OverFetch < 0 {
		return fmt.Errorf("invalid config: over_fetch must not be negative, got %d", c.Recommend.OverFetch)
	}
	if c.Recommend.DefaultResultSize < 1 {
		return fmt.Errorf("invalid config: default_result_size must be positive, got %d", c.Recommend.DefaultResultSize)
	}
	if c.Recommend.MaxResultSize < c.Recommend.DefaultResultSize {
		return fmt.Errorf("invalid config: max_result_size (%d) is below default_result_size (%d)",
			c.Recommend.MaxResultSize, c.Recommend.DefaultResultSize)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
