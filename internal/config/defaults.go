package config

// ApplyDefaults sets default values for any zero values in cfg.
// Weights are only defaulted when all four are zero, so a config can set
// a single weight to 0 without the others being reset.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Data.RecordsPath == "" {
		cfg.Data.RecordsPath = "/usr/local/var/kusuri/data/medicines_cleaned.csv"
	}
	if cfg.Data.SimilarityPath == "" {
		cfg.Data.SimilarityPath = "/usr/local/var/kusuri/model/cosine_sim.bin"
	}
	if cfg.Data.DatabasePath == "" {
		cfg.Data.DatabasePath = "/usr/local/var/kusuri/data/kusuri.db"
	}
	if cfg.Recommend.DefaultResultSize == 0 {
		cfg.Recommend.DefaultResultSize = 5
	}
	if cfg.Recommend.MaxResultSize == 0 {
		cfg.Recommend.MaxResultSize = 100
	}
	if cfg.Recommend.OverFetch == 0 {
		cfg.Recommend.OverFetch = 10
	}
	r := &cfg.Recommend
	if r.Alpha == 0 && r.SatisfactionWeight == 0 && r.SideEffectWeight == 0 && r.ManufacturerWeight == 0 {
		r.Alpha = 0.8
		r.SatisfactionWeight = 0.3
		r.SideEffectWeight = 0.2
		r.ManufacturerWeight = 0.3
	}
	if cfg.Recommend.SatisfactionProjection == "" {
		cfg.Recommend.SatisfactionProjection = "normalized"
	}
	if cfg.Suggest.Limit == 0 {
		cfg.Suggest.Limit = 5
	}
	if cfg.Suggest.Fuzziness == 0 {
		cfg.Suggest.Fuzziness = 2
	}
}

// Default returns a config with every default applied. Used by `kusuri init`.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	t := true
	cfg.Data.Watch = &t
	cfg.Suggest.Enabled = &t
	return cfg
}
