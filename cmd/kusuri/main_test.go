package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/kusuri/internal/config"
	"github.com/hyperjump/kusuri/internal/dataset"
	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/internal/similarity"
	"github.com/hyperjump/kusuri/internal/snapshot"
	"github.com/hyperjump/kusuri/internal/storage"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"Augmentin 625 Duo Tablet", "-top-n", "3"},
			expected: []string{"-top-n", "3", "Augmentin 625 Duo Tablet"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-top-n", "3", "Augmentin 625 Duo Tablet"},
			expected: []string{"-top-n", "3", "Augmentin 625 Duo Tablet"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"Augmentin 625 Duo Tablet"},
			expected: []string{"Augmentin 625 Duo Tablet"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"Dolo", "650", "-alpha", "0.5"},
			expected: []string{"-alpha", "0.5", "Dolo", "650"},
		},
		{
			name:     "stdin dash is positional",
			args:     []string{"-", "--format", "xlsx"},
			expected: []string{"--format", "xlsx", "-"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"Allegra"}, "Allegra"},
		{"multiple words", []string{"Augmentin", "625", "Duo", "Tablet"}, "Augmentin 625 Duo Tablet"},
		{"single quoted phrase", []string{"Azithral 500 Tablet"}, "Azithral 500 Tablet"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-top-n", "5", "query"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "query"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"config at end", []string{"query", "-config", "/end.yaml"}, "/default.yaml", "/end.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := configPathFromArgs(tt.args, tt.defaultPath)
			if got != tt.want {
				t.Errorf("configPathFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newRecommendFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	fs.Int("top-n", 5, "")
	fs.Float64("alpha", 0.8, "")
	fs.Float64("satisfaction-weight", 0.3, "")
	fs.Float64("side-effect-weight", 0.2, "")
	fs.Float64("manufacturer-weight", 0.3, "")
	fs.String("projection", "normalized", "")
	fs.String("output", "text", "")
	return fs
}

func TestRecommendInput_OnlySetFlags(t *testing.T) {
	fs := newRecommendFlags()
	if err := fs.Parse([]string{"-alpha", "0", "-top-n", "3", "Dolo 650"}); err != nil {
		t.Fatal(err)
	}
	in, err := recommendInput(fs, "Dolo 650")
	if err != nil {
		t.Fatal(err)
	}
	if in.MedicineName != "Dolo 650" {
		t.Errorf("MedicineName = %q", in.MedicineName)
	}
	if in.Alpha == nil || *in.Alpha != 0 {
		t.Errorf("explicit alpha 0 should be kept, got %v", in.Alpha)
	}
	if in.TopN == nil || *in.TopN != 3 {
		t.Errorf("TopN = %v, want 3", in.TopN)
	}
	if in.SatisfactionWeight != nil || in.SideEffectWeight != nil || in.ManufacturerWeight != nil {
		t.Error("unset weights should be left for the server to default")
	}
	if in.Projection != "" {
		t.Errorf("Projection = %q, want empty", in.Projection)
	}
}

func TestRecommendInput_BadProjection(t *testing.T) {
	fs := newRecommendFlags()
	if err := fs.Parse([]string{"-projection", "percent"}); err != nil {
		t.Fatal(err)
	}
	if _, err := recommendInput(fs, "x"); err == nil {
		t.Fatal("expected error for unknown projection")
	}
}

func TestRecommendViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/recommend" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var in models.RecommendationInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if in.MedicineName == "Unknown" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"medicine not found: Unknown","suggestions":["Unknwn Tablet"]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(models.RecommendationResponse{
			Query:   in.MedicineName,
			Results: []models.Recommendation{{Name: "B"}},
			Count:   1,
		})
	}))
	defer srv.Close()

	resp, err := recommendViaHTTP(srv.URL, &models.RecommendationInput{MedicineName: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Results[0].Name != "B" {
		t.Errorf("unexpected response: %+v", resp)
	}

	_, err = recommendViaHTTP(srv.URL, &models.RecommendationInput{MedicineName: "Unknown"})
	if err == nil {
		t.Fatal("expected not found error")
	}
	if !strings.Contains(err.Error(), "did you mean: Unknwn Tablet") {
		t.Errorf("error should carry suggestions: %v", err)
	}
}

const testRecordsCSV = `Medicine Name,Composition,Uses,Satisfaction Score,Side_effects,Manufacturer,Manufacturer_Weight
Alpha Tablet,Paracetamol (500mg),Fever,60,Nausea,Acme,0.1
Beta Tablet,Paracetamol (650mg),Fever,80,Nausea,Acme,0.5
Gamma Syrup,Ibuprofen (100mg),Pain,40,Rash,Zenith,0.2
`

// writeProject writes a config, records and matrix into dir and returns the config path.
func writeProject(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "medicines.csv"), []byte(testRecordsCSV), 0600); err != nil {
		t.Fatal(err)
	}
	m, err := similarity.New([][]float64{
		{1, 0.9, 0.2},
		{0.9, 1, 0.3},
		{0.2, 0.3, 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := similarity.Save(filepath.Join(dir, "data", "sim.bin"), m); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	content := `
data:
  records_path: ./data/medicines.csv
  similarity_path: ./data/sim.bin
  database_path: ./data/kusuri.db
  watch: false
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestRecommendDirect(t *testing.T) {
	configPath := writeProject(t, t.TempDir())
	one := 1
	resp, err := recommendDirect(configPath, &models.RecommendationInput{MedicineName: "alpha tablet", TopN: &one})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Results[0].Name != "Beta Tablet" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}

	_, err = recommendDirect(configPath, &models.RecommendationInput{MedicineName: "Alpha Tablt"})
	if err == nil {
		t.Fatal("expected not found")
	}
	if !strings.Contains(err.Error(), "Alpha Tablet") {
		t.Errorf("expected suggestion in error, got %v", err)
	}

	big := 1000
	if _, err := recommendDirect(configPath, &models.RecommendationInput{MedicineName: "Alpha Tablet", TopN: &big}); err == nil {
		t.Error("expected error for top_n above max_result_size")
	}
}

func TestImportRecords(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)
	dbPath := filepath.Join(dir, "data", "kusuri.db")

	recs, err := readRecords(filepath.Join(dir, "data", "medicines.csv"), "csv", nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := importRecords(context.Background(), recs, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("imported %d, want 3", n)
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	recs, err = store.ListRecords(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[0].Name != "Alpha Tablet" || recs[2].Name != "Gamma Syrup" {
		t.Errorf("unexpected records: %+v", recs)
	}
}

func TestReadRecords_Stdin(t *testing.T) {
	recs, err := readRecords("-", "csv", strings.NewReader(testRecordsCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[0].Name != "Alpha Tablet" {
		t.Errorf("unexpected records: %+v", recs)
	}

	dbPath := filepath.Join(t.TempDir(), "kusuri.db")
	n, err := importRecords(context.Background(), recs, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("imported %d, want 3", n)
	}

	if _, err := readRecords("-", "db", strings.NewReader(testRecordsCSV)); !errors.Is(err, dataset.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestConvertMatrix(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "sim.csv")
	if err := os.WriteFile(in, []byte("1,0.5\n0.5,1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "model", "sim.bin")

	size, err := convertMatrix(in, out, 2)
	if err != nil {
		t.Fatal(err)
	}
	if size != 2 {
		t.Errorf("size = %d, want 2", size)
	}
	m, err := similarity.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if m.At(0, 1) != 0.5 {
		t.Errorf("At(0,1) = %v, want 0.5", m.At(0, 1))
	}

	if _, err := convertMatrix(in, out, 3); !errors.Is(err, snapshot.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestStatusDirect(t *testing.T) {
	configPath := writeProject(t, t.TempDir())
	st, err := statusDirect(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if st.Records != 3 {
		t.Errorf("Records = %d, want 3", st.Records)
	}
	if st.SnapshotVersion == "" {
		t.Error("expected a snapshot version")
	}
	if st.WatchEnabled {
		t.Error("watch disabled in config")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Data.RecordsPath != filepath.Join(dir, "data", "medicines_cleaned.csv") {
		t.Errorf("records path should resolve next to the config, got %s", cfg.Data.RecordsPath)
	}
	if cfg.Recommend.Alpha != 0.8 {
		t.Errorf("Alpha = %v, want 0.8", cfg.Recommend.Alpha)
	}
	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("expected error when config exists")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("force should overwrite: %v", err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}
