// Package integration provides end-to-end tests (requires real storage and dataset files).
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/kusuri/internal/config"
	"github.com/hyperjump/kusuri/internal/dataset"
	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/internal/recommend"
	"github.com/hyperjump/kusuri/internal/server"
	"github.com/hyperjump/kusuri/internal/similarity"
	"github.com/hyperjump/kusuri/internal/snapshot"
	"github.com/hyperjump/kusuri/internal/storage"
)

const recordsCSV = `Medicine Name,Composition,Uses,Satisfaction Score,Side_effects,Manufacturer,Manufacturer_Weight
Augmentin 625 Duo Tablet,Amoxycillin (500mg) + Clavulanic Acid (125mg),Bacterial infections,47,Vomiting Nausea Diarrhea,Glaxo SmithKline Pharmaceuticals Ltd,0.4
Azithral 500 Tablet,Azithromycin (500mg),Bacterial infections,39,Vomiting Nausea Abdominal pain Diarrhea,Alembic Pharmaceuticals Ltd,0.2
Ascoril LS Syrup,Ambroxol (30mg/5ml) + Levosalbutamol (1mg/5ml) + Guaifenesin (50mg/5ml),Cough with mucus,41,Nausea Vomiting Diarrhea,Glenmark Pharmaceuticals Ltd,0.3
Allegra 120mg Tablet,Fexofenadine (120mg),Sneezing and runny nose due to allergies,51,Headache Drowsiness Dizziness Nausea,Sanofi India Ltd,0.5
`

var simRows = [][]float64{
	{1, 0.8, 0.1, 0.05},
	{0.8, 1, 0.15, 0.1},
	{0.1, 0.15, 1, 0.3},
	{0.05, 0.1, 0.3, 1},
}

// setup imports the CSV into SQLite, writes the matrix, and serves the SQLite-backed dataset.
func setup(t *testing.T) (*httptest.Server, *snapshot.Holder, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "medicines.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(recordsCSV), 0600))

	cfg := config.Default()
	cfg.Data.RecordsPath = filepath.Join(dir, "kusuri.db")
	cfg.Data.DatabasePath = cfg.Data.RecordsPath
	cfg.Data.SimilarityPath = filepath.Join(dir, "model", "cosine_sim.bin")

	recs, err := dataset.Load(csvPath)
	require.NoError(t, err)
	store, err := storage.NewSQLiteStorage(cfg.Data.DatabasePath)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceRecords(context.Background(), recs))
	require.NoError(t, store.Close())

	m, err := similarity.New(simRows)
	require.NoError(t, err)
	require.NoError(t, similarity.Save(cfg.Data.SimilarityPath, m))

	loader := &snapshot.Loader{
		RecordsPath:    cfg.Data.RecordsPath,
		SimilarityPath: cfg.Data.SimilarityPath,
		Suggest:        true,
		Fuzziness:      cfg.Suggest.Fuzziness,
	}
	holder := snapshot.NewHolder(loader.Load)
	_, err = holder.Reload()
	require.NoError(t, err)

	engine := recommend.NewEngine(holder, recommend.WithOverFetch(cfg.Recommend.OverFetch))
	srv := httptest.NewServer(server.NewServer(engine, holder, cfg, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv, holder, cfg
}

func post(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIntegration_Recommend(t *testing.T) {
	srv, _, _ := setup(t)

	resp := post(t, srv.URL+"/api/v1/recommend", map[string]interface{}{
		"medicine_name": "augmentin 625 duo tablet",
		"top_n":         2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.RecommendationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Results, 2)
	assert.Equal(t, "Azithral 500 Tablet", out.Results[0].Name)
	assert.Equal(t, "Ascoril LS Syrup", out.Results[1].Name)
	assert.NotEmpty(t, out.SnapshotVersion)
	for _, r := range out.Results {
		assert.NotEqual(t, "Augmentin 625 Duo Tablet", r.Name, "query record must not be recommended")
		assert.GreaterOrEqual(t, r.SatisfactionScore, 0.0)
		assert.LessOrEqual(t, r.SatisfactionScore, 1.0)
	}
}

func TestIntegration_LegacyEndpoint(t *testing.T) {
	srv, _, _ := setup(t)

	resp := post(t, srv.URL+"/recommend", map[string]interface{}{
		"medicine_name":           "Allegra 120mg Tablet",
		"top_n":                   3,
		"satisfaction_projection": "raw",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 3)
	assert.Equal(t, "Ascoril LS Syrup", out[0]["Medicine Name"])
	assert.EqualValues(t, 41, out[0]["Satisfaction Score"])
}

func TestIntegration_NotFoundSuggests(t *testing.T) {
	srv, _, _ := setup(t)

	resp := post(t, srv.URL+"/api/v1/recommend", map[string]interface{}{"medicine_name": "Azithrall 500"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var out struct {
		Error       string   `json:"error"`
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Error, "Azithrall 500")
	assert.Contains(t, out.Suggestions, "Azithral 500 Tablet")
}

func TestIntegration_ReloadPicksUpNewDataset(t *testing.T) {
	srv, holder, cfg := setup(t)
	before := holder.Current()

	// Drop the last record and shrink the matrix to match.
	recs, err := dataset.Load(cfg.Data.RecordsPath)
	require.NoError(t, err)
	store, err := storage.NewSQLiteStorage(cfg.Data.DatabasePath)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceRecords(context.Background(), recs[:3]))
	require.NoError(t, store.Close())
	m, err := similarity.New([][]float64{simRows[0][:3], simRows[1][:3], simRows[2][:3]})
	require.NoError(t, err)
	require.NoError(t, similarity.Save(cfg.Data.SimilarityPath, m))

	resp := post(t, srv.URL+"/api/v1/reload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	after := holder.Current()
	assert.NotEqual(t, before.Version, after.Version)
	assert.Equal(t, 3, after.Records.Len())

	resp = post(t, srv.URL+"/api/v1/recommend", map[string]interface{}{"medicine_name": "Allegra 120mg Tablet"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_FailedReloadKeepsServing(t *testing.T) {
	srv, holder, cfg := setup(t)
	before := holder.Current()

	// A matrix that no longer matches the record count.
	m, err := similarity.New([][]float64{{1, 0}, {0, 1}})
	require.NoError(t, err)
	require.NoError(t, similarity.Save(cfg.Data.SimilarityPath, m))

	resp := post(t, srv.URL+"/api/v1/reload", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Same(t, before, holder.Current())

	resp = post(t, srv.URL+"/api/v1/recommend", map[string]interface{}{"medicine_name": "Allegra 120mg Tablet"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIntegration_Status(t *testing.T) {
	srv, holder, _ := setup(t)

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st models.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 4, st.Records)
	assert.Equal(t, holder.Current().Version, st.SnapshotVersion)
	assert.Positive(t, st.DiskUsageBytes)
}
