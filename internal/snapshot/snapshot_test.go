package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kusuri/internal/dataset"
	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/internal/records"
	"github.com/hyperjump/kusuri/internal/similarity"
)

func writeDataset(t *testing.T, dir string, names []string, rows [][]float64) *Loader {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(dataset.Columns, ",") + "\n")
	for _, n := range names {
		b.WriteString(n + ",comp,uses,0.5,none,Maker,0.1\n")
	}
	recPath := filepath.Join(dir, "medicines.csv")
	require.NoError(t, os.WriteFile(recPath, []byte(b.String()), 0644))

	m, err := similarity.New(rows)
	require.NoError(t, err)
	simPath := filepath.Join(dir, "cosine_sim.bin")
	require.NoError(t, similarity.Save(simPath, m))

	return &Loader{RecordsPath: recPath, SimilarityPath: simPath, Suggest: true, Fuzziness: 2}
}

func identity(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		rows[i][i] = 1
	}
	return rows
}

func TestNew_DimensionMismatch(t *testing.T) {
	store, err := records.NewStore([]models.ItemRecord{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	m, err := similarity.New(identity(3))
	require.NoError(t, err)

	_, err = New(store, m, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNew_Version(t *testing.T) {
	store, err := records.NewStore([]models.ItemRecord{{Name: "a"}})
	require.NoError(t, err)
	m, err := similarity.New(identity(1))
	require.NoError(t, err)

	s1, err := New(store, m, nil)
	require.NoError(t, err)
	s2, err := New(store, m, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, s1.Version)
	assert.NotEqual(t, s1.Version, s2.Version)
	assert.False(t, s1.LoadedAt.IsZero())
}

func TestLoader_Load(t *testing.T) {
	l := writeDataset(t, t.TempDir(), []string{"Alpha", "Beta", "Gamma"}, identity(3))
	s, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Records.Len())
	assert.Equal(t, 3, s.Similarity.Size())
	require.NotNil(t, s.Suggester)

	got, err := s.Suggester.Suggest("alph", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, got)
}

func TestLoader_Mismatch(t *testing.T) {
	l := writeDataset(t, t.TempDir(), []string{"Alpha", "Beta"}, identity(3))
	_, err := l.Load()
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLoader_NoSuggest(t *testing.T) {
	l := writeDataset(t, t.TempDir(), []string{"Alpha"}, identity(1))
	l.Suggest = false
	s, err := l.Load()
	require.NoError(t, err)
	assert.Nil(t, s.Suggester)
}

func TestLoader_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	l := &Loader{RecordsPath: filepath.Join(dir, "none.csv"), SimilarityPath: filepath.Join(dir, "none.bin")}
	_, err := l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load records")
}

func TestHolder_ReloadKeepsOldOnFailure(t *testing.T) {
	dir := t.TempDir()
	l := writeDataset(t, dir, []string{"Alpha", "Beta"}, identity(2))
	h := NewHolder(l.Load)
	assert.Nil(t, h.Current())

	first, err := h.Reload()
	require.NoError(t, err)
	assert.Same(t, first, h.Current())

	// Break alignment: three records against a 2×2 matrix.
	writeDataset(t, dir, []string{"Alpha", "Beta", "Gamma"}, identity(2))
	_, err = h.Reload()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.Same(t, first, h.Current(), "failed reload must not replace the snapshot")

	writeDataset(t, dir, []string{"Alpha", "Beta", "Gamma"}, identity(3))
	second, err := h.Reload()
	require.NoError(t, err)
	assert.Same(t, second, h.Current())
	assert.NotEqual(t, first.Version, second.Version)
}

func TestHolder_Swap(t *testing.T) {
	h := NewHolder(func() (*Snapshot, error) { return nil, errors.New("unused") })
	store, err := records.NewStore([]models.ItemRecord{{Name: "a"}})
	require.NoError(t, err)
	m, err := similarity.New(identity(1))
	require.NoError(t, err)
	s, err := New(store, m, nil)
	require.NoError(t, err)

	assert.Nil(t, h.Swap(s))
	assert.Same(t, s, h.Current())
	assert.Same(t, s, h.Swap(nil))
}

func TestHolder_ConcurrentReaders(t *testing.T) {
	l := writeDataset(t, t.TempDir(), []string{"Alpha", "Beta"}, identity(2))
	h := NewHolder(l.Load)
	_, err := h.Reload()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := h.Current()
				if s.Records.Len() != s.Similarity.Size() {
					t.Error("observed misaligned snapshot")
					return
				}
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := h.Reload()
		require.NoError(t, err)
	}
	wg.Wait()
}
