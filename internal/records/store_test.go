package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kusuri/internal/models"
)

func TestStore_FindIndex(t *testing.T) {
	s, err := NewStore([]models.ItemRecord{
		{Name: "Aspirin"},
		{Name: "Dolo 650"},
		{Name: "ASPIRIN"},
	})
	require.NoError(t, err)

	tests := []struct {
		query string
		want  int
		found bool
	}{
		{"Aspirin", 0, true},
		{"aspirin", 0, true},
		{"ASPIRIN", 0, true}, // duplicate by case resolves to the first record
		{"dolo 650", 1, true},
		{"dolo", 0, false},
		{" Dolo 650", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := s.FindIndex(tt.query)
		assert.Equal(t, tt.found, ok, "FindIndex(%q) found", tt.query)
		if tt.found {
			assert.Equal(t, tt.want, got, "FindIndex(%q)", tt.query)
		}
	}
}

func TestStore_Immutable(t *testing.T) {
	src := []models.ItemRecord{{Name: "A", SatisfactionScore: 1}}
	s, err := NewStore(src)
	require.NoError(t, err)

	src[0].Name = "changed"
	assert.Equal(t, "A", s.Get(0).Name, "store must copy its input")

	names := s.Names()
	names[0] = "changed"
	assert.Equal(t, []string{"A"}, s.Names())
	assert.Equal(t, 1, s.Len())
}

func TestNewStore_EmptyName(t *testing.T) {
	_, err := NewStore([]models.ItemRecord{{Name: "A"}, {Name: ""}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
}

func TestNewStore_Empty(t *testing.T) {
	s, err := NewStore(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	_, ok := s.FindIndex("anything")
	assert.False(t, ok)
}
