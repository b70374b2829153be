// Package records provides the read-only, ordered medicine table.
package records

import (
	"fmt"

	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/pkg/utils"
)

// Store is an immutable, ordered collection of medicine records with name lookup.
// Index i of the store is row i of the similarity matrix it is paired with.
type Store struct {
	records []models.ItemRecord
	byName  map[string]int
}

// NewStore copies recs into a new store. Every record must have a non-empty name.
func NewStore(recs []models.ItemRecord) (*Store, error) {
	s := &Store{
		records: make([]models.ItemRecord, len(recs)),
		byName:  make(map[string]int, len(recs)),
	}
	copy(s.records, recs)
	for i, r := range s.records {
		if r.Name == "" {
			return nil, fmt.Errorf("record %d has an empty name", i)
		}
		key := utils.FoldName(r.Name)
		// Names differing only in case resolve to the first record in storage order.
		if _, seen := s.byName[key]; !seen {
			s.byName[key] = i
		}
	}
	return s, nil
}

// FindIndex returns the index of the record whose name matches name case-insensitively.
func (s *Store) FindIndex(name string) (int, bool) {
	i, ok := s.byName[utils.FoldName(name)]
	return i, ok
}

// Get returns the record at index i. It panics if i is out of range.
func (s *Store) Get(i int) models.ItemRecord {
	return s.records[i]
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Names returns all record names in storage order.
func (s *Store) Names() []string {
	names := make([]string, len(s.records))
	for i, r := range s.records {
		names[i] = r.Name
	}
	return names
}
