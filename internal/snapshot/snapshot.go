// Package snapshot pairs the record table with its similarity matrix as one immutable unit
// and lets the server replace that unit atomically while requests are in flight.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/kusuri/internal/records"
	"github.com/hyperjump/kusuri/internal/similarity"
	"github.com/hyperjump/kusuri/internal/suggest"
)

// ErrDimensionMismatch is returned when the similarity matrix size differs from the record count.
var ErrDimensionMismatch = errors.New("similarity matrix size does not match record count")

// Snapshot is one consistent, read-only view of the dataset. A request reads from exactly
// one snapshot for its whole run.
type Snapshot struct {
	Version    string
	LoadedAt   time.Time
	Records    *records.Store
	Similarity *similarity.Matrix
	// Suggester is nil when name suggestions are disabled.
	Suggester *suggest.Index
}

// New validates that recs and sim are aligned and returns a snapshot with a fresh version.
func New(recs *records.Store, sim *similarity.Matrix, sugg *suggest.Index) (*Snapshot, error) {
	if recs == nil || sim == nil {
		return nil, errors.New("snapshot requires records and similarity matrix")
	}
	if sim.Size() != recs.Len() {
		return nil, fmt.Errorf("%w: matrix is %d×%d, %d records", ErrDimensionMismatch, sim.Size(), sim.Size(), recs.Len())
	}
	return &Snapshot{
		Version:    uuid.NewString(),
		LoadedAt:   time.Now(),
		Records:    recs,
		Similarity: sim,
		Suggester:  sugg,
	}, nil
}
