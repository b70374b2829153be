package snapshot

import (
	"fmt"

	"github.com/hyperjump/kusuri/internal/dataset"
	"github.com/hyperjump/kusuri/internal/records"
	"github.com/hyperjump/kusuri/internal/similarity"
	"github.com/hyperjump/kusuri/internal/suggest"
)

// Loader builds snapshots from the dataset files on disk.
type Loader struct {
	RecordsPath    string
	SimilarityPath string
	// Suggest builds the name index; Fuzziness is passed to it.
	Suggest   bool
	Fuzziness int
}

// Load reads both artifacts and returns a validated snapshot. Any failure leaves nothing
// half-built.
func (l *Loader) Load() (*Snapshot, error) {
	recs, err := dataset.Load(l.RecordsPath)
	if err != nil {
		return nil, fmt.Errorf("load records %s: %w", l.RecordsPath, err)
	}
	store, err := records.NewStore(recs)
	if err != nil {
		return nil, fmt.Errorf("load records %s: %w", l.RecordsPath, err)
	}
	sim, err := similarity.Load(l.SimilarityPath)
	if err != nil {
		return nil, fmt.Errorf("load similarity %s: %w", l.SimilarityPath, err)
	}
	// Check alignment before spending time on the name index.
	if sim.Size() != store.Len() {
		return nil, fmt.Errorf("%w: matrix is %d×%d, %d records", ErrDimensionMismatch, sim.Size(), sim.Size(), store.Len())
	}

	var sugg *suggest.Index
	if l.Suggest {
		sugg, err = suggest.Build(store.Names(), suggest.WithFuzziness(l.Fuzziness))
		if err != nil {
			return nil, err
		}
	}
	return New(store, sim, sugg)
}
