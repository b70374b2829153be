package dataset

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/internal/storage"
)

// loadSQLite reads the medicines table written by `kusuri import`.
func loadSQLite(path string) ([]models.ItemRecord, error) {
	// NewSQLiteStorage would create an empty database for a missing path.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	records, err := store.ListRecords(context.Background())
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}
