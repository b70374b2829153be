// Package storage defines the persistence interface for medicine records.
package storage

import (
	"context"

	"github.com/hyperjump/kusuri/internal/models"
)

// Storage persists an ordered medicine table. Order is significant: record i must line up
// with row i of the similarity matrix built for the same dataset.
type Storage interface {
	// ReplaceRecords atomically replaces the whole table, keeping the given order.
	ReplaceRecords(ctx context.Context, records []models.ItemRecord) error
	// ListRecords returns all records in stored order.
	ListRecords(ctx context.Context) ([]models.ItemRecord, error)
	CountRecords(ctx context.Context) (int64, error)

	Close() error
}
