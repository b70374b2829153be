// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kusuri/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS medicines (
		position INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		composition TEXT NOT NULL DEFAULT '',
		uses TEXT NOT NULL DEFAULT '',
		satisfaction_score REAL NOT NULL,
		side_effects TEXT NOT NULL DEFAULT '',
		manufacturer TEXT NOT NULL DEFAULT '',
		manufacturer_weight REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_medicines_name ON medicines(name COLLATE NOCASE);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceRecords deletes every stored record and inserts records in one transaction.
// Positions are assigned from the slice order.
func (s *SQLiteStorage) ReplaceRecords(ctx context.Context, records []models.ItemRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM medicines`); err != nil {
		return fmt.Errorf("failed to clear medicines: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO medicines (position, name, composition, uses, satisfaction_score, side_effects, manufacturer, manufacturer_weight)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, i, r.Name, r.Composition, r.Uses, r.SatisfactionScore,
			r.SideEffects, r.Manufacturer, r.ManufacturerWeight); err != nil {
			return fmt.Errorf("failed to insert record %d (%s): %w", i, r.Name, err)
		}
	}
	return tx.Commit()
}

// ListRecords returns all records ordered by position.
func (s *SQLiteStorage) ListRecords(ctx context.Context) ([]models.ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, composition, uses, satisfaction_score, side_effects, manufacturer, manufacturer_weight
		 FROM medicines ORDER BY position`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ItemRecord
	for rows.Next() {
		var r models.ItemRecord
		if err := rows.Scan(&r.Name, &r.Composition, &r.Uses, &r.SatisfactionScore,
			&r.SideEffects, &r.Manufacturer, &r.ManufacturerWeight); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountRecords returns the total number of records.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM medicines`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
