// Package dataset reads the cleaned medicine table from CSV, Excel or SQLite files.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/kusuri/internal/models"
)

var (
	// ErrMissingColumn is returned when a required column is absent from the header row.
	ErrMissingColumn = errors.New("missing required column")
	// ErrUnsupportedFormat is returned for file extensions no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported records format")
)

// Column names as they appear in the cleaned dataset.
const (
	ColName               = "Medicine Name"
	ColComposition        = "Composition"
	ColUses               = "Uses"
	ColSatisfactionScore  = "Satisfaction Score"
	ColSideEffects        = "Side_effects"
	ColManufacturer       = "Manufacturer"
	ColManufacturerWeight = "Manufacturer_Weight"
)

// Columns lists the required columns in canonical order.
var Columns = []string{
	ColName, ColComposition, ColUses, ColSatisfactionScore,
	ColSideEffects, ColManufacturer, ColManufacturerWeight,
}

// Load reads the record table at path, choosing the reader by file extension.
func Load(path string) ([]models.ItemRecord, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return loadCSV(path)
	case ".xlsx":
		return loadExcel(path)
	case ".db", ".sqlite", ".sqlite3":
		return loadSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Read parses a record table from r. format is a file extension without the dot
// ("csv" or "xlsx"); SQLite needs a file and goes through Load.
func Read(r io.Reader, format string) ([]models.ItemRecord, error) {
	switch f := strings.ToLower(strings.TrimPrefix(format, ".")); f {
	case "csv":
		return ReadCSV(r)
	case "xlsx":
		return ReadExcel(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// headerKey folds a column header so that "Side_effects", "side effects" and
// "SIDE EFFECTS" compare equal.
func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(h, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// columnIndex maps each required column to its position in header.
func columnIndex(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		k := headerKey(h)
		if _, dup := pos[k]; !dup {
			pos[k] = i
		}
	}
	idx := make(map[string]int, len(Columns))
	var missing []string
	for _, c := range Columns {
		i, ok := pos[headerKey(c)]
		if !ok {
			missing = append(missing, c)
			continue
		}
		idx[c] = i
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

// parseRows converts a header plus data rows into records. Row numbers in errors are
// 1-based and count the header as row 1, matching what a spreadsheet shows.
func parseRows(header []string, rows [][]string) ([]models.ItemRecord, error) {
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}
	records := make([]models.ItemRecord, 0, len(rows))
	for r, row := range rows {
		if isBlank(row) {
			continue
		}
		line := r + 2
		cell := func(col string) string {
			i := idx[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		sat, err := parseFloat(cell(ColSatisfactionScore))
		if err != nil {
			return nil, fmt.Errorf("row %d, column %q: %w", line, ColSatisfactionScore, err)
		}
		weight, err := parseFloat(cell(ColManufacturerWeight))
		if err != nil {
			return nil, fmt.Errorf("row %d, column %q: %w", line, ColManufacturerWeight, err)
		}
		name := cell(ColName)
		if name == "" {
			return nil, fmt.Errorf("row %d: empty %q", line, ColName)
		}
		records = append(records, models.ItemRecord{
			Name:               name,
			Composition:        cell(ColComposition),
			Uses:               cell(ColUses),
			SatisfactionScore:  sat,
			SideEffects:        cell(ColSideEffects),
			Manufacturer:       cell(ColManufacturer),
			ManufacturerWeight: weight,
		})
	}
	return records, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
