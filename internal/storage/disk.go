package storage

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hyperjump/kusuri/internal/models"
)

// DataUsage stats each path and returns per-path usage plus the total byte count.
// Directories are summed recursively. Missing paths are reported with Exists=false.
func DataUsage(paths ...string) ([]models.DataFile, int64, error) {
	var (
		out   []models.DataFile
		total int64
	)
	for _, p := range paths {
		if p == "" {
			continue
		}
		u := models.DataFile{Path: p}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				out = append(out, u)
				continue
			}
			return nil, 0, err
		}
		u.Exists = true
		u.Modified = info.ModTime()
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return nil, 0, err
			}
			u.Bytes = n
		} else {
			u.Bytes = info.Size()
		}
		total += u.Bytes
		out = append(out, u)
	}
	return out, total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
