package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	stockFilePrefix    = "moysklad_stock_"
	filteredFilePrefix = "plants_filtered_"
	jsonFileSuffix     = ".json"

	maxOldStockFiles    = 2
	maxOldFilteredFiles = 3
)

func timestampedName(prefix string) string {
	return prefix + time.Now().Format("20060102_150405") + jsonFileSuffix
}

// writeSnapshot persists v as indented JSON in the data directory and
// returns the file path.
func writeSnapshot(dataDir, prefix string, v interface{}) (string, error) {
	path := filepath.Join(dataDir, timestampedName(prefix))
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	log.Info("Snapshot written: %s", path)
	return path, nil
}

// cleanupOldFiles removes snapshots beyond the newest keep files for the
// given prefix. Failures are logged, never fatal.
func cleanupOldFiles(dataDir, prefix string, keep int) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		log.Error("Failed to list %s for cleanup: %v", dataDir, err)
		return
	}

	type candidate struct {
		path  string
		mtime time.Time
	}
	var files []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) < len(prefix) || name[:len(prefix)] != prefix ||
			filepath.Ext(name) != jsonFileSuffix {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: filepath.Join(dataDir, name), mtime: info.ModTime()})
	}
	if len(files) <= keep {
		return
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mtime.After(files[j].mtime) })
	for _, f := range files[keep:] {
		if err := os.Remove(f.path); err != nil {
			log.Error("Failed to remove old snapshot %s: %v", f.path, err)
			continue
		}
		log.Info("Removed old snapshot: %s", f.path)
	}
}
