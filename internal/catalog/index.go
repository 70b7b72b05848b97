package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	indexFileName = "plants_vector_index.json"
	maxIndexAge   = time.Hour
)

// vectorIndex is the persisted embedding index. It is rebuilt when older
// than maxIndexAge or when it no longer describes the current plant set.
type vectorIndex struct {
	BuiltAt time.Time   `json:"built_at"`
	Plants  []Plant     `json:"plants"`
	Vectors [][]float32 `json:"vectors"`
}

// fresh reports whether the stored vectors can stand in for this plant
// set. Position i of the index must name the same plant as position i of
// the list, otherwise similarity scores would attach to the wrong
// plants.
func (idx *vectorIndex) fresh(plants []Plant) bool {
	if time.Since(idx.BuiltAt) >= maxIndexAge {
		return false
	}
	if len(idx.Plants) != len(plants) || len(idx.Vectors) != len(idx.Plants) {
		return false
	}
	for i := range plants {
		if idx.Plants[i].Name != plants[i].Name {
			return false
		}
	}
	return true
}

func loadIndex(dataDir string) (*vectorIndex, error) {
	path := filepath.Join(dataDir, indexFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx vectorIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse vector index %s: %w", path, err)
	}
	return &idx, nil
}

func saveIndex(dataDir string, idx *vectorIndex) error {
	path := filepath.Join(dataDir, indexFileName)
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("failed to marshal vector index: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write vector index %s: %w", path, err)
	}
	log.Info("Vector index saved: %s (%d plants)", path, len(idx.Plants))
	return nil
}
