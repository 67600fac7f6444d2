package payloads

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/promptstrike/promptstrike/pkg/finding"
	"github.com/promptstrike/promptstrike/pkg/jsonutil"
)

// Loader reads payload catalog files from a directory tree. Each JSON
// file holds an array of payloads; files are conventionally grouped in
// per-category subdirectories but any layout works.
type Loader struct {
	baseDir string
}

// NewLoader creates a loader rooted at baseDir.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// LoadAll walks the directory tree and loads every .json file into a
// fresh catalog, returning load statistics alongside it.
func (l *Loader) LoadAll() (*Catalog, LoadStats, error) {
	catalog := NewCatalog()
	stats := LoadStats{ByCategory: make(map[finding.Category]int)}

	err := filepath.Walk(l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}
		loaded, err := l.loadFile(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		if err := catalog.Add(loaded...); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		stats.FilesLoaded++
		stats.TotalPayloads += len(loaded)
		for _, p := range loaded {
			stats.ByCategory[p.Category]++
		}
		return nil
	})
	if err != nil {
		return nil, LoadStats{}, err
	}
	return catalog, stats, nil
}

func (l *Loader) loadFile(path string) ([]Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []Payload
	if err := jsonutil.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing payload file: %w", err)
	}
	return list, nil
}
