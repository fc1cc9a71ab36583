package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"borsatahmin/config"
	"borsatahmin/logger"
)

// ManifestName is the lookup manifest kept next to the artifacts.
const ManifestName = "index.json"

// ModelIndexEntry points at the newest artifact for one (symbol, horizon).
type ModelIndexEntry struct {
	Path      string    `json:"path"`
	Metrics   Metrics   `json:"metrics"`
	TrainedAt time.Time `json:"trained_at"`
}

// ModelIndex maps SYMBOL|HORIZON keys to artifact entries so lookups skip the
// directory scan. Save keeps it current; an entry pointing at a removed file
// triggers a rebuild from the artifact file names.
type ModelIndex struct {
	Entries map[string]ModelIndexEntry `json:"entries"`
}

func indexKey(symbol string, horizon config.Horizon) string {
	return baseSymbol(symbol) + "|" + string(horizon)
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, ManifestName)
}

// LoadIndex reads the manifest, returning an empty index when it is missing
// or unreadable.
func (s *Store) LoadIndex() *ModelIndex {
	idx := &ModelIndex{Entries: make(map[string]ModelIndexEntry)}
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		return idx
	}
	if err := json.Unmarshal(data, idx); err != nil || idx.Entries == nil {
		idx.Entries = make(map[string]ModelIndexEntry)
	}
	return idx
}

// RebuildIndex rescans the artifact directory and rewrites the manifest.
// Only the path and training time survive a rebuild from file names; metrics
// are restored by the next save.
func (s *Store) RebuildIndex() (*ModelIndex, error) {
	idx := &ModelIndex{Entries: make(map[string]ModelIndexEntry)}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("model index: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		mark := strings.Index(name, "_Model_")
		if mark <= 0 {
			continue
		}
		head := name[:mark]
		sep := strings.IndexByte(head, '_')
		if sep <= 0 {
			// Legacy artifact without a horizon tag; the filename fallback
			// resolves those.
			continue
		}
		trainedAt, terr := time.Parse("20060102_150405", strings.TrimSuffix(name[mark+len("_Model_"):], ".json"))
		if terr != nil {
			continue
		}
		key := head[:sep] + "|" + head[sep+1:]
		if cur, ok := idx.Entries[key]; ok && cur.TrainedAt.After(trainedAt) {
			continue
		}
		idx.Entries[key] = ModelIndexEntry{Path: name, TrainedAt: trainedAt}
	}

	if err := s.writeIndex(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// lookupIndexed resolves through the manifest, rebuilding it when the entry
// points at a file that no longer exists.
func (s *Store) lookupIndexed(symbol string, horizon config.Horizon) (string, bool) {
	key := indexKey(symbol, horizon)
	entry, ok := s.LoadIndex().Entries[key]
	if !ok {
		return "", false
	}
	path := filepath.Join(s.dir, entry.Path)
	if _, err := os.Stat(path); err == nil {
		return path, true
	}

	rebuilt, err := s.RebuildIndex()
	if err != nil {
		logger.L().Warnw("model index rebuild failed", "error", err)
		return "", false
	}
	if entry, ok := rebuilt.Entries[key]; ok {
		return filepath.Join(s.dir, entry.Path), true
	}
	return "", false
}

// updateIndex records a freshly saved artifact, keeping the newest per key.
func (s *Store) updateIndex(c *Classifier, file string) {
	idx := s.LoadIndex()
	key := indexKey(c.Symbol, c.Horizon)
	if cur, ok := idx.Entries[key]; ok && cur.TrainedAt.After(c.TrainedAt) {
		return
	}
	idx.Entries[key] = ModelIndexEntry{Path: file, Metrics: c.Metrics, TrainedAt: c.TrainedAt}
	if err := s.writeIndex(idx); err != nil {
		logger.L().Warnw("model index update failed", "file", file, "error", err)
	}
}

func (s *Store) writeIndex(idx *ModelIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("model index: encode: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ManifestName+".tmp*")
	if err != nil {
		return fmt.Errorf("model index: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("model index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.manifestPath()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("model index: %w", err)
	}
	return nil
}
