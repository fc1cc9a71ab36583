package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"borsatahmin/config"
	"borsatahmin/logger"
)

// ErrModelNotFound is returned when no artifact exists for a symbol and
// horizon, including after the legacy fallback.
var ErrModelNotFound = errors.New("model artifact not found")

// Store persists classifier artifacts as timestamped JSON files and resolves
// the newest one per symbol and horizon.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// ArtifactName builds the canonical file name for a trained model:
// SYMBOL_HORIZON_Model_YYYYMMDD_HHMMSS.json with the exchange suffix removed.
func ArtifactName(symbol string, horizon config.Horizon, trainedAt string) string {
	return fmt.Sprintf("%s_%s_Model_%s.json", baseSymbol(symbol), horizon, trainedAt)
}

func baseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSuffix(symbol, ".IS"))
}

// Save writes the classifier artifact atomically and returns its path.
func (s *Store) Save(c *Classifier) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("model store: %w", err)
	}

	name := ArtifactName(c.Symbol, c.Horizon, c.TrainedAt.Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("model store: encode %s: %w", c.Symbol, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp*")
	if err != nil {
		return "", fmt.Errorf("model store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("model store: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("model store: %w", err)
	}
	s.updateIndex(c, name)
	return path, nil
}

// Load reads a classifier artifact from disk.
func (s *Store) Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model store: %w", err)
	}
	var c Classifier
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("model store: decode %s: %w", filepath.Base(path), err)
	}
	if c.Model == nil || c.Scaler == nil || len(c.Features) == 0 {
		return nil, fmt.Errorf("model store: %s is incomplete", filepath.Base(path))
	}
	return &c, nil
}

// Latest resolves the newest artifact for the symbol and horizon, first
// through the manifest, then by scanning file names. When no horizon-tagged
// file exists it falls back to the legacy SYMBOL_Model_* naming, which
// predates per-horizon models.
func (s *Store) Latest(symbol string, horizon config.Horizon) (string, error) {
	base := baseSymbol(symbol)

	if path, ok := s.lookupIndexed(symbol, horizon); ok {
		return path, nil
	}

	path, err := s.newestMatch(fmt.Sprintf("%s_%s_Model_", base, horizon))
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, ErrModelNotFound) {
		return "", err
	}

	legacy, lerr := s.newestMatch(fmt.Sprintf("%s_Model_", base))
	if lerr != nil {
		return "", fmt.Errorf("%w: %s %s", ErrModelNotFound, base, horizon)
	}
	logger.L().Warnw("using legacy model artifact without horizon tag",
		"symbol", base, "horizon", horizon, "file", filepath.Base(legacy))
	return legacy, nil
}

// LoadLatest is Latest followed by Load.
func (s *Store) LoadLatest(symbol string, horizon config.Horizon) (*Classifier, error) {
	path, err := s.Latest(symbol, horizon)
	if err != nil {
		return nil, err
	}
	return s.Load(path)
}

func (s *Store) newestMatch(prefix string) (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrModelNotFound
		}
		return "", fmt.Errorf("model store: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", ErrModelNotFound
	}
	// Timestamps sort lexicographically, so the last name is the newest.
	sort.Strings(names)
	return filepath.Join(s.dir, names[len(names)-1]), nil
}

// ArtifactInfo is one row of the model inventory.
type ArtifactInfo struct {
	File      string         `json:"file"`
	Symbol    string         `json:"symbol"`
	Horizon   config.Horizon `json:"horizon,omitempty"`
	Legacy    bool           `json:"legacy,omitempty"`
	SizeBytes int64          `json:"size_bytes"`
}

// List inventories every artifact in the store directory.
func (s *Store) List() ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("model store: %w", err)
	}

	var out []ArtifactInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || !strings.Contains(name, "_Model_") {
			continue
		}
		info, ierr := e.Info()
		if ierr != nil {
			continue
		}

		item := ArtifactInfo{File: name, SizeBytes: info.Size()}
		head := name[:strings.Index(name, "_Model_")]
		if i := strings.IndexByte(head, '_'); i > 0 {
			item.Symbol = head[:i]
			item.Horizon = config.Horizon(head[i+1:])
		} else {
			item.Symbol = head
			item.Legacy = true
		}
		out = append(out, item)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].File < out[b].File })
	return out, nil
}
