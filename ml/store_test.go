package ml

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"borsatahmin/config"
)

func sampleClassifier(t *testing.T, symbol string, horizon config.Horizon) *Classifier {
	t.Helper()
	x, y := syntheticSplit(200)
	model := NewGBDT(testParams())
	if err := model.Fit(x, y, nil, nil); err != nil {
		t.Fatal(err)
	}
	scaler := &StandardScaler{}
	if err := scaler.Fit(x); err != nil {
		t.Fatal(err)
	}
	return &Classifier{
		Symbol:    symbol,
		Horizon:   horizon,
		Features:  []string{"f1", "f2"},
		Scaler:    scaler,
		Model:     model,
		TrainedAt: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestArtifactName(t *testing.T) {
	got := ArtifactName("THYAO.IS", config.ShortTerm, "20250601_103000")
	want := "THYAO_SHORT_TERM_Model_20250601_103000.json"
	if got != want {
		t.Errorf("ArtifactName() = %s, want %s", got, want)
	}
}

func TestStoreSaveLoadLatest(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	clf := sampleClassifier(t, "GARAN.IS", config.MediumTerm)
	path, err := store.Save(clf)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "GARAN_MEDIUM_TERM_Model_20250601_103000.json" {
		t.Errorf("saved as %s", filepath.Base(path))
	}

	loaded, err := store.LoadLatest("GARAN.IS", config.MediumTerm)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Symbol != clf.Symbol || len(loaded.Features) != 2 {
		t.Errorf("loaded artifact mismatch: %+v", loaded)
	}

	// Loaded model must score identically to the in-memory one.
	row := []float64{0.3, -0.4}
	want, _ := clf.Model.PredictProb(row)
	got, _ := loaded.Model.PredictProb(row)
	if got != want {
		t.Errorf("loaded score %v, want %v", got, want)
	}
}

func TestStorePicksNewestArtifact(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	older := sampleClassifier(t, "ASELS", config.ShortTerm)
	older.TrainedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.Save(older); err != nil {
		t.Fatal(err)
	}
	newer := sampleClassifier(t, "ASELS", config.ShortTerm)
	newer.TrainedAt = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.Save(newer); err != nil {
		t.Fatal(err)
	}

	path, err := store.Latest("ASELS", config.ShortTerm)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "ASELS_SHORT_TERM_Model_20250701_000000.json" {
		t.Errorf("Latest() = %s, want the newest artifact", filepath.Base(path))
	}
}

func TestStoreLegacyFallback(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	// Legacy artifact without a horizon tag, predating per-horizon models.
	legacy := sampleClassifier(t, "XYZ", config.ShortTerm)
	data, err := os.ReadFile(mustSave(t, store, legacy))
	if err != nil {
		t.Fatal(err)
	}
	legacyPath := filepath.Join(dir, "XYZ_Model_20240101_000000.json")
	if err := os.WriteFile(legacyPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(mustSavedPath(dir, "XYZ_SHORT_TERM_Model_20250601_103000.json")); err != nil {
		t.Fatal(err)
	}

	path, err := store.Latest("XYZ.IS", config.ShortTerm)
	if err != nil {
		t.Fatalf("legacy fallback failed: %v", err)
	}
	if filepath.Base(path) != "XYZ_Model_20240101_000000.json" {
		t.Errorf("Latest() = %s, want the legacy file", filepath.Base(path))
	}
}

func TestModelIndexMaintainedOnSave(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	clf := sampleClassifier(t, "THYAO.IS", config.MediumTerm)
	mustSave(t, store, clf)

	if _, err := os.Stat(filepath.Join(dir, ManifestName)); err != nil {
		t.Fatalf("manifest missing after save: %v", err)
	}

	entry, ok := store.LoadIndex().Entries["THYAO|MEDIUM_TERM"]
	if !ok {
		t.Fatal("no manifest entry for THYAO|MEDIUM_TERM")
	}
	if entry.Path != "THYAO_MEDIUM_TERM_Model_20250601_103000.json" {
		t.Errorf("entry path = %s", entry.Path)
	}
	if !entry.TrainedAt.Equal(clf.TrainedAt) {
		t.Errorf("entry trained_at = %v, want %v", entry.TrainedAt, clf.TrainedAt)
	}
}

func TestModelIndexStaleRebuild(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	older := sampleClassifier(t, "GARAN", config.ShortTerm)
	older.TrainedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mustSave(t, store, older)

	newer := sampleClassifier(t, "GARAN", config.ShortTerm)
	newer.TrainedAt = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	newerPath := mustSave(t, store, newer)

	// The manifest now points at a file that disappears out from under it.
	if err := os.Remove(newerPath); err != nil {
		t.Fatal(err)
	}

	path, err := store.Latest("GARAN", config.ShortTerm)
	if err != nil {
		t.Fatalf("Latest after stale entry: %v", err)
	}
	if filepath.Base(path) != "GARAN_SHORT_TERM_Model_20250101_000000.json" {
		t.Errorf("Latest() = %s, want the surviving artifact", filepath.Base(path))
	}

	entry, ok := store.LoadIndex().Entries["GARAN|SHORT_TERM"]
	if !ok {
		t.Fatal("rebuilt manifest lost the GARAN entry")
	}
	if entry.Path != "GARAN_SHORT_TERM_Model_20250101_000000.json" {
		t.Errorf("rebuilt entry path = %s", entry.Path)
	}
}

func TestStoreNotFound(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Latest("NOPE", config.LongTerm)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Latest() error = %v, want ErrModelNotFound", err)
	}
}

func mustSave(t *testing.T, store *Store, clf *Classifier) string {
	t.Helper()
	path, err := store.Save(clf)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func mustSavedPath(dir, name string) string {
	return filepath.Join(dir, name)
}
