package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestDatabase(t *testing.T, dir string) *Database {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := NewDatabase(filepath.Join(dir, "test.db"), logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return db
}

func TestDatabasePeaks(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, t.TempDir())
	defer db.Close()

	peaks := []float64{0, 0.25, 0.5, 1}

	t.Run("MissingPeaks", func(t *testing.T) {
		_, found, err := db.LoadPeaks(ctx, "beats/one.mp3", 4)
		if err != nil {
			t.Fatalf("LoadPeaks: %v", err)
		}
		if found {
			t.Error("Expected nothing stored yet")
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		if err := db.SavePeaks(ctx, "beats/one.mp3", 4, peaks); err != nil {
			t.Fatalf("SavePeaks: %v", err)
		}
		loaded, found, err := db.LoadPeaks(ctx, "beats/one.mp3", 4)
		if err != nil || !found {
			t.Fatalf("Expected stored peaks, found=%v err=%v", found, err)
		}
		for i := range peaks {
			if loaded[i] != peaks[i] {
				t.Errorf("Peak %d: expected %f, got %f", i, peaks[i], loaded[i])
			}
		}
	})

	t.Run("ResolutionIsPartOfKey", func(t *testing.T) {
		_, found, err := db.LoadPeaks(ctx, "beats/one.mp3", 8)
		if err != nil {
			t.Fatalf("LoadPeaks: %v", err)
		}
		if found {
			t.Error("Expected no peaks at a different resolution")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		replaced := []float64{1, 1, 1, 1}
		if err := db.SavePeaks(ctx, "beats/one.mp3", 4, replaced); err != nil {
			t.Fatalf("SavePeaks: %v", err)
		}
		loaded, _, _ := db.LoadPeaks(ctx, "beats/one.mp3", 4)
		if loaded[0] != 1 {
			t.Errorf("Expected overwritten peaks, got %v", loaded)
		}
		if count, _ := db.CountPeaks(ctx); count != 1 {
			t.Errorf("Expected 1 stored waveform, got %d", count)
		}
	})

	t.Run("RejectsWrongLength", func(t *testing.T) {
		if err := db.SavePeaks(ctx, "beats/two.mp3", 4, []float64{0.5}); err == nil {
			t.Error("Expected error for mismatched length")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := db.DeletePeaks(ctx, "beats/one.mp3"); err != nil {
			t.Fatalf("DeletePeaks: %v", err)
		}
		if _, found, _ := db.LoadPeaks(ctx, "beats/one.mp3", 4); found {
			t.Error("Expected peaks to be gone")
		}
	})
}

func TestDatabasePrune(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t, t.TempDir())
	defer db.Close()

	if err := db.SavePeaks(ctx, "old.mp3", 2, []float64{0, 1}); err != nil {
		t.Fatalf("SavePeaks: %v", err)
	}

	removed, err := db.PruneBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected fresh peaks to survive, removed %d", removed)
	}

	removed, err = db.PruneBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 pruned row, got %d", removed)
	}
}

func TestDatabaseReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db := newTestDatabase(t, dir)
	if err := db.SavePeaks(ctx, "kept.mp3", 3, []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("SavePeaks: %v", err)
	}
	db.Close()

	// Migrations must be safe to re-run on an existing file.
	db = newTestDatabase(t, dir)
	defer db.Close()

	if _, found, err := db.LoadPeaks(ctx, "kept.mp3", 3); err != nil || !found {
		t.Errorf("Expected peaks to survive reopen, found=%v err=%v", found, err)
	}
}
