package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/willibrandon/revdb/pkg/store"
)

func TestIndexStartsAtOrigin(t *testing.T) {
	ix := NewIndex(uuid.New())

	if ix.Len() != 1 {
		t.Fatalf("Expected only the origin checkpoint, got %d", ix.Len())
	}

	cp, ok := ix.Before(1000)
	if !ok {
		t.Fatal("Expected a checkpoint before step 1000")
	}
	if cp.Step != 0 || cp.Offset != 0 || cp.UniqueID != 1 {
		t.Errorf("Expected origin checkpoint, got %s", cp)
	}
}

func TestIndexAddAndBefore(t *testing.T) {
	ix := NewIndex(uuid.New())
	ix.Add(Checkpoint{Step: 10, Offset: 80, UniqueID: 3})
	ix.Add(Checkpoint{Step: 30, Offset: 240, UniqueID: 9})
	// Out of order insert, as happens when a replay discovers checkpoints
	// after traveling back.
	ix.Add(Checkpoint{Step: 20, Offset: 160, UniqueID: 5})
	// Same step replaces.
	ix.Add(Checkpoint{Step: 20, Offset: 160, UniqueID: 5, State: []byte("s")})

	if ix.Len() != 4 {
		t.Fatalf("Expected 4 checkpoints, got %d", ix.Len())
	}

	testCases := []struct {
		step     uint64
		wantStep uint64
	}{
		{0, 0},
		{9, 0},
		{10, 10},
		{25, 20},
		{30, 30},
		{1 << 40, 30},
	}
	for _, tc := range testCases {
		cp, ok := ix.Before(tc.step)
		if !ok {
			t.Fatalf("Expected a checkpoint before %d", tc.step)
		}
		if cp.Step != tc.wantStep {
			t.Errorf("Before(%d): expected step %d, got %d", tc.step, tc.wantStep, cp.Step)
		}
	}

	cp, _ := ix.Before(20)
	if string(cp.State) != "s" {
		t.Errorf("Expected replaced checkpoint to carry state, got %q", cp.State)
	}

	steps := []uint64{}
	for _, c := range ix.Checkpoints() {
		steps = append(steps, c.Step)
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] <= steps[i-1] {
			t.Fatalf("Checkpoints not ordered: %v", steps)
		}
	}

	ix.Clear()
	if ix.Len() != 1 || ix.TotalSteps != 0 {
		t.Errorf("Expected only origin after clear, got %d", ix.Len())
	}
}

func TestIndexFileRoundTrip(t *testing.T) {
	compressionTypes := []store.CompressionType{
		store.NoCompression,
		store.ZstdCompression,
	}

	for _, compressionType := range compressionTypes {
		t.Run(compressionType.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "run.revdb.idx")

			ix := NewIndex(uuid.New())
			ix.TotalSteps = 42
			ix.Add(Checkpoint{Step: 10, Offset: 80, UniqueID: 3, State: []byte{1, 2, 3}})
			ix.Add(Checkpoint{Step: 20, Offset: 160, UniqueID: 5})

			err := WriteIndexFile(path, ix, IndexFileOptions{CompressionType: compressionType})
			if err != nil {
				t.Fatalf("Failed to write index: %v", err)
			}

			got, err := ReadIndexFile(path)
			if err != nil {
				t.Fatalf("Failed to read index: %v", err)
			}

			if got.SessionID != ix.SessionID {
				t.Errorf("Expected session %s, got %s", ix.SessionID, got.SessionID)
			}
			if got.TotalSteps != 42 {
				t.Errorf("Expected 42 total steps, got %d", got.TotalSteps)
			}
			if got.Len() != ix.Len() {
				t.Fatalf("Expected %d checkpoints, got %d", ix.Len(), got.Len())
			}
			for i, c := range got.Checkpoints() {
				want := ix.Checkpoints()[i]
				if c.Step != want.Step || c.Offset != want.Offset || c.UniqueID != want.UniqueID ||
					string(c.State) != string(want.State) {
					t.Errorf("Checkpoint %d: expected %s, got %s", i, want, c)
				}
			}
		})
	}
}

func TestLoadIndexFor(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.revdb")
	id := uuid.New()

	// Missing index falls back to the origin.
	ix, err := LoadIndexFor(logPath, id)
	if err != nil {
		t.Fatalf("Unexpected error for missing index: %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("Expected origin-only index, got %d checkpoints", ix.Len())
	}

	if err := WriteIndexFile(IndexPath(logPath), NewIndex(uuid.New()), DefaultIndexFileOptions()); err != nil {
		t.Fatalf("Failed to write index: %v", err)
	}
	_, err = LoadIndexFor(logPath, id)
	if !errors.Is(err, ErrIndexMismatch) {
		t.Errorf("Expected ErrIndexMismatch, got %v", err)
	}
}

func TestReadIndexFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.idx")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if _, err := ReadIndexFile(path); err == nil {
		t.Error("Expected error reading empty index")
	}
}
