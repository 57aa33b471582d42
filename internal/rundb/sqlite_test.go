package rundb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDB_InsertListLookup(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	artifact := filepath.Join(dir, "run.bin")
	if err := os.WriteFile(artifact, []byte("not a real artifact"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	sum, err := FileSHA256(artifact)
	if err != nil {
		t.Fatalf("FileSHA256: %v", err)
	}

	r := Run{
		Path:         artifact,
		SHA256:       sum,
		Source:       "Singleplayer",
		TargetYaw:    -94.5,
		TargetHeight: 64,
		GridWidth:    36,
		GridHeight:   54,
		K:            16,
		Frames:       240,
		Windows:      220,
		Dropped:      5,
		CreatedAt:    time.Now(),
	}
	if _, err := db.Insert(ctx, r); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Re-packing the same path replaces the row instead of duplicating it.
	r.Windows = 221
	if _, err := db.Insert(ctx, r); err != nil {
		t.Fatalf("reinsert: %v", err)
	}

	runs, err := db.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs: got %d want 1", len(runs))
	}
	if runs[0].Windows != 221 || runs[0].SHA256 != sum {
		t.Fatalf("row: %+v", runs[0])
	}

	got, err := db.ByPath(ctx, artifact)
	if err != nil {
		t.Fatalf("ByPath: %v", err)
	}
	if got.K != 16 || got.GridWidth != 36 {
		t.Fatalf("lookup: %+v", got)
	}

	if _, err := db.ByPath(ctx, "missing.bin"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing path: got %v", err)
	}
}
