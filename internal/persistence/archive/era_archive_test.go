package archive

import (
	"os"
	"path/filepath"
	"testing"

	"pyramid.gg/internal/sim/pyramid"
)

func TestArchiveEraSnapshot_CopiesEraEndSnapshot(t *testing.T) {
	dir := t.TempDir()
	networkDir := filepath.Join(dir, "networks", "net1")
	src := filepath.Join(networkDir, "snapshots", "snap_000000006000.bin.zst")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := []byte("dummy")
	if err := os.WriteFile(src, want, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	snap := pyramid.Snapshot{
		Header: pyramid.SnapshotHeader{Version: 1, NetworkID: "net1", Tick: 6000},
		Seed:   42,
		Nodes:  []pyramid.NodeRecord{{ID: "N000001"}},
	}

	era, archivedPath, ok, err := ArchiveEraSnapshot(networkDir, src, snap, 3000)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok || era != 2 {
		t.Fatalf("era=%d ok=%v, want 2 true", era, ok)
	}

	got, err := os.ReadFile(archivedPath)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("archived content mismatch: got=%q want=%q", got, want)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(archivedPath), "meta.json")); err != nil {
		t.Fatalf("meta.json missing: %v", err)
	}
}

func TestArchiveEraSnapshot_SkipsOffBoundary(t *testing.T) {
	networkDir := t.TempDir()
	snap := pyramid.Snapshot{Header: pyramid.SnapshotHeader{Version: 1, Tick: 4500}}

	if _, _, ok, err := ArchiveEraSnapshot(networkDir, "unused", snap, 3000); ok || err != nil {
		t.Fatalf("mid-era snapshot archived: ok=%v err=%v", ok, err)
	}
	// Disabled and tick-zero cases.
	if _, _, ok, _ := ArchiveEraSnapshot(networkDir, "unused", snap, 0); ok {
		t.Fatalf("archived with eras disabled")
	}
	snap.Header.Tick = 0
	if _, _, ok, _ := ArchiveEraSnapshot(networkDir, "unused", snap, 3000); ok {
		t.Fatalf("archived the empty tick-0 snapshot")
	}
}

func TestPruneSnapshots(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"snap_000000000600.bin.zst",
		"snap_000000001200.bin.zst",
		"snap_000000001800.bin.zst",
		"snap_000000002400.bin.zst",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stray: %v", err)
	}

	removed, err := PruneSnapshots(dir, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	for _, name := range names[:2] {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("%s not pruned", name)
		}
	}
	for _, name := range append(names[2:], "notes.txt") {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s removed: %v", name, err)
		}
	}

	// keep <= 0 disables, missing dir is not an error.
	if n, err := PruneSnapshots(dir, 0); n != 0 || err != nil {
		t.Fatalf("disabled prune: %d %v", n, err)
	}
	if n, err := PruneSnapshots(filepath.Join(dir, "missing"), 2); n != 0 || err != nil {
		t.Fatalf("missing dir prune: %d %v", n, err)
	}
}
