// Package archive preserves era-end snapshots and prunes the working
// snapshot directory so long-running networks don't accumulate files
// without bound.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pyramid.gg/internal/sim/pyramid"
)

type EraArchiveMeta struct {
	Era       int    `json:"era"`
	EndTick   uint64 `json:"end_tick"`
	Seed      int64  `json:"seed"`
	NetworkID string `json:"network_id"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
	EraTicks  int    `json:"era_ticks"`
	Nodes     int    `json:"nodes"`
}

// ArchiveEraSnapshot copies an era-end snapshot into
// `networkDir/archives/era_<NNN>/`. It returns (era, archivedPath,
// archived=true) when the snapshot lands on an era boundary. Eras are
// counted from tick 0, so the era-end snapshot is at tick = eraTicks*k.
func ArchiveEraSnapshot(networkDir, snapshotPath string, snap pyramid.Snapshot, eraTicks int) (era int, archivedPath string, archived bool, err error) {
	if eraTicks <= 0 {
		return 0, "", false, nil
	}
	eraLen := uint64(eraTicks)
	if snap.Header.Tick == 0 || snap.Header.Tick%eraLen != 0 {
		return 0, "", false, nil
	}
	era = int(snap.Header.Tick / eraLen)

	archiveDir := filepath.Join(networkDir, "archives", fmt.Sprintf("era_%03d", era))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := EraArchiveMeta{
		Era:       era,
		EndTick:   snap.Header.Tick,
		Seed:      snap.Seed,
		NetworkID: snap.Header.NetworkID,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		EraTicks:  eraTicks,
		Nodes:     len(snap.Nodes),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return era, dst, true, nil
}

// PruneSnapshots removes all but the newest keep snapshot files under
// dir. keep <= 0 disables pruning. Archived era snapshots live in a
// separate tree and are never touched.
func PruneSnapshots(dir string, keep int) (removed int, err error) {
	if keep <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "snap_") && strings.HasSuffix(name, ".zst") {
			names = append(names, name)
		}
	}
	if len(names) <= keep {
		return 0, nil
	}
	// Zero-padded tick in the name makes lexical order tick order.
	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
