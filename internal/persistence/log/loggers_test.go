package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"pyramid.gg/internal/sim/pyramid"
)

func readJSONLZstd(t *testing.T, dir string, out func([]byte)) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd: %v", err)
		}
		sc := bufio.NewScanner(dec)
		for sc.Scan() {
			out(append([]byte(nil), sc.Bytes()...))
		}
		if err := sc.Err(); err != nil {
			t.Fatalf("scan: %v", err)
		}
		dec.Close()
		_ = f.Close()
	}
}

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)

	want := []pyramid.TickLogEntry{
		{
			Tick:   1,
			Joins:  []pyramid.RecordedJoin{{NodeID: "N000002", Name: "alice", Controller: "AI"}},
			Digest: "d1",
		},
		{
			Tick:   2,
			Leaves: []string{"N000002"},
			Digest: "d2",
		},
	}
	for _, e := range want {
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(dir, "ticks"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no tick files: %v", err)
	}
	name := files[0].Name()
	if !strings.HasPrefix(name, "ticks-") || !strings.HasSuffix(name, ".jsonl.zst") {
		t.Fatalf("unexpected file name %q", name)
	}

	var got []pyramid.TickLogEntry
	readJSONLZstd(t, filepath.Join(dir, "ticks"), func(line []byte) {
		var e pyramid.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, e)
	})
	if len(got) != len(want) {
		t.Fatalf("read %d entries, want %d", len(got), len(want))
	}
	if got[0].Tick != 1 || got[0].Joins[0].Name != "alice" || got[0].Joins[0].Controller != "AI" {
		t.Fatalf("entry 0 = %+v", got[0])
	}
	if got[1].Tick != 2 || got[1].Leaves[0] != "N000002" || got[1].Digest != "d2" {
		t.Fatalf("entry 1 = %+v", got[1])
	}
}

func TestAuditLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)

	err := l.WriteAudit(pyramid.AuditEntry{
		Tick:   9,
		NodeID: "N000004",
		Kind:   "ATTEMPT_COUP",
		Detail: map[string]any{"target": "N000002", "success": true, "cost": int64(240)},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	count := 0
	readJSONLZstd(t, filepath.Join(dir, "audit"), func(line []byte) {
		count++
		var e pyramid.AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if e.Tick != 9 || e.Kind != "ATTEMPT_COUP" || e.Detail["target"] != "N000002" {
			t.Fatalf("entry = %+v", e)
		}
	})
	if count != 1 {
		t.Fatalf("read %d entries, want 1", count)
	}
}
