package indexdb

import (
	"path/filepath"
	"testing"

	"pyramid.gg/internal/protocol"
	"pyramid.gg/internal/sim/pyramid"
)

func TestSQLiteIndex_WriteAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for tick := uint64(1); tick <= 3; tick++ {
		entry := pyramid.TickLogEntry{Tick: tick, Digest: "d"}
		if tick == 1 {
			entry.Joins = []pyramid.RecordedJoin{{NodeID: "N000002", Name: "alice"}}
		}
		if tick == 2 {
			entry.Actions = []pyramid.RecordedAction{{
				NodeID: "N000002",
				Act: protocol.ActMsg{
					Type: protocol.TypeAct, ProtocolVersion: protocol.Version, Tick: 2,
					NodeID:  "N000002",
					Intents: []protocol.IntentReq{{ID: "I1", Type: "RECRUIT"}},
				},
			}}
		}
		if err := idx.WriteTick(entry); err != nil {
			t.Fatalf("write tick: %v", err)
		}
	}

	if err := idx.WriteAudit(pyramid.AuditEntry{
		Tick: 2, NodeID: "N000002", Kind: "ATTEMPT_COUP",
		Detail: map[string]any{"target": "N000001", "success": true, "cost": int64(240), "chance": 62.5},
	}); err != nil {
		t.Fatalf("write audit: %v", err)
	}
	if err := idx.WriteAudit(pyramid.AuditEntry{
		Tick: 2, NodeID: "N000002", Kind: "RECRUIT",
		Detail: map[string]any{"child": "N000005"},
	}); err != nil {
		t.Fatalf("write audit: %v", err)
	}
	idx.RecordSnapshot("/data/snap_000000000002.bin.zst", pyramid.Snapshot{
		Header: pyramid.SnapshotHeader{Version: 1, NetworkID: "net1", Tick: 2},
		Seed:   1337,
		Nodes:  []pyramid.NodeRecord{{ID: "N000001"}, {ID: "N000002"}},
	})

	// Close flushes the writer; reopen for the read side.
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	n, err := idx.TickCount()
	if err != nil || n != 3 {
		t.Fatalf("tick count = %d (%v), want 3", n, err)
	}

	ticks, err := idx.RecentTicks(10)
	if err != nil {
		t.Fatalf("recent ticks: %v", err)
	}
	if len(ticks) != 3 || ticks[0].Tick != 3 {
		t.Fatalf("ticks = %+v", ticks)
	}
	if ticks[2].Joins != 1 || ticks[1].Actions != 1 {
		t.Fatalf("counts not indexed: %+v", ticks)
	}

	coups, err := idx.RecentCoups(10)
	if err != nil {
		t.Fatalf("recent coups: %v", err)
	}
	if len(coups) != 1 {
		t.Fatalf("coups = %+v", coups)
	}
	c := coups[0]
	if c.Tick != 2 || c.Attacker != "N000002" || c.Target != "N000001" || !c.Success || c.Cost != 240 || c.Chance != 62.5 {
		t.Fatalf("coup row = %+v", c)
	}

	byAttacker, err := idx.CoupsByAttacker("N000002", 10)
	if err != nil || len(byAttacker) != 1 {
		t.Fatalf("by attacker = %+v (%v)", byAttacker, err)
	}
	if rows, err := idx.CoupsByAttacker("N000099", 10); err != nil || len(rows) != 0 {
		t.Fatalf("unknown attacker = %+v (%v)", rows, err)
	}

	snaps, err := idx.Snapshots(10)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("snapshots = %+v (%v)", snaps, err)
	}
	if snaps[0].Tick != 2 || snaps[0].Seed != 1337 || snaps[0].Nodes != 2 {
		t.Fatalf("snapshot row = %+v", snaps[0])
	}
}

func TestSQLiteIndex_NilAndClosedSafe(t *testing.T) {
	var idx *SQLiteIndex
	if err := idx.WriteTick(pyramid.TickLogEntry{Tick: 1}); err != nil {
		t.Fatalf("nil WriteTick: %v", err)
	}
	if err := idx.WriteAudit(pyramid.AuditEntry{Tick: 1}); err != nil {
		t.Fatalf("nil WriteAudit: %v", err)
	}
	idx.RecordSnapshot("x", pyramid.Snapshot{})

	live, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := live.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Writes after close are dropped, not panics.
	if err := live.WriteTick(pyramid.TickLogEntry{Tick: 2}); err != nil {
		t.Fatalf("closed WriteTick: %v", err)
	}
	if err := live.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}
