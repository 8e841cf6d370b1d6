package indexdb

// Read-side helpers for the admin tool. These run against a live or
// offline index file; the writer goroutine commits often enough that
// slightly stale reads are acceptable.

type TickRow struct {
	Tick    int64  `db:"tick"`
	Digest  string `db:"digest"`
	Joins   int    `db:"joins"`
	Leaves  int    `db:"leaves"`
	Actions int    `db:"actions"`
}

type CoupRow struct {
	Tick     int64   `db:"tick"`
	Attacker string  `db:"attacker"`
	Target   string  `db:"target"`
	Success  bool    `db:"success"`
	Cost     int64   `db:"cost"`
	Chance   float64 `db:"chance"`
}

type SnapshotInfoRow struct {
	Tick  int64  `db:"tick"`
	Path  string `db:"path"`
	Seed  int64  `db:"seed"`
	Nodes int    `db:"nodes"`
}

func (s *SQLiteIndex) RecentTicks(limit int) ([]TickRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []TickRow
	err := s.db.Select(&rows,
		`SELECT tick, digest, joins, leaves, actions FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
	return rows, err
}

func (s *SQLiteIndex) RecentCoups(limit int) ([]CoupRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []CoupRow
	err := s.db.Select(&rows,
		`SELECT tick, attacker, target, success, cost, chance FROM coups ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
	return rows, err
}

func (s *SQLiteIndex) CoupsByAttacker(nodeID string, limit int) ([]CoupRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []CoupRow
	err := s.db.Select(&rows,
		`SELECT tick, attacker, target, success, cost, chance FROM coups WHERE attacker = ? ORDER BY tick DESC LIMIT ?`,
		nodeID, limit)
	return rows, err
}

func (s *SQLiteIndex) Snapshots(limit int) ([]SnapshotInfoRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []SnapshotInfoRow
	err := s.db.Select(&rows,
		`SELECT tick, path, seed, nodes FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	return rows, err
}

func (s *SQLiteIndex) TickCount() (int64, error) {
	var n int64
	err := s.db.Get(&n, `SELECT COUNT(*) FROM ticks`)
	return n, err
}
