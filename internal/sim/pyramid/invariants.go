package pyramid

import "fmt"

// CheckInvariants verifies the structural and economic invariants of a
// node store. A violation is a programming (or data-corruption) error,
// not a user-facing failure, so it surfaces loudly as a Go error rather
// than an action result. Run on snapshot import and in tests.
func CheckInvariants(nodes map[string]*Node) error {
	rootCount := 0
	playerCount := 0
	for id, n := range nodes {
		if n == nil {
			return fmt.Errorf("node %s: nil record", id)
		}
		if n.ID != id {
			return fmt.Errorf("node %s: id field %q does not match key", id, n.ID)
		}
		if n.ParentID == "" {
			rootCount++
			if n.Level != 0 {
				return fmt.Errorf("root %s: level %d, want 0", id, n.Level)
			}
		}
		if n.Controller == ControllerPlayer {
			playerCount++
		}
		if n.Money < 0 {
			return fmt.Errorf("node %s: negative money %d", id, n.Money)
		}

		// Parent linkage and level arithmetic.
		if n.ParentID != "" {
			p := nodes[n.ParentID]
			if p == nil {
				return fmt.Errorf("node %s: parent %s missing", id, n.ParentID)
			}
			if n.Level != p.Level+1 {
				return fmt.Errorf("node %s: level %d, parent %s has %d", id, n.Level, p.ID, p.Level)
			}
			found := false
			for _, cid := range p.ChildIDs {
				if cid == id {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("node %s: not listed in parent %s children", id, n.ParentID)
			}
		}

		// Children point back.
		for _, cid := range n.ChildIDs {
			c := nodes[cid]
			if c == nil {
				return fmt.Errorf("node %s: child %s missing", id, cid)
			}
			if c.ParentID != id {
				return fmt.Errorf("node %s: child %s has parent %s", id, cid, c.ParentID)
			}
		}

		// Investments cache matches the map, entries positive.
		var sum int64
		for investorID, amt := range n.Investors {
			if amt <= 0 {
				return fmt.Errorf("node %s: non-positive stake %d from %s", id, amt, investorID)
			}
			sum += amt
		}
		if sum != n.InvestmentsReceived {
			return fmt.Errorf("node %s: investments cache %d, stakes sum %d", id, n.InvestmentsReceived, sum)
		}
	}

	if rootCount != 1 {
		return fmt.Errorf("store has %d roots, want exactly 1", rootCount)
	}
	if playerCount > 1 {
		return fmt.Errorf("store has %d player seats, want at most 1", playerCount)
	}

	// No cycles: every upline walk must reach the root within Level steps.
	for id, n := range nodes {
		steps := 0
		cur := n
		for cur.ParentID != "" {
			steps++
			if steps > n.Level {
				return fmt.Errorf("node %s: upline walk exceeds level %d, cycle suspected", id, n.Level)
			}
			cur = nodes[cur.ParentID]
			if cur == nil {
				break
			}
		}
	}
	return nil
}

// CheckInvariants runs the invariant check against the network's own
// store.
func (nw *Network) CheckInvariants() error {
	return CheckInvariants(nw.nodes)
}
