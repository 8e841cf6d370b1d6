package pyramid

import (
	"strings"
	"testing"
)

func TestCheckInvariants_Passes(t *testing.T) {
	nw, m := newTestNetwork(t, 2, "alice", "bob", "carol")
	alice, bob := m["alice"], m["bob"]
	bob.Money = 500
	if code, reason := nw.applyInvest(alice.ID, bob.ID, 20, 0); code != "" {
		t.Fatalf("invest: %s %s", code, reason)
	}
	if err := nw.CheckInvariants(); err != nil {
		t.Fatalf("valid store flagged: %v", err)
	}
}

func TestCheckInvariants_Violations(t *testing.T) {
	cases := []struct {
		name    string
		corrupt func(nw *Network, m map[string]*Node)
		want    string
	}{
		{"two roots", func(nw *Network, m map[string]*Node) {
			alice := m["alice"]
			parent := nw.nodes[alice.ParentID]
			kept := parent.ChildIDs[:0]
			for _, cid := range parent.ChildIDs {
				if cid != alice.ID {
					kept = append(kept, cid)
				}
			}
			parent.ChildIDs = kept
			alice.ParentID = ""
			alice.Level = 0
			m["carol"].Level = 1
		}, "roots"},
		{"root with nonzero level", func(nw *Network, m map[string]*Node) {
			nw.nodes[nw.rootID].Level = 3
		}, "level"},
		{"level arithmetic", func(nw *Network, m map[string]*Node) {
			m["alice"].Level = 5
		}, "level"},
		{"dangling parent", func(nw *Network, m map[string]*Node) {
			m["alice"].ParentID = "N999999"
		}, "parent"},
		{"child not pointing back", func(nw *Network, m map[string]*Node) {
			m["alice"].ChildIDs = append(m["alice"].ChildIDs, m["bob"].ID)
		}, "parent"},
		{"negative money", func(nw *Network, m map[string]*Node) {
			m["bob"].Money = -1
		}, "negative money"},
		{"stake cache drift", func(nw *Network, m map[string]*Node) {
			m["bob"].Investors[m["alice"].ID] = 10
		}, "cache"},
		{"non-positive stake", func(nw *Network, m map[string]*Node) {
			m["bob"].Investors[m["alice"].ID] = -5
			m["bob"].InvestmentsReceived = -5
		}, "stake"},
		{"second player seat", func(nw *Network, m map[string]*Node) {
			m["alice"].Controller = ControllerPlayer
			m["bob"].Controller = ControllerPlayer
		}, "player"},
		{"cycle", func(nw *Network, m map[string]*Node) {
			// alice and her child carol point at each other.
			alice, carol := m["alice"], m["carol"]
			parent := nw.nodes[alice.ParentID]
			kept := parent.ChildIDs[:0]
			for _, cid := range parent.ChildIDs {
				if cid != alice.ID {
					kept = append(kept, cid)
				}
			}
			parent.ChildIDs = kept
			alice.ParentID = carol.ID
			carol.ChildIDs = append(carol.ChildIDs, alice.ID)
			carol.Level = alice.Level + 1
			alice.Level = carol.Level + 1
		}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			nw, m := newTestNetwork(t, 2, "alice", "bob", "carol")
			tc.corrupt(nw, m)
			err := nw.CheckInvariants()
			if err == nil {
				t.Fatalf("corruption not detected")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
