package pyramid

import (
	"testing"

	"pyramid.gg/internal/protocol"
)

// newTestNetwork builds a network and joins members breadth-first. With
// MaxChildren 2 the first two joins hang off the founder, the next two
// off the first member, and so on.
func newTestNetwork(t *testing.T, maxChildren int, names ...string) (*Network, map[string]*Node) {
	t.Helper()
	nw, err := New(NetworkConfig{ID: "test", Seed: 1, MaxChildren: maxChildren})
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	byName := map[string]*Node{"founder": nw.nodes[nw.rootID]}
	for _, name := range names {
		resp := nw.joinMember(name, ControllerAI, nil)
		byName[name] = nw.nodes[resp.Welcome.NodeID]
	}
	return nw, byName
}

func totalMoney(nw *Network) int64 {
	var sum int64
	for _, n := range nw.nodes {
		sum += n.Money
	}
	return sum
}

func TestInvest_RoundTripAndConservation(t *testing.T) {
	nw, m := newTestNetwork(t, 2, "alice", "bob")
	alice, bob := m["alice"], m["bob"]
	bob.Money = 500 // raise bob's power so the cap has headroom

	before := totalMoney(nw)

	code, reason := nw.applyInvest(alice.ID, bob.ID, 30, 0)
	if code != "" {
		t.Fatalf("invest failed: %s %s", code, reason)
	}
	if alice.Money != 70 {
		t.Fatalf("investor money = %d, want 70", alice.Money)
	}
	if bob.Money != 530 {
		t.Fatalf("target money = %d, want 530", bob.Money)
	}
	if bob.Investors[alice.ID] != 30 || bob.InvestmentsReceived != 30 {
		t.Fatalf("stake = %d cache = %d, want 30/30", bob.Investors[alice.ID], bob.InvestmentsReceived)
	}
	if got := totalMoney(nw); got != before {
		t.Fatalf("money not conserved: %d != %d", got, before)
	}

	code, reason = nw.applyWithdraw(alice.ID, bob.ID, 30)
	if code != "" {
		t.Fatalf("withdraw failed: %s %s", code, reason)
	}
	if alice.Money != 100 || bob.Money != 500 {
		t.Fatalf("after withdraw: alice=%d bob=%d", alice.Money, bob.Money)
	}
	if _, ok := bob.Investors[alice.ID]; ok {
		t.Fatalf("fully withdrawn stake should be removed, not zeroed")
	}
	if bob.InvestmentsReceived != 0 {
		t.Fatalf("cache = %d, want 0", bob.InvestmentsReceived)
	}
	if err := nw.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestInvest_RefusesSelfUplineDownline(t *testing.T) {
	nw, m := newTestNetwork(t, 2, "alice", "bob", "carol")
	// Tree: founder -> {alice, bob}; alice -> {carol}.
	alice, carol := m["alice"], m["carol"]
	if carol.ParentID != alice.ID {
		t.Fatalf("unexpected placement: carol under %s", carol.ParentID)
	}

	cases := []struct {
		name               string
		investor, targetID string
	}{
		{"self", alice.ID, alice.ID},
		{"upline", carol.ID, alice.ID},
		{"deep upline", carol.ID, nw.rootID},
		{"downline", alice.ID, carol.ID},
	}
	for _, tc := range cases {
		el := CanInvestIn(&nw.cfg, nw.nodes, tc.investor, tc.targetID, 0)
		if el.Allowed {
			t.Fatalf("%s: investment allowed, want refusal", tc.name)
		}
		if el.Code != protocol.ErrIneligible {
			t.Fatalf("%s: code = %s, want %s", tc.name, el.Code, protocol.ErrIneligible)
		}
		if el.Reason == "" {
			t.Fatalf("%s: refusal must carry a reason", tc.name)
		}
	}

	el := CanInvestIn(&nw.cfg, nw.nodes, alice.ID, "nope", 0)
	if el.Allowed || el.Code != protocol.ErrNotFound {
		t.Fatalf("unknown target: %+v", el)
	}
}

func TestInvest_TierGate(t *testing.T) {
	cfg := defaultConfig() // TierReach [1 2 4 8]
	nodes := buildTree(t, map[string][]string{
		"R": {"A", "B"},
		"A": {"A1"},
		"B": {"B1"},
		// B1 at level 2, A at level 1, A1 at level 2.
	})

	// B1 (level 2) -> A (level 1): gap 1, within tier-0 reach.
	if el := CanInvestIn(&cfg, nodes, "B1", "A", 0); !el.Allowed {
		t.Fatalf("gap-1 tier-0 investment refused: %+v", el)
	}

	deep := buildTree(t, map[string][]string{
		"R": {"A", "B"},
		"B": {"B1"},
		"B1": {"B2"},
		"B2": {"B3"},
	})
	// B3 (level 3) -> A (level 1): gap 2, beyond tier-0 reach of 1.
	if el := CanInvestIn(&cfg, deep, "B3", "A", 0); el.Allowed {
		t.Fatalf("gap-2 tier-0 investment allowed")
	}
	// Tier 1 reaches 2 levels.
	if el := CanInvestIn(&cfg, deep, "B3", "A", 1); !el.Allowed {
		t.Fatalf("gap-2 tier-1 investment refused: %+v", el)
	}
	// Tiers beyond the table clamp to the last entry.
	if el := CanInvestIn(&cfg, deep, "B3", "A", 99); !el.Allowed {
		t.Fatalf("high-tier investment refused: %+v", el)
	}
}

func TestInvest_CapAndNoPartialMutation(t *testing.T) {
	nw, m := newTestNetwork(t, 2, "alice", "bob")
	alice, bob := m["alice"], m["bob"]
	alice.Money = 10_000
	bob.Money = 500 // power 10+50 = 60, cap 30

	max := MaxInvestment(&nw.cfg, nw.nodes, alice.ID, bob.ID)
	if max != 30 {
		t.Fatalf("max investment = %d, want 30", max)
	}

	code, _ := nw.applyInvest(alice.ID, bob.ID, 31, 0)
	if code != protocol.ErrCapacityExceeded {
		t.Fatalf("over-cap invest code = %s, want %s", code, protocol.ErrCapacityExceeded)
	}
	if alice.Money != 10_000 || bob.Money != 500 || len(bob.Investors) != 0 {
		t.Fatalf("refused invest mutated state")
	}

	// Committing the stake raises bob's power, which raises the cap; the
	// investor's own stake counts toward their personal ceiling.
	if code, reason := nw.applyInvest(alice.ID, bob.ID, 30, 0); code != "" {
		t.Fatalf("at-cap invest failed: %s %s", code, reason)
	}
	max2 := MaxInvestment(&nw.cfg, nw.nodes, alice.ID, bob.ID)
	if max2 <= 30 {
		t.Fatalf("cap should grow with committed stake: %d", max2)
	}
	if code, reason := nw.applyInvest(alice.ID, bob.ID, max2-30, 0); code != "" {
		t.Fatalf("top-up to new cap failed: %s %s", code, reason)
	}
	if code, _ := nw.applyInvest(alice.ID, bob.ID, 1000, 0); code != protocol.ErrCapacityExceeded {
		t.Fatalf("cap not enforced after top-up: %s", code)
	}
}

func TestInvest_InsufficientFunds(t *testing.T) {
	nw, m := newTestNetwork(t, 2, "alice", "bob")
	alice, bob := m["alice"], m["bob"]
	alice.Money = 5
	bob.Money = 1000

	code, _ := nw.applyInvest(alice.ID, bob.ID, 10, 0)
	if code != protocol.ErrInsufficientFunds {
		t.Fatalf("code = %s, want %s", code, protocol.ErrInsufficientFunds)
	}
	if alice.Money != 5 || len(bob.Investors) != 0 {
		t.Fatalf("refused invest mutated state")
	}
}

func TestInvest_InvalidAmounts(t *testing.T) {
	nw, m := newTestNetwork(t, 2, "alice", "bob")
	alice, bob := m["alice"], m["bob"]
	bob.Money = 1000

	if code, _ := nw.applyInvest(alice.ID, bob.ID, 0, 0); code != protocol.ErrInvalidAmount {
		t.Fatalf("zero amount code = %s", code)
	}
	if code, _ := nw.applyInvest(alice.ID, bob.ID, -5, 0); code != protocol.ErrInvalidAmount {
		t.Fatalf("negative amount code = %s", code)
	}
}

func TestWithdraw_Validation(t *testing.T) {
	nw, m := newTestNetwork(t, 2, "alice", "bob")
	alice, bob := m["alice"], m["bob"]
	bob.Money = 1000

	if code, _ := nw.applyWithdraw(alice.ID, bob.ID, 10); code != protocol.ErrNotFound {
		t.Fatalf("withdraw without stake code = %s", code)
	}

	if code, reason := nw.applyInvest(alice.ID, bob.ID, 20, 0); code != "" {
		t.Fatalf("invest: %s %s", code, reason)
	}
	if code, _ := nw.applyWithdraw(alice.ID, bob.ID, 25); code != protocol.ErrInvalidAmount {
		t.Fatalf("over-stake withdraw code = %s", code)
	}

	// Target spent the staked money; partial withdrawal must not drive
	// its balance negative.
	bob.Money = 3
	if code, _ := nw.applyWithdraw(alice.ID, bob.ID, 10); code != protocol.ErrInsufficientFunds {
		t.Fatalf("uncovered withdraw code = %s", code)
	}
	if code, reason := nw.applyWithdraw(alice.ID, bob.ID, 3); code != "" {
		t.Fatalf("covered partial withdraw failed: %s %s", code, reason)
	}
	if bob.Investors[alice.ID] != 17 || bob.InvestmentsReceived != 17 {
		t.Fatalf("partial withdraw stake = %d cache = %d, want 17/17", bob.Investors[alice.ID], bob.InvestmentsReceived)
	}
}
