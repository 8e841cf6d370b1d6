package pyramid

import (
	"fmt"
	"testing"

	"pyramid.gg/internal/protocol"
)

func TestDeterminism_FixedActionsSameDigest(t *testing.T) {
	cfg := NetworkConfig{ID: "test", Seed: 42, MaxChildren: 2}

	nw1, err := New(cfg)
	if err != nil {
		t.Fatalf("network1: %v", err)
	}
	nw2, err := New(cfg)
	if err != nil {
		t.Fatalf("network2: %v", err)
	}

	actFor := func(tick uint64, nodeID string, intents ...protocol.IntentReq) []ActionEnvelope {
		return []ActionEnvelope{{
			NodeID: nodeID,
			Act: protocol.ActMsg{
				Type:            protocol.TypeAct,
				ProtocolVersion: protocol.Version,
				Tick:            tick,
				NodeID:          nodeID,
				Intents:         intents,
			},
		}}
	}

	// Same join and action stream into both networks; digests must track
	// tick for tick, including the randomized coup path.
	for tick := uint64(0); tick < 50; tick++ {
		var joins []JoinRequest
		var acts1, acts2 []ActionEnvelope

		switch tick {
		case 0:
			joins = []JoinRequest{{Name: "alice"}, {Name: "bob"}}
		case 3:
			acts1 = actFor(tick, "N000002", protocol.IntentReq{ID: "I_r", Type: IntentTypeRecruit})
			acts2 = actFor(tick, "N000002", protocol.IntentReq{ID: "I_r", Type: IntentTypeRecruit})
		case 5:
			inv := protocol.IntentReq{ID: "I_i", Type: IntentTypeInvest, TargetID: "N000002", Amount: 10}
			acts1 = actFor(tick, "N000003", inv)
			acts2 = actFor(tick, "N000003", inv)
		case 9:
			coup := protocol.IntentReq{ID: "I_c", Type: IntentTypeCoup, Bonus: 5}
			acts1 = actFor(tick, "N000002", coup)
			acts2 = actFor(tick, "N000002", coup)
		}

		t1, d1 := nw1.StepOnce(joins, nil, acts1)
		t2, d2 := nw2.StepOnce(joins, nil, acts2)
		if t1 != t2 || d1 != d2 {
			t.Fatalf("divergence at tick %d/%d:\n%s\n%s", t1, t2, d1, d2)
		}
	}

	if err := nw1.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestDeterminism_RollerSeeding(t *testing.T) {
	rolls := func(seed int64) string {
		nw, err := New(NetworkConfig{ID: "test", Seed: seed})
		if err != nil {
			t.Fatalf("network: %v", err)
		}
		s := ""
		for i := 0; i < 5; i++ {
			s += fmt.Sprintf("%.9f;", nw.roll())
		}
		return s
	}

	if rolls(1) != rolls(1) {
		t.Fatalf("same seed produced different roll streams")
	}
	if rolls(1) == rolls(99) {
		t.Fatalf("different seeds produced identical roll streams")
	}
}
