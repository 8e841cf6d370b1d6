package pyramid

import (
	"sort"

	"pyramid.gg/internal/protocol"
)

// Controller says who drives a node. A slot is never deleted, only
// re-owned, so an abandoned slot becomes UNCLAIMED rather than vanishing.
type Controller string

const (
	ControllerPlayer    Controller = "PLAYER"
	ControllerAI        Controller = "AI"
	ControllerUnclaimed Controller = "UNCLAIMED"
)

type Node struct {
	ID   string
	Name string

	Level    int
	ParentID string   // empty only for the root
	ChildIDs []string // recruitment order

	Money      int64
	Recruits   int // direct recruits brought in by this node
	Controller Controller

	// Investors maps investor node id -> staked amount. Entries are
	// removed, never zeroed. InvestmentsReceived caches the sum.
	Investors           map[string]int64
	InvestmentsReceived int64

	// CoupCooldownUntil is the tick before which this node cannot be
	// targeted by another coup.
	CoupCooldownUntil uint64

	// Carried for the out-of-scope selling subsystem; the engine does not
	// interpret these.
	Inventory    map[string]int
	MaxInventory int

	// ResumeToken is a transport-level token used for reconnects.
	// It is intentionally NOT included in snapshots/digests.
	ResumeToken string

	Events []protocol.Event

	// Rate limiting windows (per intent type).
	rl map[string]*rateWindow
}

type rateWindow struct {
	StartTick uint64
	Count     int
	Window    uint64
	Max       int
}

func (n *Node) initDefaults() {
	if n.Controller == "" {
		n.Controller = ControllerAI
	}
	if n.Investors == nil {
		n.Investors = map[string]int64{}
	}
	if n.Inventory == nil {
		n.Inventory = map[string]int{}
	}
	if n.MaxInventory == 0 {
		n.MaxInventory = 10
	}
	if n.rl == nil {
		n.rl = map[string]*rateWindow{}
	}
}

// StakeList returns the investor stakes in deterministic (sorted) order.
func (n *Node) StakeList() []protocol.StakeObs {
	out := make([]protocol.StakeObs, 0, len(n.Investors))
	for id, amt := range n.Investors {
		if amt <= 0 {
			continue
		}
		out = append(out, protocol.StakeObs{InvestorID: id, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvestorID < out[j].InvestorID })
	return out
}

func (n *Node) AddEvent(e protocol.Event) {
	n.Events = append(n.Events, e)
}

func (n *Node) TakeEvents() []protocol.Event {
	ev := n.Events
	n.Events = nil
	return ev
}

func (n *Node) RateLimitAllow(kind string, nowTick uint64, window uint64, max int) (ok bool, cooldownTicks uint64) {
	w, ok := n.rl[kind]
	if !ok {
		w = &rateWindow{StartTick: nowTick, Window: window, Max: max}
		n.rl[kind] = w
	}
	w.Window = window
	w.Max = max
	// Defensive: treat invalid windows as "allow" rather than panicking/diverging.
	if w.Window == 0 || w.Max <= 0 {
		return true, 0
	}
	if nowTick-w.StartTick >= w.Window {
		w.StartTick = nowTick
		w.Count = 0
	}
	w.Count++
	if w.Count <= w.Max {
		return true, 0
	}
	// Remaining ticks until the window resets (next tick >= StartTick+Window).
	return false, (w.StartTick + w.Window) - nowTick
}
