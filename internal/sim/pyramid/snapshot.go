package pyramid

import (
	"fmt"
	"sort"
)

// Snapshot is the full persistable engine state. Version 1.
type Snapshot struct {
	Header SnapshotHeader `json:"header"`

	Seed               int64           `json:"seed"`
	TickRateHz         int             `json:"tick_rate_hz"`
	PowerBase          float64         `json:"power_base"`
	MoneyWeight        float64         `json:"money_weight"`
	RecruitWeight      float64         `json:"recruit_weight"`
	InvestBoost        float64         `json:"invest_boost"`
	CoupCostFactor     float64         `json:"coup_cost_factor"`
	CoupCooldownTicks  int             `json:"coup_cooldown_ticks"`
	InvestCapPermille  int             `json:"invest_cap_permille"`
	PayoutPermille     int             `json:"payout_permille"`
	PromotionRecruits  int             `json:"promotion_recruits"`
	MaxChildren        int             `json:"max_children"`
	FounderMoney       int64           `json:"founder_money"`
	StarterMoney       int64           `json:"starter_money"`
	RecruitMoney       int64           `json:"recruit_money"`
	TierReach          []int           `json:"tier_reach"`
	SnapshotEveryTicks int             `json:"snapshot_every_ticks"`
	RateLimits         RateLimitConfig `json:"rate_limits"`

	RootID       string       `json:"root_id"`
	PlayerNodeID string       `json:"player_node_id,omitempty"`
	Nodes        []NodeRecord `json:"nodes"`

	NextNodeNum uint64 `json:"next_node_num"`
}

type SnapshotHeader struct {
	Version   int    `json:"version"`
	NetworkID string `json:"network_id"`
	Tick      uint64 `json:"tick"`
}

type NodeRecord struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	Level               int              `json:"level"`
	ParentID            string           `json:"parent_id,omitempty"`
	ChildIDs            []string         `json:"child_ids,omitempty"`
	Money               int64            `json:"money"`
	Recruits            int              `json:"recruits"`
	Controller          string           `json:"controller"`
	Investors           map[string]int64 `json:"investors,omitempty"`
	InvestmentsReceived int64            `json:"investments_received"`
	CoupCooldownUntil   uint64           `json:"coup_cooldown_until,omitempty"`
	Inventory           map[string]int   `json:"inventory,omitempty"`
	MaxInventory        int              `json:"max_inventory,omitempty"`
}

func (nw *Network) ExportSnapshot(nowTick uint64) Snapshot {
	snap := Snapshot{
		Header: SnapshotHeader{Version: 1, NetworkID: nw.cfg.ID, Tick: nowTick},

		Seed:               nw.cfg.Seed,
		TickRateHz:         nw.cfg.TickRateHz,
		PowerBase:          nw.cfg.PowerBase,
		MoneyWeight:        nw.cfg.MoneyWeight,
		RecruitWeight:      nw.cfg.RecruitWeight,
		InvestBoost:        nw.cfg.InvestBoost,
		CoupCostFactor:     nw.cfg.CoupCostFactor,
		CoupCooldownTicks:  nw.cfg.CoupCooldownTicks,
		InvestCapPermille:  nw.cfg.InvestCapPermille,
		PayoutPermille:     nw.cfg.PayoutPermille,
		PromotionRecruits:  nw.cfg.PromotionRecruits,
		MaxChildren:        nw.cfg.MaxChildren,
		FounderMoney:       nw.cfg.FounderMoney,
		StarterMoney:       nw.cfg.StarterMoney,
		RecruitMoney:       nw.cfg.RecruitMoney,
		TierReach:          append([]int(nil), nw.cfg.TierReach...),
		SnapshotEveryTicks: nw.cfg.SnapshotEveryTicks,
		RateLimits:         nw.cfg.RateLimits,

		RootID:       nw.rootID,
		PlayerNodeID: nw.playerNodeID,
		NextNodeNum:  nw.nextNodeNum.Load(),
	}

	ids := make([]string, 0, len(nw.nodes))
	for id := range nw.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := nw.nodes[id]
		rec := NodeRecord{
			ID:                  n.ID,
			Name:                n.Name,
			Level:               n.Level,
			ParentID:            n.ParentID,
			ChildIDs:            append([]string(nil), n.ChildIDs...),
			Money:               n.Money,
			Recruits:            n.Recruits,
			Controller:          string(n.Controller),
			InvestmentsReceived: n.InvestmentsReceived,
			CoupCooldownUntil:   n.CoupCooldownUntil,
			MaxInventory:        n.MaxInventory,
		}
		if len(n.Investors) > 0 {
			rec.Investors = make(map[string]int64, len(n.Investors))
			for k, v := range n.Investors {
				rec.Investors[k] = v
			}
		}
		if len(n.Inventory) > 0 {
			rec.Inventory = make(map[string]int, len(n.Inventory))
			for k, v := range n.Inventory {
				rec.Inventory[k] = v
			}
		}
		snap.Nodes = append(snap.Nodes, rec)
	}
	return snap
}

// NewFromSnapshot rebuilds a network from a snapshot. Import is gated by
// the invariant checker: a corrupted snapshot is refused outright.
func NewFromSnapshot(snap Snapshot) (*Network, error) {
	if snap.Header.Version != 1 {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	cfg := NetworkConfig{
		ID:                 snap.Header.NetworkID,
		TickRateHz:         snap.TickRateHz,
		Seed:               snap.Seed,
		PowerBase:          snap.PowerBase,
		MoneyWeight:        snap.MoneyWeight,
		RecruitWeight:      snap.RecruitWeight,
		InvestBoost:        snap.InvestBoost,
		CoupCostFactor:     snap.CoupCostFactor,
		CoupCooldownTicks:  snap.CoupCooldownTicks,
		InvestCapPermille:  snap.InvestCapPermille,
		PayoutPermille:     snap.PayoutPermille,
		PromotionRecruits:  snap.PromotionRecruits,
		MaxChildren:        snap.MaxChildren,
		FounderMoney:       snap.FounderMoney,
		StarterMoney:       snap.StarterMoney,
		RecruitMoney:       snap.RecruitMoney,
		TierReach:          append([]int(nil), snap.TierReach...),
		SnapshotEveryTicks: snap.SnapshotEveryTicks,
		RateLimits:         snap.RateLimits,
	}
	cfg.applyDefaults()

	nw := &Network{
		cfg:     cfg,
		nodes:   map[string]*Node{},
		clients: map[string]*clientState{},
		inbox:   make(chan ActionEnvelope, 256),
		join:    make(chan JoinRequest, 16),
		attach:  make(chan AttachRequest, 16),
		leave:   make(chan string, 16),
		stop:    make(chan struct{}),
	}
	// Reseed the roller so a resumed run stays reproducible without
	// persisting generator internals.
	nw.seedRoller(cfg.Seed ^ int64(snap.Header.Tick))

	for _, rec := range snap.Nodes {
		n := &Node{
			ID:                  rec.ID,
			Name:                rec.Name,
			Level:               rec.Level,
			ParentID:            rec.ParentID,
			ChildIDs:            append([]string(nil), rec.ChildIDs...),
			Money:               rec.Money,
			Recruits:            rec.Recruits,
			Controller:          Controller(rec.Controller),
			InvestmentsReceived: rec.InvestmentsReceived,
			CoupCooldownUntil:   rec.CoupCooldownUntil,
			MaxInventory:        rec.MaxInventory,
		}
		if len(rec.Investors) > 0 {
			n.Investors = make(map[string]int64, len(rec.Investors))
			for k, v := range rec.Investors {
				n.Investors[k] = v
			}
		}
		if len(rec.Inventory) > 0 {
			n.Inventory = make(map[string]int, len(rec.Inventory))
			for k, v := range rec.Inventory {
				n.Inventory[k] = v
			}
		}
		n.initDefaults()
		nw.nodes[n.ID] = n
	}
	nw.rootID = snap.RootID
	nw.playerNodeID = snap.PlayerNodeID
	nw.nextNodeNum.Store(snap.NextNodeNum)
	nw.tick.Store(snap.Header.Tick)

	if nw.nodes[nw.rootID] == nil {
		return nil, fmt.Errorf("snapshot root %s missing from nodes", nw.rootID)
	}
	if err := CheckInvariants(nw.nodes); err != nil {
		return nil, fmt.Errorf("snapshot invariants: %w", err)
	}
	return nw, nil
}
