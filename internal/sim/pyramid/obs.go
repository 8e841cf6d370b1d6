package pyramid

import "pyramid.gg/internal/protocol"

func (nw *Network) buildObs(n *Node, nowTick uint64) protocol.ObsMsg {
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		NodeID:          n.ID,
		Self: protocol.SelfObs{
			Name:                n.Name,
			Level:               n.Level,
			ParentID:            n.ParentID,
			ChildIDs:            append([]string(nil), n.ChildIDs...),
			Money:               n.Money,
			Recruits:            n.Recruits,
			Controller:          string(n.Controller),
			InvestmentsReceived: n.InvestmentsReceived,
			Investors:           n.StakeList(),
			CoupCooldownUntil:   n.CoupCooldownUntil,
			Inventory:           n.Inventory,
			MaxInventory:        n.MaxInventory,
		},
		Siblings: Siblings(nw.nodes, n.ID),
		Downline: len(Downline(nw.nodes, n.ID)),
		Events:   n.TakeEvents(),
	}

	obs.Metrics = protocol.MetricsObs{
		Power:    nw.cfg.Power(n),
		ParentID: n.ParentID,
	}
	if parent := nw.nodes[n.ParentID]; parent != nil {
		obs.Metrics.CoupCost = nw.cfg.CoupCost(n, parent)
		obs.Metrics.CoupChance = nw.cfg.CoupChance(n, parent, 0)
		obs.Metrics.MaxInvestUpline = MaxInvestment(&nw.cfg, nw.nodes, n.ID, n.ParentID)
	}

	for _, id := range uplinePath(nw.nodes, n.ID) {
		up := nw.nodes[id]
		if up == nil {
			continue
		}
		obs.Upline = append(obs.Upline, protocol.NodeRef{
			ID:    up.ID,
			Level: up.Level,
			Power: nw.cfg.Power(up),
		})
	}
	return obs
}
