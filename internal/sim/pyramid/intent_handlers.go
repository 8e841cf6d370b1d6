package pyramid

import "pyramid.gg/internal/protocol"

func handleIntentInvest(nw *Network, n *Node, intent protocol.IntentReq, nowTick uint64) {
	code, reason := nw.applyInvest(n.ID, intent.TargetID, intent.Amount, nw.tierOf(n))
	if code != "" {
		n.AddEvent(actionResult(nowTick, intent.ID, false, code, reason))
		return
	}
	n.AddEvent(actionResult(nowTick, intent.ID, true, "", ""))
	target := nw.nodes[intent.TargetID]
	ev := protocol.Event{
		"t":        nowTick,
		"type":     "INVESTED",
		"investor": n.ID,
		"target":   intent.TargetID,
		"amount":   intent.Amount,
		"stake":    target.Investors[n.ID],
		"received": target.InvestmentsReceived,
	}
	n.AddEvent(ev)
	target.AddEvent(ev)
	nw.auditEvent(nowTick, n.ID, "INVEST", map[string]any{
		"target": intent.TargetID,
		"amount": intent.Amount,
	})
}

func handleIntentWithdraw(nw *Network, n *Node, intent protocol.IntentReq, nowTick uint64) {
	code, reason := nw.applyWithdraw(n.ID, intent.TargetID, intent.Amount)
	if code != "" {
		n.AddEvent(actionResult(nowTick, intent.ID, false, code, reason))
		return
	}
	n.AddEvent(actionResult(nowTick, intent.ID, true, "", ""))
	target := nw.nodes[intent.TargetID]
	ev := protocol.Event{
		"t":        nowTick,
		"type":     "STAKE_WITHDRAWN",
		"investor": n.ID,
		"target":   intent.TargetID,
		"amount":   intent.Amount,
		"stake":    target.Investors[n.ID],
	}
	n.AddEvent(ev)
	target.AddEvent(ev)
	nw.auditEvent(nowTick, n.ID, "WITHDRAW_INVESTMENT", map[string]any{
		"target": intent.TargetID,
		"amount": intent.Amount,
	})
}

func handleIntentCoup(nw *Network, n *Node, intent protocol.IntentReq, nowTick uint64) {
	if ok, _ := n.RateLimitAllow(IntentTypeCoup, nowTick,
		uint64(nw.cfg.RateLimits.CoupWindowTicks), nw.cfg.RateLimits.CoupMax); !ok {
		n.AddEvent(actionResult(nowTick, intent.ID, false, protocol.ErrRateLimit, "coup attempts rate limited"))
		return
	}

	targetID := n.ParentID
	res, code, reason := nw.attemptCoup(n, intent.Bonus, nowTick)
	if code != "" {
		n.AddEvent(actionResult(nowTick, intent.ID, false, code, reason))
		return
	}
	n.AddEvent(actionResult(nowTick, intent.ID, true, "", ""))

	ev := protocol.Event{
		"t":        nowTick,
		"type":     "COUP_RESOLVED",
		"attacker": n.ID,
		"target":   targetID,
		"success":  res.Success,
		"cost":     res.Cost,
		"chance":   res.Chance,
	}
	if len(res.Payouts) > 0 {
		ev["payouts"] = res.Payouts
	}
	n.AddEvent(ev)
	if target := nw.nodes[targetID]; target != nil {
		target.AddEvent(ev)
	}
	for investorID, payout := range res.Payouts {
		if inv := nw.nodes[investorID]; inv != nil {
			inv.AddEvent(protocol.Event{
				"t":      nowTick,
				"type":   "STAKE_PAID_OUT",
				"target": targetID,
				"payout": payout,
			})
		}
	}
	nw.auditEvent(nowTick, n.ID, "ATTEMPT_COUP", map[string]any{
		"target":  targetID,
		"success": res.Success,
		"cost":    res.Cost,
		"chance":  res.Chance,
		"bonus":   intent.Bonus,
	})
}

func handleIntentMoveUp(nw *Network, n *Node, intent protocol.IntentReq, nowTick uint64) {
	targetID := n.ParentID
	code, reason := nw.applyMoveUp(n, nowTick)
	if code != "" {
		n.AddEvent(actionResult(nowTick, intent.ID, false, code, reason))
		return
	}
	n.AddEvent(actionResult(nowTick, intent.ID, true, "", ""))
	ev := protocol.Event{
		"t":         nowTick,
		"type":      "MOVED_UP",
		"member":    n.ID,
		"displaced": targetID,
		"level":     n.Level,
	}
	n.AddEvent(ev)
	if displaced := nw.nodes[targetID]; displaced != nil {
		displaced.AddEvent(ev)
	}
	nw.auditEvent(nowTick, n.ID, "MOVE_UP", map[string]any{"displaced": targetID})
}

func handleIntentRecruit(nw *Network, n *Node, intent protocol.IntentReq, nowTick uint64) {
	if len(n.ChildIDs) >= nw.cfg.MaxChildren {
		n.AddEvent(actionResult(nowTick, intent.ID, false, protocol.ErrCapacityExceeded, "downline is full"))
		return
	}
	name := intent.Name
	if name == "" {
		name = "recruit"
	}
	recruit := &Node{
		ID:         nw.newNodeID(),
		Name:       name,
		Level:      n.Level + 1,
		ParentID:   n.ID,
		Money:      nw.cfg.RecruitMoney,
		Controller: ControllerUnclaimed,
	}
	recruit.initDefaults()
	nw.nodes[recruit.ID] = recruit
	n.ChildIDs = append(n.ChildIDs, recruit.ID)
	n.Recruits++

	n.AddEvent(actionResult(nowTick, intent.ID, true, "", ""))
	n.AddEvent(protocol.Event{
		"t":        nowTick,
		"type":     "RECRUITED",
		"member":   n.ID,
		"recruit":  recruit.ID,
		"recruits": n.Recruits,
	})
	nw.auditEvent(nowTick, n.ID, "RECRUIT", map[string]any{"recruit": recruit.ID})
}

func handleIntentSay(nw *Network, n *Node, intent protocol.IntentReq, nowTick uint64) {
	if ok, _ := n.RateLimitAllow(IntentTypeSay, nowTick,
		uint64(nw.cfg.RateLimits.SayWindowTicks), nw.cfg.RateLimits.SayMax); !ok {
		n.AddEvent(actionResult(nowTick, intent.ID, false, protocol.ErrRateLimit, "too chatty"))
		return
	}
	if intent.Text == "" {
		n.AddEvent(actionResult(nowTick, intent.ID, false, protocol.ErrBadRequest, "empty text"))
		return
	}
	n.AddEvent(actionResult(nowTick, intent.ID, true, "", ""))
	nw.broadcastChat(nowTick, n, intent.Text)
}

// broadcastChat delivers to the sender's structural neighborhood: the
// direct upline, direct downline, and siblings.
func (nw *Network) broadcastChat(tick uint64, from *Node, text string) {
	seen := map[string]bool{from.ID: true}
	targets := make([]string, 0, len(from.ChildIDs)+4)
	if from.ParentID != "" {
		targets = append(targets, from.ParentID)
	}
	targets = append(targets, from.ChildIDs...)
	targets = append(targets, Siblings(nw.nodes, from.ID)...)
	for _, id := range targets {
		if seen[id] {
			continue
		}
		seen[id] = true
		if n := nw.nodes[id]; n != nil {
			n.AddEvent(protocol.Event{
				"t":    tick,
				"type": "CHAT",
				"from": from.ID,
				"text": text,
			})
		}
	}
}

// tierOf buckets a node into an investor tier by how many members it has
// personally recruited.
func (nw *Network) tierOf(n *Node) int {
	if nw.cfg.PromotionRecruits <= 0 {
		return 0
	}
	return n.Recruits / nw.cfg.PromotionRecruits
}
