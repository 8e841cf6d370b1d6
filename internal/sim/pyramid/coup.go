package pyramid

import (
	"fmt"
	"sort"

	"pyramid.gg/internal/protocol"
)

// CoupResult is returned to the caller for rendering; the engine never
// surfaces a coup as a Go error once the attempt is eligible.
type CoupResult struct {
	Success bool
	Cost    int64
	Chance  float64
	Roll    float64
	Payouts map[string]int64
}

// attemptCoup prices and resolves a buyout of the attacker's direct
// upline. Ineligibility short-circuits before any money changes hands;
// after pricing, the only branch is the single random roll.
func (nw *Network) attemptCoup(attacker *Node, bonus int64, nowTick uint64) (CoupResult, string, string) {
	if bonus < 0 {
		return CoupResult{}, protocol.ErrInvalidAmount, "bonus must be non-negative"
	}
	if attacker.ParentID == "" {
		return CoupResult{}, protocol.ErrIneligible, "the founder has no upline to displace"
	}
	target := nw.nodes[attacker.ParentID]
	if target == nil {
		return CoupResult{}, protocol.ErrNotFound, "upline node missing"
	}
	if nowTick < target.CoupCooldownUntil {
		return CoupResult{}, protocol.ErrIneligible,
			fmt.Sprintf("target is protected until tick %d", target.CoupCooldownUntil)
	}

	cost := nw.cfg.CoupCost(attacker, target) + bonus
	if attacker.Money < cost {
		return CoupResult{}, protocol.ErrInsufficientFunds, "cannot afford the attempt"
	}

	chance := nw.cfg.CoupChance(attacker, target, bonus)
	roll := nw.roll() * 100
	res := CoupResult{Cost: cost, Chance: chance, Roll: roll}

	attacker.Money -= cost
	if roll >= chance {
		// Failed attempt: the spend is gone, the tree is untouched.
		return res, "", ""
	}

	res.Success = true
	res.Payouts = nw.payOutInvestors(target)
	nw.swapPositions(attacker, target)
	target.CoupCooldownUntil = nowTick + uint64(nw.cfg.CoupCooldownTicks)
	return res, "", ""
}

// payOutInvestors settles the displaced node's investors at the payout
// multiple and clears their entries. The return is minted by the engine,
// not drawn from the attacker.
func (nw *Network) payOutInvestors(target *Node) map[string]int64 {
	if len(target.Investors) == 0 {
		target.InvestmentsReceived = 0
		return nil
	}
	ids := make([]string, 0, len(target.Investors))
	for id := range target.Investors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	payouts := make(map[string]int64, len(ids))
	for _, id := range ids {
		stake := target.Investors[id]
		if stake <= 0 {
			continue
		}
		payout := stake * int64(nw.cfg.PayoutPermille) / 1000
		payouts[id] = payout
		if inv := nw.nodes[id]; inv != nil {
			inv.Money += payout
		}
	}
	target.Investors = map[string]int64{}
	target.InvestmentsReceived = 0
	return payouts
}

// swapPositions exchanges the structural slots of a node and its direct
// parent: ParentID, Level, and ChildIDs ownership all swap, so every
// other node keeps its depth. O(children), no tree walk.
func (nw *Network) swapPositions(child, parent *Node) {
	grandID := parent.ParentID

	oldChildKids := child.ChildIDs
	newChildKids := make([]string, len(parent.ChildIDs))
	for i, cid := range parent.ChildIDs {
		if cid == child.ID {
			newChildKids[i] = parent.ID
			continue
		}
		newChildKids[i] = cid
	}

	child.ParentID = grandID
	child.ChildIDs = newChildKids
	parent.ParentID = child.ID
	parent.ChildIDs = oldChildKids
	child.Level, parent.Level = parent.Level, child.Level

	if grandID == "" {
		nw.rootID = child.ID
	} else if grand := nw.nodes[grandID]; grand != nil {
		for i, cid := range grand.ChildIDs {
			if cid == parent.ID {
				grand.ChildIDs[i] = child.ID
			}
		}
	}
	for _, cid := range child.ChildIDs {
		if n := nw.nodes[cid]; n != nil {
			n.ParentID = child.ID
		}
	}
	for _, cid := range parent.ChildIDs {
		if n := nw.nodes[cid]; n != nil {
			n.ParentID = parent.ID
		}
	}
}

// applyMoveUp is the non-violent promotion path: a member with enough
// direct recruits swaps with an AI-run upline at no cost and no roll.
func (nw *Network) applyMoveUp(actor *Node, nowTick uint64) (code, reason string) {
	if actor.ParentID == "" {
		return protocol.ErrIneligible, "already at the top"
	}
	parent := nw.nodes[actor.ParentID]
	if parent == nil {
		return protocol.ErrNotFound, "upline node missing"
	}
	if actor.Recruits < nw.cfg.PromotionRecruits {
		return protocol.ErrIneligible,
			fmt.Sprintf("need %d recruits to move up", nw.cfg.PromotionRecruits)
	}
	if parent.Controller == ControllerPlayer {
		return protocol.ErrIneligible, "upline seat is player-held"
	}
	if nowTick < parent.CoupCooldownUntil {
		return protocol.ErrIneligible,
			fmt.Sprintf("upline is protected until tick %d", parent.CoupCooldownUntil)
	}
	nw.swapPositions(actor, parent)
	return "", ""
}
