package pyramid

import (
	"fmt"

	"pyramid.gg/internal/protocol"
)

// Eligibility is the result of an investment rule check. Code is one of
// the protocol error codes when Allowed is false.
type Eligibility struct {
	Allowed bool
	Code    string
	Reason  string
}

func allowed() Eligibility { return Eligibility{Allowed: true} }

func denied(code, reason string) Eligibility {
	return Eligibility{Code: code, Reason: reason}
}

// CanInvestIn evaluates the investment eligibility rules in order; the
// first failing rule wins.
func CanInvestIn(cfg *NetworkConfig, nodes map[string]*Node, investorID, targetID string, investorTier int) Eligibility {
	investor := nodes[investorID]
	target := nodes[targetID]
	if investor == nil || target == nil {
		return denied(protocol.ErrNotFound, "unknown investor or target")
	}
	if investorID == targetID {
		return denied(protocol.ErrIneligible, "cannot invest in yourself")
	}

	// No circular economic incentive: never invest along your own chain.
	if isUplineOf(nodes, targetID, investorID) {
		return denied(protocol.ErrIneligible, "target is in your upline")
	}
	if isUplineOf(nodes, investorID, targetID) {
		return denied(protocol.ErrIneligible, "target is in your downline")
	}

	// Tier gate: low tiers cannot reach far above their own level.
	reach := tierReach(cfg, investorTier)
	if gap := investor.Level - target.Level; gap > reach {
		return denied(protocol.ErrIneligible,
			fmt.Sprintf("tier %d investors may only invest up to %d levels above their own", investorTier, reach))
	}

	return allowed()
}

func tierReach(cfg *NetworkConfig, tier int) int {
	if tier < 0 {
		tier = 0
	}
	if tier >= len(cfg.TierReach) {
		tier = len(cfg.TierReach) - 1
	}
	return cfg.TierReach[tier]
}

// MaxInvestment is the ceiling on the investor's total stake in target:
// half the target's power (tunable permille), less what other parties
// already hold. An investor's own prior stake does not shrink their own
// ceiling.
func MaxInvestment(cfg *NetworkConfig, nodes map[string]*Node, investorID, targetID string) int64 {
	target := nodes[targetID]
	if target == nil {
		return 0
	}
	own := target.Investors[investorID]
	headroom := cfg.investCap(target) - target.InvestmentsReceived + own
	if headroom < 0 {
		return 0
	}
	return headroom
}

// applyInvest validates and commits one investment. Validation fully
// precedes mutation: on any failure nothing changes.
func (nw *Network) applyInvest(investorID, targetID string, amount int64, tier int) (code, reason string) {
	if amount <= 0 {
		return protocol.ErrInvalidAmount, "amount must be positive"
	}
	if el := CanInvestIn(&nw.cfg, nw.nodes, investorID, targetID, tier); !el.Allowed {
		return el.Code, el.Reason
	}
	investor := nw.nodes[investorID]
	target := nw.nodes[targetID]

	own := target.Investors[investorID]
	if own+amount > MaxInvestment(&nw.cfg, nw.nodes, investorID, targetID) {
		return protocol.ErrCapacityExceeded, "amount exceeds investment headroom"
	}
	if investor.Money < amount {
		return protocol.ErrInsufficientFunds, "not enough money"
	}

	investor.Money -= amount
	target.Money += amount
	target.Investors[investorID] = own + amount
	target.InvestmentsReceived += amount
	return "", ""
}

// applyWithdraw returns part or all of a stake from the target's balance.
// A fully withdrawn stake is removed from the map, not zeroed.
func (nw *Network) applyWithdraw(investorID, targetID string, amount int64) (code, reason string) {
	investor := nw.nodes[investorID]
	target := nw.nodes[targetID]
	if investor == nil || target == nil {
		return protocol.ErrNotFound, "unknown investor or target"
	}
	stake := target.Investors[investorID]
	if stake <= 0 {
		return protocol.ErrNotFound, "no stake in target"
	}
	if amount <= 0 || amount > stake {
		return protocol.ErrInvalidAmount, "amount must be within the staked total"
	}
	if target.Money < amount {
		return protocol.ErrInsufficientFunds, "target cannot cover the withdrawal"
	}

	target.Money -= amount
	investor.Money += amount
	target.InvestmentsReceived -= amount
	if stake == amount {
		delete(target.Investors, investorID)
	} else {
		target.Investors[investorID] = stake - amount
	}
	return "", ""
}
