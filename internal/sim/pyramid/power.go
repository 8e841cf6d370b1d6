package pyramid

import "math"

// Power is the node's effective strength: a base floor, plus weighted
// money and recruit counts, plus a boost from total investment received.
// Monotonically non-decreasing in all three inputs and never negative.
func (c *NetworkConfig) Power(n *Node) float64 {
	if n == nil {
		return 0
	}
	p := c.PowerBase
	p += float64(n.Money) * c.MoneyWeight
	p += float64(n.Recruits) * c.RecruitWeight
	p += float64(n.InvestmentsReceived) * c.InvestBoost
	if p < 0 {
		return 0
	}
	return p
}

// CoupCost is the base price an attacker pays to attempt a buyout of
// target. Zero only when the target has no power at all.
func (c *NetworkConfig) CoupCost(attacker, target *Node) int64 {
	pt := c.Power(target)
	if pt <= 0 {
		return 0
	}
	return int64(math.Ceil(pt * c.CoupCostFactor))
}

// CoupChance is the success probability in [0, 100]. It rises with
// attacker power and with bonus spend (diminishing returns), falls with
// target power, and saturates at the bounds.
func (c *NetworkConfig) CoupChance(attacker, target *Node, bonus int64) float64 {
	pa := c.Power(attacker)
	pt := c.Power(target)
	b := float64(bonus)
	if b < 0 {
		b = 0
	}

	base := 50.0
	if pa+2*pt > 0 {
		base = 100 * pa / (pa + 2*pt)
	}

	boost := 0.0
	if b > 0 {
		boost = 30 * b / (b + pt)
	}

	chance := base + boost
	if chance < 0 {
		return 0
	}
	if chance > 100 {
		return 100
	}
	return chance
}

// investCap is the ceiling on a target's total InvestmentsReceived:
// a fixed fraction of its current power.
func (c *NetworkConfig) investCap(target *Node) int64 {
	return int64(math.Floor(c.Power(target) * float64(c.InvestCapPermille) / 1000))
}
