package pyramid

type NetworkConfig struct {
	ID         string
	TickRateHz int
	Seed       int64

	// Power formula weights.
	PowerBase     float64
	MoneyWeight   float64
	RecruitWeight float64
	InvestBoost   float64

	// Coup economics.
	CoupCostFactor    float64
	CoupCooldownTicks int

	// Investment cap, as permille of target power.
	InvestCapPermille int
	// Investor payout on a successful coup, permille of stake.
	PayoutPermille int

	// Structure.
	PromotionRecruits int
	MaxChildren       int
	FounderMoney      int64
	StarterMoney      int64
	RecruitMoney      int64

	// TierReach[t] is how many levels above itself a tier-t investor may
	// reach when picking a non-upline target. The last entry applies to
	// all higher tiers.
	TierReach []int

	// Operational parameters. Included in snapshots for deterministic resume.
	SnapshotEveryTicks int
	RateLimits         RateLimitConfig
}

type RateLimitConfig struct {
	SayWindowTicks  int
	SayMax          int
	CoupWindowTicks int
	CoupMax         int
}

func (c *NetworkConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.PowerBase <= 0 {
		c.PowerBase = 10
	}
	if c.MoneyWeight <= 0 {
		c.MoneyWeight = 0.1
	}
	if c.RecruitWeight <= 0 {
		c.RecruitWeight = 25
	}
	if c.InvestBoost <= 0 {
		c.InvestBoost = 0.2
	}
	if c.CoupCostFactor <= 0 {
		c.CoupCostFactor = 1.5
	}
	if c.CoupCooldownTicks <= 0 {
		c.CoupCooldownTicks = 3000
	}
	if c.InvestCapPermille <= 0 {
		c.InvestCapPermille = 500
	}
	if c.PayoutPermille <= 0 {
		c.PayoutPermille = 1500
	}
	if c.PromotionRecruits <= 0 {
		c.PromotionRecruits = 5
	}
	if c.MaxChildren <= 0 {
		c.MaxChildren = 5
	}
	if c.FounderMoney <= 0 {
		c.FounderMoney = 1000
	}
	if c.StarterMoney <= 0 {
		c.StarterMoney = 100
	}
	if c.RecruitMoney <= 0 {
		c.RecruitMoney = 50
	}
	if len(c.TierReach) == 0 {
		c.TierReach = []int{1, 2, 4, 8}
	}
	if c.SnapshotEveryTicks <= 0 {
		c.SnapshotEveryTicks = 3000
	}
	c.RateLimits.applyDefaults()
}

func (rl *RateLimitConfig) applyDefaults() {
	if rl.SayWindowTicks <= 0 {
		rl.SayWindowTicks = 50
	}
	if rl.SayMax <= 0 {
		rl.SayMax = 5
	}
	if rl.CoupWindowTicks <= 0 {
		rl.CoupWindowTicks = 600
	}
	if rl.CoupMax <= 0 {
		rl.CoupMax = 1
	}
}
