package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Economy    Economy    `yaml:"economy"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

// Economy holds the constants behind the derived-metric formulas.
type Economy struct {
	PowerBase     float64 `yaml:"power_base"`
	MoneyWeight   float64 `yaml:"money_weight"`
	RecruitWeight float64 `yaml:"recruit_weight"`
	InvestBoost   float64 `yaml:"invest_boost"`

	CoupCostFactor    float64 `yaml:"coup_cost_factor"`
	CoupCooldownTicks int     `yaml:"coup_cooldown_ticks"`
	InvestCapPermille int     `yaml:"invest_cap_permille"`
	PayoutPermille    int     `yaml:"payout_permille"`

	PromotionRecruits int   `yaml:"promotion_recruits"`
	MaxChildren       int   `yaml:"max_children"`
	FounderMoney      int64 `yaml:"founder_money"`
	StarterMoney      int64 `yaml:"starter_money"`
	RecruitMoney      int64 `yaml:"recruit_money"`

	TierReach []int `yaml:"tier_reach"`
}

type RateLimits struct {
	SayWindowTicks  int `yaml:"say_window_ticks"`
	SayMax          int `yaml:"say_max"`
	CoupWindowTicks int `yaml:"coup_window_ticks"`
	CoupMax         int `yaml:"coup_max"`
}

// Defaults returns the built-in tuning used when no tuning.yaml is
// available (snapshot resumes carry the effective values anyway).
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         5,
		SnapshotEveryTicks: 3000,
		Economy: Economy{
			PowerBase:         10,
			MoneyWeight:       0.1,
			RecruitWeight:     25,
			InvestBoost:       0.2,
			CoupCostFactor:    1.5,
			CoupCooldownTicks: 3000,
			InvestCapPermille: 500,
			PayoutPermille:    1500,
			PromotionRecruits: 5,
			MaxChildren:       5,
			FounderMoney:      1000,
			StarterMoney:      100,
			RecruitMoney:      50,
			TierReach:         []int{1, 2, 4, 8},
		},
		RateLimits: RateLimits{
			SayWindowTicks:  50,
			SayMax:          5,
			CoupWindowTicks: 600,
			CoupMax:         1,
		},
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
