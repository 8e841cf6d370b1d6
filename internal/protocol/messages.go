package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	MemberName      string            `json:"member_name"`
	Controller      string            `json:"controller,omitempty"` // "PLAYER" or "AI" (default)
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	NodeID          string        `json:"node_id"`
	ResumeToken     string        `json:"resume_token"`
	NetworkParams   NetworkParams `json:"network_params"`
}

// NetworkParams carries the economic constants a client needs to predict
// engine decisions (caps, cooldowns) without a round trip.
type NetworkParams struct {
	NetworkID         string `json:"network_id"`
	TickRateHz        int    `json:"tick_rate_hz"`
	Seed              int64  `json:"seed"`
	CoupCooldownTicks int    `json:"coup_cooldown_ticks"`
	InvestCapPermille int    `json:"invest_cap_permille"`
	PayoutPermille    int    `json:"payout_permille"`
	MaxChildren       int    `json:"max_children"`
	PromotionRecruits int    `json:"promotion_recruits"`
	TuningDigest      string `json:"tuning_digest,omitempty"`
}
