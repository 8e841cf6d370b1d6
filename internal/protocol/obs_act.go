package protocol

// OBS (server -> client): per-tick view of the session's node and its
// neighborhood in the organization tree.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	NodeID          string `json:"node_id"`

	Self     SelfObs    `json:"self"`
	Metrics  MetricsObs `json:"metrics"`
	Upline   []NodeRef  `json:"upline,omitempty"`
	Siblings []string   `json:"siblings,omitempty"`
	Downline int        `json:"downline"`

	Events []Event `json:"events,omitempty"`
}

type SelfObs struct {
	Name                string         `json:"name"`
	Level               int            `json:"level"`
	ParentID            string         `json:"parent_id,omitempty"`
	ChildIDs            []string       `json:"child_ids,omitempty"`
	Money               int64          `json:"money"`
	Recruits            int            `json:"recruits"`
	Controller          string         `json:"controller"`
	InvestmentsReceived int64          `json:"investments_received"`
	Investors           []StakeObs     `json:"investors,omitempty"`
	CoupCooldownUntil   uint64         `json:"coup_cooldown_until,omitempty"`
	Inventory           map[string]int `json:"inventory,omitempty"`
	MaxInventory        int            `json:"max_inventory,omitempty"`
}

type StakeObs struct {
	InvestorID string `json:"investor_id"`
	Amount     int64  `json:"amount"`
}

type NodeRef struct {
	ID    string  `json:"id"`
	Level int     `json:"level"`
	Power float64 `json:"power"`
}

// MetricsObs is the derived-metric view against the node's direct upline.
type MetricsObs struct {
	Power           float64 `json:"power"`
	ParentID        string  `json:"parent_id,omitempty"`
	CoupCost        int64   `json:"coup_cost,omitempty"`
	CoupChance      float64 `json:"coup_chance,omitempty"`
	MaxInvestUpline int64   `json:"max_invest_upline,omitempty"`
}

type Event map[string]interface{}

// ACT (client -> server)
type ActMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	NodeID          string      `json:"node_id"`
	Intents         []IntentReq `json:"intents,omitempty"`
}

// IntentReq is one structured intent dispatched into the engine.
// Types: INVEST, WITHDRAW_INVESTMENT, ATTEMPT_COUP, MOVE_UP, RECRUIT, SAY.
type IntentReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	TargetID string `json:"target_id,omitempty"`
	Amount   int64  `json:"amount,omitempty"`
	Bonus    int64  `json:"bonus,omitempty"`
	Name     string `json:"name,omitempty"`
	Text     string `json:"text,omitempty"`
}
