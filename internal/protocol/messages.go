package protocol

// WELCOME (server -> client), sent once after the websocket upgrade.
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	TickMs          int        `json:"tick_ms"`
	RefreshMs       int        `json:"refresh_ms"`
	Catalog         CatalogMsg `json:"catalog"`
}

type CatalogMsg struct {
	Businesses       []BusinessInfo `json:"businesses"`
	Managers         []ManagerInfo  `json:"managers"`
	Milestones       []int          `json:"milestones"`
	BusinessesDigest string         `json:"businesses_digest,omitempty"`
	ManagersDigest   string         `json:"managers_digest,omitempty"`
}

type BusinessInfo struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Image          string  `json:"image,omitempty"`
	InitialCost    float64 `json:"initial_cost"`
	Coefficient    float64 `json:"coefficient"`
	InitialTime    float64 `json:"initial_time"`
	InitialRevenue float64 `json:"initial_revenue"`
}

type ManagerInfo struct {
	ID         string  `json:"id"`
	BusinessID string  `json:"business_id"`
	Name       string  `json:"name,omitempty"`
	Image      string  `json:"image,omitempty"`
	Cost       float64 `json:"cost"`
}

// STATE (server -> client). Sent after every change and on the refresh
// cadence while any cycle is running.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	ServerTimeMs    int64  `json:"server_time_ms"`

	Money               float64 `json:"money"`
	MoneyText           string  `json:"money_text"`
	OfflineEarnings     float64 `json:"offline_earnings"`
	OfflineEarningsText string  `json:"offline_earnings_text"`
	HasHireableManager  bool    `json:"has_hireable_manager"`

	Businesses []BusinessView `json:"businesses"`
	Managers   []ManagerView  `json:"managers"`
}

type BusinessView struct {
	ID         string `json:"id"`
	Amount     int    `json:"amount"`
	IsUnlocked bool   `json:"is_unlocked"`
	IsWorking  bool   `json:"is_working"`

	CanUnlock       bool    `json:"can_unlock"`
	UnlockCost      float64 `json:"unlock_cost"`
	UnlockCostText  string  `json:"unlock_cost_text"`
	CanUpgrade      bool    `json:"can_upgrade"`
	UpgradeCost     float64 `json:"upgrade_cost"`
	UpgradeCostText string  `json:"upgrade_cost_text"`

	Profit        float64 `json:"profit"`
	ProfitText    string  `json:"profit_text"`
	CycleSeconds  float64 `json:"cycle_seconds"`
	RemainingText string  `json:"remaining_text"`
	Progress      float64 `json:"progress"`

	NextMilestone  int     `json:"next_milestone"`
	AmountProgress float64 `json:"amount_progress"`
	AmountLabel    string  `json:"amount_label"`

	ManagerID    string `json:"manager_id,omitempty"`
	ManagerHired bool   `json:"manager_hired"`
}

type ManagerView struct {
	ID         string  `json:"id"`
	BusinessID string  `json:"business_id"`
	IsUnlocked bool    `json:"is_unlocked"`
	CanHire    bool    `json:"can_hire"`
	Cost       float64 `json:"cost"`
	CostText   string  `json:"cost_text"`
}

// ACT (client -> server).
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Action          string `json:"action"`
	BusinessID      string `json:"business_id,omitempty"`
	ManagerID       string `json:"manager_id,omitempty"`
	Step            int    `json:"step,omitempty"`
}

// ACK (server -> client), one per ACT.
type AckMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	AckFor          string  `json:"ack_for,omitempty"`
	Accepted        bool    `json:"accepted"`
	Code            string  `json:"code,omitempty"`
	Message         string  `json:"message,omitempty"`
	Collected       float64 `json:"collected,omitempty"`
}
