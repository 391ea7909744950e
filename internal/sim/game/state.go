package game

import (
	"maps"
	"time"
)

// BusinessState is the per-business progression record. Amount == 0 means
// the business is locked.
type BusinessState struct {
	Amount     int       `json:"amount"`
	IsWorking  bool      `json:"is_working"`
	WorkEndsAt time.Time `json:"work_ends_at"`
	StartedAt  time.Time `json:"started_at"`
}

func (b BusinessState) Unlocked() bool { return b.Amount > 0 }

type ManagerState struct {
	IsUnlocked bool `json:"is_unlocked"`
}

type WalletState struct {
	Money float64 `json:"money"`
}

// State is a point-in-time copy of everything the engine owns. Values handed
// out by Engine.View share their maps with other readers and must not be
// modified.
type State struct {
	Businesses      map[string]BusinessState `json:"businesses"`
	Managers        map[string]ManagerState  `json:"managers"`
	Wallet          WalletState              `json:"wallet"`
	LastSavedAt     time.Time                `json:"last_saved_at"`
	OfflineEarnings float64                  `json:"offline_earnings"`
	Tick            uint64                   `json:"tick"`
}

func (s State) Clone() State {
	out := s
	out.Businesses = maps.Clone(s.Businesses)
	out.Managers = maps.Clone(s.Managers)
	if out.Businesses == nil {
		out.Businesses = map[string]BusinessState{}
	}
	if out.Managers == nil {
		out.Managers = map[string]ManagerState{}
	}
	return out
}

// LedgerEntry records one change to the wallet.
type LedgerEntry struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	Tick       uint64    `json:"tick"`
	Kind       string    `json:"kind"`
	BusinessID string    `json:"business_id,omitempty"`
	ManagerID  string    `json:"manager_id,omitempty"`
	Delta      float64   `json:"delta"`
	Amount     int       `json:"amount,omitempty"`
	// Balance is the wallet after the change. Pending is the uncollected
	// offline balance, set on offline entries only.
	Balance float64 `json:"balance"`
	Pending float64 `json:"pending,omitempty"`
}

// Ledger entry kinds.
const (
	EntryUnlock           = "UNLOCK"
	EntryUpgrade          = "UPGRADE"
	EntryHireManager      = "HIRE_MANAGER"
	EntryCycleComplete    = "CYCLE_COMPLETE"
	EntryOfflineReconcile = "OFFLINE_RECONCILE"
	EntryOfflineCollect   = "OFFLINE_COLLECT"
)
