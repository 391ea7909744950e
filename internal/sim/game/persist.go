package game

import (
	"go.uber.org/zap"

	"tycoon.ai/internal/persistence/snapshot"
)

// Snapshot exports the full state stamped with the current time, which
// becomes the new last-saved timestamp.
func (e *Engine) Snapshot() snapshot.Snapshot {
	now := e.clk.Now()
	e.lastSaved = now

	snap := snapshot.Snapshot{
		Version:            snapshot.Version,
		Businesses:         make(map[string]snapshot.BusinessV1, len(e.businesses)),
		Managers:           make(map[string]snapshot.ManagerV1, len(e.managers)),
		Wallet:             snapshot.WalletV1{Money: e.wallet.Money},
		LastSavedTimestamp: now,
		OfflineEarnings:    e.offline,
	}
	for id, b := range e.businesses {
		snap.Businesses[id] = snapshot.BusinessV1{
			Amount:     b.Amount,
			IsWorking:  b.IsWorking,
			WorkEndsAt: b.WorkEndsAt,
			StartedAt:  b.StartedAt,
		}
	}
	for id, m := range e.managers {
		snap.Managers[id] = snapshot.ManagerV1{IsUnlocked: m.IsUnlocked}
	}
	return snap
}

// Restore replaces the state with snap. Entries for ids missing from the
// catalog are dropped; catalog entries missing from snap keep first-run values.
func (e *Engine) Restore(snap snapshot.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	e.resetState()
	for id, b := range snap.Businesses {
		if _, ok := e.businesses[id]; !ok {
			e.log.Warn("restore: unknown business dropped", zap.String("business", id))
			continue
		}
		e.businesses[id] = BusinessState{
			Amount:     b.Amount,
			IsWorking:  b.IsWorking,
			WorkEndsAt: b.WorkEndsAt,
			StartedAt:  b.StartedAt,
		}
	}
	for id, m := range snap.Managers {
		if _, ok := e.managers[id]; !ok {
			e.log.Warn("restore: unknown manager dropped", zap.String("manager", id))
			continue
		}
		e.managers[id] = ManagerState{IsUnlocked: m.IsUnlocked}
	}
	e.wallet = WalletState{Money: snap.Wallet.Money}
	if !snap.LastSavedTimestamp.IsZero() {
		e.lastSaved = snap.LastSavedTimestamp
	}
	e.offline = snap.OfflineEarnings
	e.changed()
	return nil
}
