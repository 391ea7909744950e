package game

import (
	"time"

	"go.uber.org/zap"

	"tycoon.ai/internal/sim/catalogs"
)

// OfflineEarnings computes what st earned between st.LastSavedAt and now.
// A managed business earns profit for every (fractional) cycle that fits in
// the elapsed time. An unmanaged business earns one cycle if it was working
// and that cycle has ended. settled lists the working businesses whose
// in-flight cycle is covered by the result.
func OfflineEarnings(cats *catalogs.Catalogs, st State, now time.Time) (earned float64, settled []string) {
	elapsed := now.Sub(st.LastSavedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	for _, id := range cats.Businesses.Order {
		b, ok := st.Businesses[id]
		if !ok || !b.Unlocked() {
			continue
		}
		profit, err := cats.Profit(id, b.Amount)
		if err != nil {
			continue
		}
		if mid, ok := cats.ManagerForBusiness(id); ok && st.Managers[mid].IsUnlocked {
			cycle, err := cats.TimeToProfit(id, b.Amount)
			if err != nil || cycle <= 0 {
				continue
			}
			earned += profit * (elapsed / cycle)
			if b.IsWorking && elapsed > 0 {
				settled = append(settled, id)
			}
			continue
		}
		if b.IsWorking && !now.Before(b.WorkEndsAt) {
			earned += profit
			settled = append(settled, id)
		}
	}
	return earned, settled
}

// ReconcileOffline adds the earnings accrued since the last save to the
// pending offline balance. Settled cycles stop working so Tick does not
// credit them a second time. Returns the amount added.
func (e *Engine) ReconcileOffline(now time.Time) float64 {
	earned, settled := OfflineEarnings(e.cats, e.state(), now)
	for _, id := range settled {
		b := e.businesses[id]
		b.IsWorking = false
		e.businesses[id] = b
	}
	if now.After(e.lastSaved) {
		e.lastSaved = now
	}
	if earned <= 0 && len(settled) == 0 {
		return 0
	}
	e.offline += earned
	e.record(LedgerEntry{Kind: EntryOfflineReconcile, Delta: earned, Pending: e.offline})
	e.log.Info("offline earnings reconciled",
		zap.Float64("earned", earned),
		zap.Float64("pending", e.offline),
		zap.Int("settled", len(settled)),
	)
	e.changed()
	return earned
}

// PendingOffline returns earnings waiting to be collected.
func (e *Engine) PendingOffline() float64 { return e.offline }

// CollectOffline moves the pending offline earnings into the wallet.
func (e *Engine) CollectOffline() float64 {
	amount := e.offline
	if amount <= 0 {
		return 0
	}
	e.wallet.Money += amount
	e.offline = 0
	e.earnedTotal += amount
	e.record(LedgerEntry{Kind: EntryOfflineCollect, Delta: amount})
	e.changed()
	e.requestSave()
	return amount
}
