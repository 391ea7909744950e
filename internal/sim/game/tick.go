package game

import (
	"time"

	"go.uber.org/zap"
)

type TickResult struct {
	Tick      uint64
	Completed []string
	Started   []string
	Earned    float64
}

// Tick credits every cycle whose end time has passed, then restarts idle
// businesses that have a hired manager. A cycle is credited exactly once
// because crediting clears IsWorking.
func (e *Engine) Tick() TickResult {
	start := time.Now()
	now := e.clk.Now()
	var res TickResult

	for _, id := range e.cats.Businesses.Order {
		b := e.businesses[id]
		if !b.IsWorking || now.Before(b.WorkEndsAt) {
			continue
		}
		profit, err := e.cats.Profit(id, b.Amount)
		if err != nil {
			e.log.Error("profit", zap.String("business_id", id), zap.Error(err))
			continue
		}
		e.wallet.Money += profit
		b.IsWorking = false
		e.businesses[id] = b
		e.cyclesCompleted++
		e.earnedTotal += profit
		res.Completed = append(res.Completed, id)
		res.Earned += profit
		e.log.Debug("cycle complete", zap.String("business_id", id), zap.Float64("profit", profit))
		e.record(LedgerEntry{Kind: EntryCycleComplete, BusinessID: id, Delta: profit, Amount: b.Amount})
	}

	for _, id := range e.cats.Businesses.Order {
		b := e.businesses[id]
		if b.IsWorking || !b.Unlocked() || !e.managed(id) {
			continue
		}
		if err := e.startWork(id, now); err != nil {
			e.log.Error("restart managed business", zap.String("business_id", id), zap.Error(err))
			continue
		}
		res.Started = append(res.Started, id)
	}

	e.tick++
	res.Tick = e.tick
	e.stepMS = float64(time.Since(start).Microseconds()) / 1000

	if n := e.cfg.AutosaveEveryTicks; n > 0 && e.tick%uint64(n) == 0 {
		e.requestSave()
	}
	if len(res.Completed) > 0 || len(res.Started) > 0 {
		e.changed()
	} else {
		e.publish()
	}
	return res
}

// managed reports whether the business has a hired manager.
func (e *Engine) managed(businessID string) bool {
	mid, ok := e.cats.ManagerForBusiness(businessID)
	return ok && e.managers[mid].IsUnlocked
}
