package game

import (
	"context"

	"go.uber.org/zap"

	"tycoon.ai/internal/persistence/kv"
	"tycoon.ai/internal/persistence/savegame"
)

type BootResult struct {
	FirstRun       bool
	OfflineEarned  float64
	PendingOffline float64
	// SaveErr is the first-run save failure, if any. It is not fatal.
	SaveErr error
}

// Boot loads the saved game under key. Without a usable save the first-run
// state is written immediately; otherwise the save is restored and offline
// earnings are reconciled. Call before Run.
func (e *Engine) Boot(ctx context.Context, store kv.Store, key string) (BootResult, error) {
	snap, ok, err := savegame.Load(ctx, store, key, e.log)
	if err != nil {
		return BootResult{}, err
	}
	if !ok {
		res := BootResult{FirstRun: true}
		if err := savegame.Save(ctx, store, key, e.Snapshot()); err != nil {
			e.log.Warn("first-run save failed", zap.String("key", key), zap.Error(err))
			res.SaveErr = err
		}
		e.publish()
		return res, nil
	}
	if err := e.Restore(snap); err != nil {
		return BootResult{}, err
	}
	earned := e.ReconcileOffline(e.clk.Now())
	return BootResult{OfflineEarned: earned, PendingOffline: e.offline}, nil
}
