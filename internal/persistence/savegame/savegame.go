// Package savegame moves game snapshots in and out of a kv.Store.
package savegame

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tycoon.ai/internal/persistence/kv"
	"tycoon.ai/internal/persistence/snapshot"
)

const DefaultKey = "gameState"

// Load returns the snapshot stored under key. ok=false means no usable save
// exists: either nothing was ever written or the blob does not decode.
// Only store errors are returned.
func Load(ctx context.Context, store kv.Store, key string, log *zap.Logger) (snapshot.Snapshot, bool, error) {
	if log == nil {
		log = zap.NewNop()
	}
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || raw == "" {
		return snapshot.Snapshot{}, false, nil
	}
	snap, err := snapshot.Decode(raw)
	if err != nil {
		log.Warn("discarding unreadable save", zap.String("key", key), zap.Error(err))
		return snapshot.Snapshot{}, false, nil
	}
	return snap, true, nil
}

func Save(ctx context.Context, store kv.Store, key string, snap snapshot.Snapshot) error {
	s, err := snapshot.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, s); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
