package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"tycoon.ai/internal/clock"
	"tycoon.ai/internal/persistence/kv"
	"tycoon.ai/internal/persistence/savegame"
)

func TestBoot_FirstRunSavesImmediately(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	e, _ := newTestEngine(t, 25)

	res, err := e.Boot(ctx, store, "gameState")
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	if !res.FirstRun || res.SaveErr != nil {
		t.Fatalf("result: %+v", res)
	}
	snap, ok, err := savegame.Load(ctx, store, "gameState", nil)
	if err != nil || !ok {
		t.Fatalf("expected a save: ok=%v err=%v", ok, err)
	}
	if snap.Wallet.Money != 25 || snap.Businesses["lemon"].Amount != 1 {
		t.Fatalf("saved state: %+v", snap)
	}
}

func TestBoot_RestoresAndReconciles(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	first, _ := newTestEngine(t, 100)
	if _, err := first.Boot(ctx, store, "k"); err != nil {
		t.Fatalf("boot: %v", err)
	}
	if err := first.HireManager("m-lemon"); err != nil {
		t.Fatalf("hire: %v", err)
	}
	if err := savegame.Save(ctx, store, "k", first.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	clk := clock.NewManual(t0.Add(time.Minute))
	second := New(Config{}, testCatalogs(t), clk, nil)
	res, err := second.Boot(ctx, store, "k")
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	if res.FirstRun || res.OfflineEarned != 300 || res.PendingOffline != 300 {
		t.Fatalf("result: %+v", res)
	}
	if second.Money() != 0 {
		t.Fatalf("offline earnings must wait for collect: %v", second.Money())
	}
	if m, _ := second.Manager("m-lemon"); !m.IsUnlocked {
		t.Fatalf("manager not restored")
	}
}

func TestBoot_CorruptSaveTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	_ = store.Set(ctx, "k", "{broken")

	e, _ := newTestEngine(t, 3)
	res, err := e.Boot(ctx, store, "k")
	if err != nil || !res.FirstRun {
		t.Fatalf("boot: %+v %v", res, err)
	}
	if _, ok, _ := savegame.Load(ctx, store, "k", nil); !ok {
		t.Fatalf("expected corrupt blob to be replaced")
	}
}

func TestBoot_SaveFailureIsNotFatal(t *testing.T) {
	store := kv.NewMemoryStore()
	store.FailSet = errors.New("disk full")
	e, _ := newTestEngine(t, 0)
	res, err := e.Boot(context.Background(), store, "k")
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	if !res.FirstRun || res.SaveErr == nil {
		t.Fatalf("expected SaveErr to be surfaced: %+v", res)
	}
}
