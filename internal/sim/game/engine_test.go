package game

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"tycoon.ai/internal/clock"
	"tycoon.ai/internal/persistence/snapshot"
	"tycoon.ai/internal/protocol"
	"tycoon.ai/internal/sim/catalogs"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.New(
		[]catalogs.BusinessDef{
			{ID: "lemon", Name: "Lemon", AutoUnlocked: true, InitialCost: 10, Coefficient: 2, InitialTime: 1, InitialRevenue: 5},
			{ID: "paper", Name: "Paper", InitialCost: 60, Coefficient: 1.5, InitialTime: 4, InitialRevenue: 60},
		},
		[]catalogs.ManagerDef{
			{ID: "m-lemon", BusinessID: "lemon", Cost: 100},
			{ID: "m-paper", BusinessID: "paper", Cost: 1000},
		},
	)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	return c
}

func newTestEngine(t *testing.T, money float64) (*Engine, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(t0)
	e := New(Config{TickInterval: time.Second, StartingBalance: money}, testCatalogs(t), clk, nil)
	return e, clk
}

type fakeSink struct{ snaps []snapshot.Snapshot }

func (s *fakeSink) Enqueue(snap snapshot.Snapshot) bool {
	s.snaps = append(s.snaps, snap)
	return true
}

type fakeJournal struct{ entries []LedgerEntry }

func (j *fakeJournal) WriteEntry(e LedgerEntry) error {
	j.entries = append(j.entries, e)
	return nil
}

func expectNoSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected change notification")
	default:
	}
}

func expectSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	default:
		t.Fatalf("expected change notification")
	}
}

func TestNew_FirstRunState(t *testing.T) {
	e, _ := newTestEngine(t, 7)
	if b, _ := e.Business("lemon"); b.Amount != 1 || b.IsWorking {
		t.Fatalf("lemon: %+v", b)
	}
	if b, _ := e.Business("paper"); b.Amount != 0 {
		t.Fatalf("paper should be locked: %+v", b)
	}
	if m, _ := e.Manager("m-lemon"); m.IsUnlocked {
		t.Fatalf("manager should not be hired")
	}
	if e.Money() != 7 {
		t.Fatalf("money: got %v", e.Money())
	}
	if v := e.View(); v.Wallet.Money != 7 || len(v.Businesses) != 2 {
		t.Fatalf("view: %+v", v)
	}
}

func TestNew_AutoUnlockedManagerIsHired(t *testing.T) {
	c, err := catalogs.New(
		[]catalogs.BusinessDef{{ID: "b", AutoUnlocked: true, InitialCost: 1, Coefficient: 1.1, InitialTime: 1, InitialRevenue: 1}},
		[]catalogs.ManagerDef{{ID: "m", BusinessID: "b", AutoUnlocked: true}},
	)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	e := New(Config{}, c, clock.NewManual(t0), nil)
	if m, _ := e.Manager("m"); !m.IsUnlocked {
		t.Fatalf("expected auto-unlocked manager to be hired")
	}
	res := e.Tick()
	if !reflect.DeepEqual(res.Started, []string{"b"}) {
		t.Fatalf("expected managed business to start on first tick, got %+v", res)
	}
}

func TestUnlock(t *testing.T) {
	e, _ := newTestEngine(t, 50)
	ch, unsub := e.Subscribe()
	defer unsub()

	if err := e.Unlock("paper"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if e.Money() != 50 {
		t.Fatalf("refusal must not debit: %v", e.Money())
	}
	expectNoSignal(t, ch)

	if err := e.Unlock("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := e.Unlock("lemon"); !errors.Is(err, ErrAlreadyUnlocked) {
		t.Fatalf("expected ErrAlreadyUnlocked, got %v", err)
	}
	expectNoSignal(t, ch)

	e.wallet.Money = 100
	if err := e.Unlock("paper"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if b, _ := e.Business("paper"); b.Amount != 1 {
		t.Fatalf("paper amount: %d", b.Amount)
	}
	if e.Money() != 40 {
		t.Fatalf("money: got %v want 40", e.Money())
	}
	expectSignal(t, ch)
}

func TestUpgrade(t *testing.T) {
	e, _ := newTestEngine(t, 100)

	if err := e.Upgrade("paper", 1); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := e.Upgrade("lemon", 0); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	// amount 1: 10 * 2^1
	if err := e.Upgrade("lemon", 1); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if b, _ := e.Business("lemon"); b.Amount != 2 || e.Money() != 80 {
		t.Fatalf("after upgrade: amount=%d money=%v", b.Amount, e.Money())
	}
	// amount 2: 40, charged once even for a bigger step.
	if err := e.Upgrade("lemon", 5); err != nil {
		t.Fatalf("upgrade step: %v", err)
	}
	if b, _ := e.Business("lemon"); b.Amount != 7 || e.Money() != 40 {
		t.Fatalf("after step upgrade: amount=%d money=%v", b.Amount, e.Money())
	}
	// amount 7: 1280
	if err := e.Upgrade("lemon", 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if b, _ := e.Business("lemon"); b.Amount != 7 || e.Money() != 40 {
		t.Fatalf("refusal mutated state: amount=%d money=%v", b.Amount, e.Money())
	}
}

func TestStartWorkAndTick_CreditsOnce(t *testing.T) {
	e, clk := newTestEngine(t, 0)

	if err := e.StartWork("paper"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := e.StartWork("lemon"); err != nil {
		t.Fatalf("start: %v", err)
	}
	b, _ := e.Business("lemon")
	if !b.IsWorking || !b.StartedAt.Equal(t0) || !b.WorkEndsAt.Equal(t0.Add(time.Second)) {
		t.Fatalf("cycle: %+v", b)
	}

	clk.Advance(500 * time.Millisecond)
	if res := e.Tick(); len(res.Completed) != 0 || e.Money() != 0 {
		t.Fatalf("cycle completed early: %+v", res)
	}

	clk.Advance(500 * time.Millisecond)
	res := e.Tick()
	if !reflect.DeepEqual(res.Completed, []string{"lemon"}) || res.Earned != 5 {
		t.Fatalf("tick: %+v", res)
	}
	if e.Money() != 5 {
		t.Fatalf("money: %v", e.Money())
	}
	if b, _ := e.Business("lemon"); b.IsWorking {
		t.Fatalf("expected idle after completion")
	}

	clk.Advance(10 * time.Second)
	e.Tick()
	if e.Money() != 5 {
		t.Fatalf("cycle credited twice: %v", e.Money())
	}
	if e.View().Tick != 3 {
		t.Fatalf("tick counter: %d", e.View().Tick)
	}
}

func TestStartWork_RestartsRunningCycle(t *testing.T) {
	e, clk := newTestEngine(t, 0)
	_ = e.StartWork("lemon")
	clk.Advance(700 * time.Millisecond)
	if err := e.StartWork("lemon"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	b, _ := e.Business("lemon")
	if !b.StartedAt.Equal(t0.Add(700 * time.Millisecond)) {
		t.Fatalf("expected cycle restarted, got %+v", b)
	}

	res := e.Apply(Action{Kind: protocol.ActStartWork, BusinessID: "lemon"})
	if !errors.Is(res.Err, ErrAlreadyWorking) {
		t.Fatalf("expected action layer to refuse, got %v", res.Err)
	}
	if ErrorCode(res.Err) != protocol.ErrConflict {
		t.Fatalf("code: %s", ErrorCode(res.Err))
	}
}

func TestMilestoneHalvesCycle(t *testing.T) {
	e, _ := newTestEngine(t, 1000)
	if err := e.Upgrade("lemon", 24); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	_ = e.StartWork("lemon")
	b, _ := e.Business("lemon")
	if got := b.WorkEndsAt.Sub(b.StartedAt); got != 500*time.Millisecond {
		t.Fatalf("cycle at 25 units: got %v want 500ms", got)
	}
}

func TestHireManager(t *testing.T) {
	e, clk := newTestEngine(t, 150)
	j := &fakeJournal{}
	e.SetJournal(j)

	if err := e.HireManager("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := e.HireManager("m-paper"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := e.HireManager("m-lemon"); err != nil {
		t.Fatalf("hire: %v", err)
	}
	if e.Money() != 50 {
		t.Fatalf("money: %v", e.Money())
	}
	if b, _ := e.Business("lemon"); !b.IsWorking {
		t.Fatalf("hiring must start an idle business")
	}
	if err := e.HireManager("m-lemon"); !errors.Is(err, ErrAlreadyHired) {
		t.Fatalf("expected ErrAlreadyHired, got %v", err)
	}

	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		res := e.Tick()
		if !reflect.DeepEqual(res.Completed, []string{"lemon"}) || !reflect.DeepEqual(res.Started, []string{"lemon"}) {
			t.Fatalf("tick %d: %+v", i, res)
		}
	}
	if e.Money() != 65 {
		t.Fatalf("money after automation: %v", e.Money())
	}

	var kinds []string
	for _, en := range j.entries {
		kinds = append(kinds, en.Kind)
		if en.ID == "" || en.At.IsZero() {
			t.Fatalf("entry missing id or time: %+v", en)
		}
	}
	want := []string{EntryHireManager, EntryCycleComplete, EntryCycleComplete, EntryCycleComplete}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("ledger: got %v want %v", kinds, want)
	}
	if last := j.entries[len(j.entries)-1]; last.Balance != 65 || last.Delta != 5 {
		t.Fatalf("last entry: %+v", last)
	}
}

func TestHireManager_LockedBusinessStartsAfterUnlock(t *testing.T) {
	e, _ := newTestEngine(t, 1060)
	if err := e.HireManager("m-paper"); err != nil {
		t.Fatalf("hire: %v", err)
	}
	if b, _ := e.Business("paper"); b.IsWorking {
		t.Fatalf("locked business must not start")
	}
	if res := e.Tick(); len(res.Started) != 0 {
		t.Fatalf("locked business restarted: %+v", res)
	}
	if err := e.Unlock("paper"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if res := e.Tick(); !reflect.DeepEqual(res.Started, []string{"paper"}) {
		t.Fatalf("expected paper to start: %+v", res)
	}
}

func TestAffordabilityQueries(t *testing.T) {
	e, _ := newTestEngine(t, 99)
	if !e.CanUnlock("paper") || e.CanUnlock("lemon") || e.CanUnlock("nope") {
		t.Fatalf("CanUnlock")
	}
	if e.CanHireManager("m-lemon") || e.HasHireableManager() {
		t.Fatalf("nothing should be hireable with 99")
	}
	e.wallet.Money = 100
	if !e.CanHireManager("m-lemon") || !e.HasHireableManager() {
		t.Fatalf("m-lemon should be hireable")
	}
	_ = e.HireManager("m-lemon")
	if e.CanHireManager("m-lemon") {
		t.Fatalf("hired manager is not hireable")
	}
}

func TestApply_UnknownAction(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	res := e.Apply(Action{Kind: "SELL"})
	if !errors.Is(res.Err, ErrBadRequest) || ErrorCode(res.Err) != protocol.ErrBadRequest {
		t.Fatalf("got %v", res.Err)
	}
	res = e.Apply(Action{Kind: protocol.ActUpgrade, BusinessID: "lemon"})
	if ErrorCode(res.Err) != protocol.ErrInsufficientFunds {
		t.Fatalf("default step upgrade: %v", res.Err)
	}
}

func TestErrorCode_KnownCodes(t *testing.T) {
	for _, err := range []error{nil, ErrNotFound, ErrInsufficientFunds, ErrLocked, ErrAlreadyUnlocked, ErrAlreadyHired, ErrAlreadyWorking, ErrBadRequest, errors.New("boom")} {
		if code := ErrorCode(err); !protocol.IsKnownCode(code) {
			t.Fatalf("%v maps to unknown code %q", err, code)
		}
	}
	if ErrorCode(errors.New("boom")) != protocol.ErrInternal {
		t.Fatalf("unexpected code for unknown error")
	}
}

func TestSaveSink_OnPurchasesAndAutosave(t *testing.T) {
	clk := clock.NewManual(t0)
	e := New(Config{StartingBalance: 100, AutosaveEveryTicks: 2}, testCatalogs(t), clk, nil)
	sink := &fakeSink{}
	e.SetSaveSink(sink)

	_ = e.Unlock("nope")
	if len(sink.snaps) != 0 {
		t.Fatalf("refusal must not save")
	}
	_ = e.Unlock("paper")
	if len(sink.snaps) != 1 || sink.snaps[0].Wallet.Money != 40 {
		t.Fatalf("expected save after unlock: %+v", sink.snaps)
	}
	e.Tick()
	e.Tick()
	if len(sink.snaps) != 2 {
		t.Fatalf("expected autosave on second tick, got %d", len(sink.snaps))
	}
	if m := e.Metrics(); m.SavesRequested != 2 || m.Tick != 2 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	e, clk := newTestEngine(t, 500)
	_ = e.Unlock("paper")
	_ = e.Upgrade("lemon", 3)
	_ = e.HireManager("m-lemon")
	_ = e.StartWork("paper")
	e.offline = 12
	clk.Advance(3 * time.Second)

	snap := e.Snapshot()
	if !snap.LastSavedTimestamp.Equal(clk.Now()) {
		t.Fatalf("snapshot must carry the save time")
	}
	raw, err := snapshot.Encode(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := snapshot.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	other, _ := newTestEngine(t, 0)
	if err := other.Restore(decoded); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(other.state(), e.state()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", other.state(), e.state())
	}
}

func TestRestore_IgnoresUnknownAndKeepsDefaults(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	err := e.Restore(snapshot.Snapshot{
		Version:    snapshot.Version,
		Businesses: map[string]snapshot.BusinessV1{"paper": {Amount: 3}, "ghost": {Amount: 9}},
		Managers:   map[string]snapshot.ManagerV1{"ghost": {IsUnlocked: true}},
		Wallet:     snapshot.WalletV1{Money: 9},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, ok := e.Business("ghost"); ok {
		t.Fatalf("unknown business kept")
	}
	if b, _ := e.Business("lemon"); b.Amount != 1 {
		t.Fatalf("lemon should keep first-run amount, got %d", b.Amount)
	}
	if b, _ := e.Business("paper"); b.Amount != 3 {
		t.Fatalf("paper: %d", b.Amount)
	}
	if err := e.Restore(snapshot.Snapshot{Wallet: snapshot.WalletV1{Money: math.NaN()}}); err == nil {
		t.Fatalf("expected invalid snapshot rejected")
	}
}

// Random purchases never drive money negative or reduce an amount.
func TestInvariants_RandomActions(t *testing.T) {
	e, clk := newTestEngine(t, 200)
	rng := rand.New(rand.NewSource(42))
	kinds := []string{protocol.ActUnlock, protocol.ActUpgrade, protocol.ActStartWork, protocol.ActHireManager, protocol.ActCollectOffline}
	bids := []string{"lemon", "paper", "nope"}
	mids := []string{"m-lemon", "m-paper", "nope"}

	prev := map[string]int{}
	for i := 0; i < 2000; i++ {
		a := Action{
			Kind:       kinds[rng.Intn(len(kinds))],
			BusinessID: bids[rng.Intn(len(bids))],
			ManagerID:  mids[rng.Intn(len(mids))],
			Step:       1 + rng.Intn(3),
		}
		e.Apply(a)
		clk.Advance(time.Duration(rng.Intn(1500)) * time.Millisecond)
		e.Tick()

		if e.Money() < 0 || math.IsNaN(e.Money()) {
			t.Fatalf("step %d: money went bad: %v", i, e.Money())
		}
		for id, b := range e.businesses {
			if b.Amount < prev[id] {
				t.Fatalf("step %d: %s amount decreased %d -> %d", i, id, prev[id], b.Amount)
			}
			if b.IsWorking && b.WorkEndsAt.Before(b.StartedAt) {
				t.Fatalf("step %d: %s cycle ends before start", i, id)
			}
			prev[id] = b.Amount
		}
	}
}
