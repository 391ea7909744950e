package game

import (
	"reflect"
	"testing"
	"time"
)

func TestOfflineEarnings(t *testing.T) {
	c := testCatalogs(t)
	base := State{
		Businesses: map[string]BusinessState{
			"lemon": {Amount: 2},
			"paper": {Amount: 1, IsWorking: true, StartedAt: t0, WorkEndsAt: t0.Add(4 * time.Second)},
		},
		Managers:    map[string]ManagerState{"m-lemon": {IsUnlocked: true}},
		LastSavedAt: t0,
	}

	cases := []struct {
		name    string
		now     time.Time
		mutate  func(s *State)
		want    float64
		settled []string
	}{
		{"managed pro-rata plus finished cycle", t0.Add(10 * time.Second), nil, 2*5*10 + 60, []string{"paper"}},
		{"unfinished cycle earns nothing", t0.Add(3 * time.Second), nil, 2 * 5 * 3, nil},
		{"zero elapsed", t0, func(s *State) {
			s.Businesses["paper"] = BusinessState{Amount: 1}
		}, 0, nil},
		{"clock went backwards", t0.Add(-time.Hour), func(s *State) {
			s.Businesses["paper"] = BusinessState{Amount: 1}
		}, 0, nil},
		{"no managers", t0.Add(10 * time.Second), func(s *State) {
			s.Managers = map[string]ManagerState{}
		}, 60, []string{"paper"}},
		{"locked business earns nothing", t0.Add(10 * time.Second), func(s *State) {
			s.Businesses["lemon"] = BusinessState{}
		}, 60, []string{"paper"}},
	}
	for _, tc := range cases {
		st := base.Clone()
		if tc.mutate != nil {
			tc.mutate(&st)
		}
		got, settled := OfflineEarnings(c, st, tc.now)
		if got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
		if !reflect.DeepEqual(settled, tc.settled) {
			t.Fatalf("%s: settled %v want %v", tc.name, settled, tc.settled)
		}
	}
}

func TestOfflineEarnings_MilestoneShortensCycle(t *testing.T) {
	c := testCatalogs(t)
	st := State{
		Businesses:  map[string]BusinessState{"lemon": {Amount: 25}},
		Managers:    map[string]ManagerState{"m-lemon": {IsUnlocked: true}},
		LastSavedAt: t0,
	}
	// 0.5s cycle at 25 units: 20 cycles of 125.
	got, _ := OfflineEarnings(c, st, t0.Add(10*time.Second))
	if got != 2500 {
		t.Fatalf("got %v want 2500", got)
	}
}

func TestReconcileAndCollect(t *testing.T) {
	e, clk := newTestEngine(t, 0)
	e.managers["m-lemon"] = ManagerState{IsUnlocked: true}
	e.businesses["paper"] = BusinessState{Amount: 1}
	if err := e.StartWork("paper"); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch, unsub := e.Subscribe()
	defer unsub()

	clk.Advance(10 * time.Second)
	earned := e.ReconcileOffline(clk.Now())
	if earned != 110 {
		t.Fatalf("earned: got %v want 110", earned)
	}
	expectSignal(t, ch)
	if e.Money() != 0 || e.PendingOffline() != 110 {
		t.Fatalf("pending must be held: money=%v pending=%v", e.Money(), e.PendingOffline())
	}
	if b, _ := e.Business("paper"); b.IsWorking {
		t.Fatalf("settled cycle should be closed")
	}

	res := e.Tick()
	if len(res.Completed) != 0 || e.Money() != 0 {
		t.Fatalf("settled cycle credited again: %+v money=%v", res, e.Money())
	}
	if again := e.ReconcileOffline(clk.Now()); again != 0 {
		t.Fatalf("second reconcile at the same time: %v", again)
	}

	<-ch
	if got := e.CollectOffline(); got != 110 {
		t.Fatalf("collect: %v", got)
	}
	expectSignal(t, ch)
	if e.Money() != 110 || e.PendingOffline() != 0 {
		t.Fatalf("after collect: money=%v pending=%v", e.Money(), e.PendingOffline())
	}
	if got := e.CollectOffline(); got != 0 {
		t.Fatalf("second collect: %v", got)
	}
	expectNoSignal(t, ch)
}

func TestReconcile_AccumulatesUncollected(t *testing.T) {
	e, clk := newTestEngine(t, 0)
	e.managers["m-lemon"] = ManagerState{IsUnlocked: true}
	e.offline = 7
	clk.Advance(2 * time.Second)
	e.ReconcileOffline(clk.Now())
	if e.PendingOffline() != 17 {
		t.Fatalf("pending: got %v want 17", e.PendingOffline())
	}
}

func TestReconcile_RecordsLedgerEntry(t *testing.T) {
	e, clk := newTestEngine(t, 100)
	j := &fakeJournal{}
	e.SetJournal(j)
	if err := e.HireManager("m-lemon"); err != nil {
		t.Fatalf("hire: %v", err)
	}
	clk.Advance(10 * time.Second)
	if earned := e.ReconcileOffline(clk.Now()); earned != 50 {
		t.Fatalf("earned: got %v want 50", earned)
	}
	if len(j.entries) != 2 {
		t.Fatalf("entries: %+v", j.entries)
	}
	got := j.entries[1]
	if got.Kind != EntryOfflineReconcile || got.Delta != 50 || got.Pending != 50 || got.Balance != 0 {
		t.Fatalf("reconcile entry: %+v", got)
	}

	e.CollectOffline()
	if last := j.entries[len(j.entries)-1]; last.Kind != EntryOfflineCollect || last.Balance != 50 {
		t.Fatalf("collect entry: %+v", last)
	}
}
