// Package game is the authoritative progression engine: wallet, business
// levels, work cycles, manager automation and offline reconciliation.
package game

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tycoon.ai/internal/clock"
	"tycoon.ai/internal/persistence/snapshot"
	"tycoon.ai/internal/sim/catalogs"
	"tycoon.ai/internal/sim/tuning"
)

type Config struct {
	TickInterval       time.Duration
	StartingBalance    float64
	AutosaveEveryTicks int
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		TickInterval:       t.TickInterval(),
		StartingBalance:    t.StartingBalance,
		AutosaveEveryTicks: t.AutosaveEveryTicks,
	}
}

// SaveSink accepts snapshots for asynchronous persistence. Enqueue must not block.
type SaveSink interface {
	Enqueue(snap snapshot.Snapshot) bool
}

// Journal accepts ledger entries. WriteEntry must not block.
type Journal interface {
	WriteEntry(e LedgerEntry) error
}

// Engine owns the game state. Once Run has been called, mutators and Tick
// must only be invoked from the loop goroutine (use Do); before that the
// caller's goroutine owns it. View, Metrics and Subscribe are safe from any
// goroutine.
type Engine struct {
	cfg  Config
	cats *catalogs.Catalogs
	clk  clock.Clock
	log  *zap.Logger

	businesses map[string]BusinessState
	managers   map[string]ManagerState
	wallet     WalletState
	lastSaved  time.Time
	offline    float64
	tick       uint64

	inbox    chan Request
	stop     chan struct{}
	stopOnce sync.Once

	obsMu     sync.Mutex
	observers map[uint64]chan struct{}
	nextObs   uint64

	saveSink SaveSink
	journal  Journal

	view    atomic.Pointer[State]
	metrics atomic.Value // Metrics

	cyclesCompleted uint64
	refused         uint64
	savesRequested  uint64
	savesDropped    uint64
	earnedTotal     float64
	spentTotal      float64
	stepMS          float64
}

func New(cfg Config, cats *catalogs.Catalogs, clk clock.Clock, log *zap.Logger) *Engine {
	if cats == nil {
		cats = catalogs.Default()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	e := &Engine{
		cfg:       cfg,
		cats:      cats,
		clk:       clk,
		log:       log,
		inbox:     make(chan Request, 256),
		stop:      make(chan struct{}),
		observers: map[uint64]chan struct{}{},
	}
	e.resetState()
	e.publish()
	return e
}

// resetState installs the first-run state: auto-unlocked businesses own one
// unit, auto-unlocked managers are hired, and the wallet holds the starting
// balance.
func (e *Engine) resetState() {
	e.businesses = make(map[string]BusinessState, len(e.cats.Businesses.Order))
	for _, id := range e.cats.Businesses.Order {
		e.businesses[id] = BusinessState{}
	}
	for _, id := range e.cats.AutoUnlockedBusinessIDs() {
		e.businesses[id] = BusinessState{Amount: 1}
	}
	e.managers = make(map[string]ManagerState, len(e.cats.Managers.Order))
	for _, id := range e.cats.Managers.Order {
		e.managers[id] = ManagerState{}
	}
	for _, id := range e.cats.AutoUnlockedManagerIDs() {
		e.managers[id] = ManagerState{IsUnlocked: true}
	}
	e.wallet = WalletState{Money: e.cfg.StartingBalance}
	e.lastSaved = e.clk.Now()
	e.offline = 0
}

func (e *Engine) Catalogs() *catalogs.Catalogs { return e.cats }
func (e *Engine) Config() Config               { return e.cfg }

// SetSaveSink must be called before Run.
func (e *Engine) SetSaveSink(s SaveSink) { e.saveSink = s }

// SetJournal must be called before Run.
func (e *Engine) SetJournal(j Journal) { e.journal = j }

// Money returns the current wallet balance.
func (e *Engine) Money() float64 { return e.wallet.Money }

func (e *Engine) Business(id string) (BusinessState, bool) {
	b, ok := e.businesses[id]
	return b, ok
}

func (e *Engine) Manager(id string) (ManagerState, bool) {
	m, ok := e.managers[id]
	return m, ok
}

// Unlock buys the first unit of a locked business at its initial cost.
func (e *Engine) Unlock(businessID string) error {
	b, ok := e.businesses[businessID]
	if !ok {
		return e.refuse("unlock", businessID, ErrNotFound)
	}
	if b.Unlocked() {
		return e.refuse("unlock", businessID, ErrAlreadyUnlocked)
	}
	def, _ := e.cats.Business(businessID)
	cost := def.InitialCost
	if e.wallet.Money < cost {
		return e.refuse("unlock", businessID, ErrInsufficientFunds)
	}
	e.wallet.Money -= cost
	b.Amount = 1
	e.businesses[businessID] = b
	e.spentTotal += cost
	e.record(LedgerEntry{Kind: EntryUnlock, BusinessID: businessID, Delta: -cost, Amount: b.Amount})
	e.changed()
	e.requestSave()
	return nil
}

// Upgrade buys step more units of an unlocked business. The price is the
// single-unit upgrade cost at the current amount regardless of step.
func (e *Engine) Upgrade(businessID string, step int) error {
	b, ok := e.businesses[businessID]
	if !ok {
		return e.refuse("upgrade", businessID, ErrNotFound)
	}
	if step < 1 {
		return e.refuse("upgrade", businessID, fmt.Errorf("step %d: %w", step, ErrBadRequest))
	}
	if !b.Unlocked() {
		return e.refuse("upgrade", businessID, ErrLocked)
	}
	cost, err := e.cats.UpgradeCost(businessID, b.Amount)
	if err != nil {
		return err
	}
	if e.wallet.Money < cost {
		return e.refuse("upgrade", businessID, ErrInsufficientFunds)
	}
	e.wallet.Money -= cost
	b.Amount += step
	e.businesses[businessID] = b
	e.spentTotal += cost
	e.record(LedgerEntry{Kind: EntryUpgrade, BusinessID: businessID, Delta: -cost, Amount: b.Amount})
	e.changed()
	e.requestSave()
	return nil
}

// StartWork begins a production cycle now. A cycle that is already running
// is restarted from the current time.
func (e *Engine) StartWork(businessID string) error {
	b, ok := e.businesses[businessID]
	if !ok {
		return e.refuse("start work", businessID, ErrNotFound)
	}
	if !b.Unlocked() {
		return e.refuse("start work", businessID, ErrLocked)
	}
	if err := e.startWork(businessID, e.clk.Now()); err != nil {
		return err
	}
	e.changed()
	e.requestSave()
	return nil
}

func (e *Engine) startWork(businessID string, now time.Time) error {
	b := e.businesses[businessID]
	secs, err := e.cats.TimeToProfit(businessID, b.Amount)
	if err != nil {
		return err
	}
	b.IsWorking = true
	b.StartedAt = now
	b.WorkEndsAt = now.Add(secondsToDuration(secs))
	e.businesses[businessID] = b
	return nil
}

// HireManager buys a manager and starts its business if it is idle.
func (e *Engine) HireManager(managerID string) error {
	m, ok := e.managers[managerID]
	if !ok {
		return e.refuse("hire manager", managerID, ErrNotFound)
	}
	if m.IsUnlocked {
		return e.refuse("hire manager", managerID, ErrAlreadyHired)
	}
	def, _ := e.cats.Manager(managerID)
	if e.wallet.Money < def.Cost {
		return e.refuse("hire manager", managerID, ErrInsufficientFunds)
	}
	e.wallet.Money -= def.Cost
	e.managers[managerID] = ManagerState{IsUnlocked: true}
	e.spentTotal += def.Cost
	e.record(LedgerEntry{Kind: EntryHireManager, ManagerID: managerID, BusinessID: def.BusinessID, Delta: -def.Cost})

	if b := e.businesses[def.BusinessID]; b.Unlocked() && !b.IsWorking {
		if err := e.startWork(def.BusinessID, e.clk.Now()); err != nil {
			e.log.Error("start managed business", zap.String("business", def.BusinessID), zap.Error(err))
		}
	}
	e.changed()
	e.requestSave()
	return nil
}

// CanUnlock reports whether businessID is locked and affordable.
func (e *Engine) CanUnlock(businessID string) bool {
	b, ok := e.businesses[businessID]
	if !ok || b.Unlocked() {
		return false
	}
	def, _ := e.cats.Business(businessID)
	return e.wallet.Money >= def.InitialCost
}

// CanHireManager reports whether managerID is unhired and affordable.
func (e *Engine) CanHireManager(managerID string) bool {
	m, ok := e.managers[managerID]
	if !ok || m.IsUnlocked {
		return false
	}
	def, _ := e.cats.Manager(managerID)
	return e.wallet.Money >= def.Cost
}

// HasHireableManager reports whether any manager could be hired right now.
func (e *Engine) HasHireableManager() bool {
	for _, id := range e.cats.Managers.Order {
		if e.CanHireManager(id) {
			return true
		}
	}
	return false
}

func (e *Engine) refuse(op, id string, err error) error {
	e.refused++
	e.log.Debug("refused", zap.String("op", op), zap.String("id", id), zap.Error(err))
	return fmt.Errorf("%s %s: %w", op, id, err)
}

func (e *Engine) record(entry LedgerEntry) {
	if e.journal == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.At = e.clk.Now()
	entry.Tick = e.tick
	entry.Balance = e.wallet.Money
	if err := e.journal.WriteEntry(entry); err != nil {
		e.log.Warn("ledger entry dropped", zap.String("kind", entry.Kind), zap.Error(err))
	}
}

func (e *Engine) requestSave() {
	if e.saveSink == nil {
		return
	}
	e.savesRequested++
	if !e.saveSink.Enqueue(e.Snapshot()) {
		e.savesDropped++
		e.log.Warn("save dropped", zap.Uint64("dropped", e.savesDropped))
	}
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
