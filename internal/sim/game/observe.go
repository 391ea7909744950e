package game

import (
	"maps"
)

type Metrics struct {
	Tick uint64 `json:"tick"`

	Money              float64 `json:"money"`
	OfflineEarnings    float64 `json:"offline_earnings"`
	UnlockedBusinesses int     `json:"unlocked_businesses"`
	WorkingBusinesses  int     `json:"working_businesses"`
	HiredManagers      int     `json:"hired_managers"`

	CyclesCompleted uint64  `json:"cycles_completed"`
	Refused         uint64  `json:"refused"`
	EarnedTotal     float64 `json:"earned_total"`
	SpentTotal      float64 `json:"spent_total"`

	SavesRequested uint64 `json:"saves_requested"`
	SavesDropped   uint64 `json:"saves_dropped"`

	Observers  int     `json:"observers"`
	InboxDepth int     `json:"inbox_depth"`
	StepMS     float64 `json:"step_ms"`
}

// Subscribe returns a channel that receives a signal after state changes.
// Signals coalesce: a slow reader sees at most one pending signal. The
// returned func unsubscribes and closes the channel.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	e.obsMu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = ch
	e.obsMu.Unlock()

	unsubscribe := func() {
		e.obsMu.Lock()
		defer e.obsMu.Unlock()
		if c, ok := e.observers[id]; ok {
			delete(e.observers, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

// View returns the most recently published state.
func (e *Engine) View() State {
	if p := e.view.Load(); p != nil {
		return *p
	}
	return State{}
}

func (e *Engine) Metrics() Metrics {
	if m, ok := e.metrics.Load().(Metrics); ok {
		return m
	}
	return Metrics{}
}

// changed publishes the new state and signals every observer.
func (e *Engine) changed() {
	e.publish()
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	for _, ch := range e.observers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) publish() {
	st := e.state()
	e.view.Store(&st)

	m := Metrics{
		Tick:            e.tick,
		Money:           e.wallet.Money,
		OfflineEarnings: e.offline,
		CyclesCompleted: e.cyclesCompleted,
		Refused:         e.refused,
		EarnedTotal:     e.earnedTotal,
		SpentTotal:      e.spentTotal,
		SavesRequested:  e.savesRequested,
		SavesDropped:    e.savesDropped,
		InboxDepth:      len(e.inbox),
		StepMS:          e.stepMS,
	}
	for _, b := range e.businesses {
		if b.Unlocked() {
			m.UnlockedBusinesses++
		}
		if b.IsWorking {
			m.WorkingBusinesses++
		}
	}
	for _, mg := range e.managers {
		if mg.IsUnlocked {
			m.HiredManagers++
		}
	}
	e.obsMu.Lock()
	m.Observers = len(e.observers)
	e.obsMu.Unlock()
	e.metrics.Store(m)
}

// state copies the live state.
func (e *Engine) state() State {
	return State{
		Businesses:      maps.Clone(e.businesses),
		Managers:        maps.Clone(e.managers),
		Wallet:          e.wallet,
		LastSavedAt:     e.lastSaved,
		OfflineEarnings: e.offline,
		Tick:            e.tick,
	}
}
