package game

import (
	"context"
	"fmt"
	"time"

	"tycoon.ai/internal/protocol"
)

// ActSave asks the loop to enqueue a snapshot. It is not a player action.
const ActSave = "SAVE"

type Action struct {
	Kind       string
	BusinessID string
	ManagerID  string
	Step       int
}

type Result struct {
	Err       error
	Collected float64
}

type Request struct {
	Action Action
	Resp   chan Result
}

// Apply executes one action. Starting a business that is already working is
// refused here even though StartWork itself would restart the cycle.
func (e *Engine) Apply(a Action) Result {
	switch a.Kind {
	case protocol.ActUnlock:
		return Result{Err: e.Unlock(a.BusinessID)}
	case protocol.ActUpgrade:
		step := a.Step
		if step == 0 {
			step = 1
		}
		return Result{Err: e.Upgrade(a.BusinessID, step)}
	case protocol.ActStartWork:
		if b, ok := e.businesses[a.BusinessID]; ok && b.Unlocked() && b.IsWorking {
			return Result{Err: e.refuse("start work", a.BusinessID, ErrAlreadyWorking)}
		}
		return Result{Err: e.StartWork(a.BusinessID)}
	case protocol.ActHireManager:
		return Result{Err: e.HireManager(a.ManagerID)}
	case protocol.ActCollectOffline:
		return Result{Collected: e.CollectOffline()}
	case ActSave:
		e.requestSave()
		return Result{}
	default:
		return Result{Err: e.refuse("apply", a.Kind, fmt.Errorf("unknown action: %w", ErrBadRequest))}
	}
}

// Run drives the engine until ctx is cancelled or Stop is called. It is the
// only goroutine that touches state while it runs.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case req := <-e.inbox:
			res := e.Apply(req.Action)
			if req.Resp != nil {
				req.Resp <- res
			}
		case <-ticker.C:
			e.Tick()
		}
	}
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Do submits an action to the loop and waits for its result. The returned
// error is non-nil only when the action never ran; refusals are in Result.Err.
func (e *Engine) Do(ctx context.Context, a Action) (Result, error) {
	resp := make(chan Result, 1)
	select {
	case e.inbox <- Request{Action: a, Resp: resp}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-e.stop:
		return Result{}, ErrStopped
	}
	select {
	case res := <-resp:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-e.stop:
		return Result{}, ErrStopped
	}
}
