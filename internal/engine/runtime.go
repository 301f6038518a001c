package engine

import (
	"sync"
	"time"
)

// DefaultNightTimeout bounds how long a night waits on any single slot.
const DefaultNightTimeout = 60 * time.Second

// TransitionFunc observes every successful transition. It is called
// with the engine lock held and must not call back into the engine.
type TransitionFunc func(events []Event, state State)

// Engine owns one match's authoritative state and serializes commands
// through a mutex. On entering night it arms a timer per expected slot;
// a slot that stays silent past the timeout is recorded as a skip, and
// once every expected slot has resolved the engine advances to day on
// its own, whether the last resolution came from a player or a timer.
type Engine struct {
	mu      sync.Mutex
	state   State
	timeout time.Duration
	notify  TransitionFunc

	timers   map[Slot]*time.Timer
	timerGen int64
	deadline time.Time
}

func NewEngine(timeout time.Duration, notify TransitionFunc) *Engine {
	if timeout <= 0 {
		timeout = DefaultNightTimeout
	}
	return &Engine{
		state:   NewState(),
		timeout: timeout,
		notify:  notify,
		timers:  map[Slot]*time.Timer{},
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// NightDeadline reports when the current night's action window closes.
func (e *Engine) NightDeadline() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != PhaseNight {
		return time.Time{}, false
	}
	return e.deadline, true
}

// Dispatch applies cmd to the current state. When a submission resolves
// the final pending slot, the night->day advance happens in the same
// call and its events are appended to the returned slice.
func (e *Engine) Dispatch(cmd Command) ([]Event, State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasNight := e.state.Phase == PhaseNight
	events, next, err := Apply(e.state, cmd)
	if err != nil {
		return nil, e.state.clone(), err
	}
	e.state = next

	if cmd.Type == CmdSubmitAction && e.state.Phase == PhaseNight {
		if actor := e.state.player(cmd.PlayerID); actor != nil {
			if slot, ok := SlotForRole(actor.Role); ok {
				e.stopTimerLocked(slot)
			}
		}
	}

	events = append(events, e.syncTimersLocked(wasNight)...)

	snap := e.state.clone()
	if e.notify != nil {
		e.notify(events, snap)
	}
	return events, snap, nil
}

// Stop cancels any armed night timers. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopAllTimersLocked()
}

func (e *Engine) syncTimersLocked(wasNight bool) []Event {
	if e.state.Phase != PhaseNight {
		e.stopAllTimersLocked()
		return nil
	}
	if !wasNight {
		e.armNightLocked()
	}
	return e.maybeResolveNightLocked()
}

func (e *Engine) armNightLocked() {
	e.timerGen++
	gen := e.timerGen
	e.deadline = time.Now().Add(e.timeout)

	for _, slot := range ExpectedNightSlots(e.state.Players) {
		if _, done := e.state.Night[slot]; done {
			continue
		}
		slot := slot
		e.timers[slot] = time.AfterFunc(e.timeout, func() {
			e.onSlotTimeout(slot, gen)
		})
	}
}

// maybeResolveNightLocked advances to day once nothing is pending.
func (e *Engine) maybeResolveNightLocked() []Event {
	if e.state.Phase != PhaseNight || !allNightSlotsResolved(e.state) {
		return nil
	}
	events, next, err := Apply(e.state, Command{Type: CmdAdvancePhase})
	if err != nil {
		return nil
	}
	e.state = next
	e.stopAllTimersLocked()
	return events
}

// onSlotTimeout runs on the timer goroutine. A stale generation means
// the night it was armed for is already over.
func (e *Engine) onSlotTimeout(slot Slot, gen int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.timerGen || e.state.Phase != PhaseNight {
		return
	}
	if _, done := e.state.Night[slot]; done {
		return
	}

	_, next, err := Apply(e.state, Command{Type: CmdTimeoutSlot, Slot: slot})
	if err != nil {
		return
	}
	e.state = next
	delete(e.timers, slot)

	events := e.maybeResolveNightLocked()
	if len(events) == 0 || e.notify == nil {
		return
	}
	e.notify(events, e.state.clone())
}

func (e *Engine) stopTimerLocked(slot Slot) {
	if t, ok := e.timers[slot]; ok {
		t.Stop()
		delete(e.timers, slot)
	}
}

func (e *Engine) stopAllTimersLocked() {
	for slot, t := range e.timers {
		t.Stop()
		delete(e.timers, slot)
	}
	e.timerGen++
}
