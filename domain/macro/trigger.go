package macro

import "sync/atomic"

// TriggerTracker separates synthetic mouse events from physical ones and
// carries the physical fire-trigger state. The scheduler announces each
// injected press and release before injecting it; the global input hook then
// asks the tracker whether an observed event was its own echo. Anything not
// announced is physical user input and drives the held flag.
type TriggerTracker struct {
	pendingDown atomic.Int64
	pendingUp   atomic.Int64
	held        atomic.Bool
}

// NoteSyntheticDown records an imminent injected press.
func (t *TriggerTracker) NoteSyntheticDown() { t.pendingDown.Add(1) }

// NoteSyntheticUp records an imminent injected release.
func (t *TriggerTracker) NoteSyntheticUp() { t.pendingUp.Add(1) }

// ConsumeDown reports whether an observed press was synthetic, consuming one
// pending announcement if so.
func (t *TriggerTracker) ConsumeDown() bool { return consume(&t.pendingDown) }

// ConsumeUp reports whether an observed release was synthetic.
func (t *TriggerTracker) ConsumeUp() bool { return consume(&t.pendingUp) }

// PhysicalDown records the user pressing the fire trigger.
func (t *TriggerTracker) PhysicalDown() { t.held.Store(true) }

// PhysicalUp records the user releasing the fire trigger.
func (t *TriggerTracker) PhysicalUp() { t.held.Store(false) }

// Held reports whether the physical fire trigger is currently down.
func (t *TriggerTracker) Held() bool { return t.held.Load() }

// Reset clears pending announcements. Called after an injection failure so a
// never-delivered announcement cannot swallow a later physical click.
func (t *TriggerTracker) Reset() {
	t.pendingDown.Store(0)
	t.pendingUp.Store(0)
}

func consume(c *atomic.Int64) bool {
	for {
		n := c.Load()
		if n <= 0 {
			return false
		}
		if c.CompareAndSwap(n, n-1) {
			return true
		}
	}
}
