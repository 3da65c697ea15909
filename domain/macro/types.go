// Package macro decides, tick by tick, whether synthetic mouse input may be
// produced, and produces it. The state machine consumes detection samples and
// user commands; the scheduler emits randomized click cycles while the
// machine is armed.
package macro

import "github.com/xViada/arc-autofire/config"

// State is the activation state of the macro.
type State int32

const (
	// StateStopped means the macro was shut down by the user. No samples
	// change this state; only Start or PauseResume do.
	StateStopped State = iota
	// StatePaused means the user suspended the macro. Samples are still
	// folded into the last-known picture but never cause clicks.
	StatePaused
	// StateIdle means the macro runs but current conditions forbid firing.
	StateIdle
	// StateArmed means all conditions hold and the scheduler may click.
	StateArmed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePaused:
		return "paused"
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	}
	return "unknown"
}

// Listener is notified after each state transition.
type Listener func(prev, next State)

// ProfileSource resolves the click delays configured for a weapon. The bool
// is false when the weapon has no valid profile, in which case the machine
// falls back to its default delays.
type ProfileSource func(weaponID string) (config.Delays, bool)
