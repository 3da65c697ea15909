package macro

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/xViada/arc-autofire/config"
	"github.com/xViada/arc-autofire/domain/detect"
)

// Machine is the activation state machine. All transitions happen on a single
// event loop goroutine; Current and ActiveDelays are safe to call from any
// goroutine and always see a fully applied transition.
//
// Detection fields follow a hold-last-known rule: an unknown field in a
// sample never changes the remembered value, so a transient capture failure
// cannot flip the state by itself.
type Machine struct {
	logger   *slog.Logger
	events   chan interface{}
	state    atomic.Int32
	sendMu   sync.RWMutex
	closed   atomic.Bool
	profiles ProfileSource

	mu           sync.Mutex
	activeWeapon string
	activeDelays config.Delays
	fallback     config.Delays

	// event-loop-owned, never touched outside loop
	menuVisible bool
	slot1       string
	slot2       string
	injectorOK  bool
	focused     bool
	listeners   []Listener
}

// NewMachine constructs the machine in StateStopped and starts its event
// loop. profiles may be nil, in which case every weapon uses fallback.
func NewMachine(logger *slog.Logger, profiles ProfileSource, fallback config.Delays) *Machine {
	m := &Machine{
		logger:   logger,
		events:   make(chan interface{}, 64),
		profiles: profiles,
		fallback: fallback,
	}
	m.state.Store(int32(StateStopped))
	m.injectorOK = true
	m.focused = true
	m.activeDelays = fallback
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("state machine panic", "error", r, "stack", string(debug.Stack()))
			}
		}()
		m.loop()
	}()
	return m
}

type (
	evtSample      struct{ s detect.Sample }
	evtStart       struct{}
	evtStop        struct{}
	evtPauseResume struct{}
	evtInjector    struct{ available bool }
	evtFocus       struct{ focused bool }
	evtAddListener struct{ l Listener }
)

func (m *Machine) loop() {
	for ev := range m.events {
		switch e := ev.(type) {
		case evtAddListener:
			m.listeners = append(m.listeners, e.l)
		case evtSample:
			m.handleSample(e.s)
		case evtStart:
			if m.Current() == StateStopped {
				m.transition(StateIdle, "")
			}
		case evtStop:
			m.transition(StateStopped, "")
		case evtPauseResume:
			switch m.Current() {
			case StateIdle, StateArmed:
				m.transition(StatePaused, "")
			case StatePaused, StateStopped:
				m.transition(StateIdle, "")
			}
		case evtInjector:
			m.injectorOK = e.available
			if !e.available && m.Current() == StateArmed {
				m.transition(StateIdle, "")
			}
		case evtFocus:
			m.focused = e.focused
			if !e.focused && m.Current() == StateArmed {
				m.transition(StateIdle, "")
			}
		}
	}
}

// handleSample folds the sample into the last-known picture, then re-derives
// the target state. Only Idle and Armed react to samples; Paused and Stopped
// absorb the observation silently.
func (m *Machine) handleSample(s detect.Sample) {
	if s.Menu.Known {
		m.menuVisible = s.Menu.Visible
	}
	if s.Slot1.Known {
		m.slot1 = s.Slot1.WeaponID
	}
	if s.Slot2.Known {
		m.slot2 = s.Slot2.WeaponID
	}
	cur := m.Current()
	if cur != StateIdle && cur != StateArmed {
		return
	}
	weapon := m.armedWeapon()
	if weapon == "" {
		m.transition(StateIdle, "")
		return
	}
	m.transition(StateArmed, weapon)
}

// armedWeapon returns the weapon that justifies being armed, or "" when the
// machine must idle. The menu always wins; slot 1 outranks slot 2.
func (m *Machine) armedWeapon() string {
	if m.menuVisible || !m.injectorOK || !m.focused {
		return ""
	}
	if m.slot1 != "" {
		return m.slot1
	}
	return m.slot2
}

func (m *Machine) transition(next State, weapon string) {
	prev := State(m.state.Load())
	if prev == next && (next != StateArmed || weapon == m.currentWeapon()) {
		return
	}
	if next == StateArmed {
		m.setActive(weapon)
	} else {
		m.setActive("")
	}
	m.state.Store(int32(next))
	if prev != next {
		m.logger.Info("macro state transition", "from", prev.String(), "to", next.String(), "weapon", weapon)
		for _, l := range m.listeners {
			l(prev, next)
		}
	} else {
		m.logger.Info("armed weapon changed", "weapon", weapon)
	}
}

func (m *Machine) currentWeapon() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeWeapon
}

func (m *Machine) setActive(weapon string) {
	delays := m.fallback
	if weapon != "" && m.profiles != nil {
		if d, ok := m.profiles(weapon); ok {
			delays = d
		}
	}
	m.mu.Lock()
	m.activeWeapon = weapon
	m.activeDelays = delays
	m.mu.Unlock()
}

// Current returns the state as of the last completed transition.
func (m *Machine) Current() State { return State(m.state.Load()) }

// ActiveDelays returns the click delays in force. Outside StateArmed this is
// the fallback; the scheduler only reads it while armed.
func (m *Machine) ActiveDelays() config.Delays {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeDelays
}

// ActiveWeapon returns the weapon the machine is armed for, if any.
func (m *Machine) ActiveWeapon() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeWeapon, m.activeWeapon != ""
}

// Observe feeds one detection sample.
func (m *Machine) Observe(s detect.Sample) { m.send(evtSample{s: s}) }

// Start moves a stopped machine to idle. No-op in any other state.
func (m *Machine) Start() { m.send(evtStart{}) }

// Stop shuts the macro down. Idempotent.
func (m *Machine) Stop() { m.send(evtStop{}) }

// PauseResume toggles between paused and running. A stopped machine resumes
// into idle, so the same hotkey recovers from a stop.
func (m *Machine) PauseResume() { m.send(evtPauseResume{}) }

// SetInjectorAvailable reports injection backend health. While unavailable
// the machine refuses to arm.
func (m *Machine) SetInjectorAvailable(ok bool) { m.send(evtInjector{available: ok}) }

// SetGameFocused reports whether the game window has input focus. While
// unfocused the machine refuses to arm, so clicks never land elsewhere.
func (m *Machine) SetGameFocused(focused bool) { m.send(evtFocus{focused: focused}) }

// AddListener registers a transition listener. Listeners run on the event
// loop goroutine and must not block.
func (m *Machine) AddListener(l Listener) { m.send(evtAddListener{l: l}) }

// send enqueues an event unless the machine is closed. The read lock pairs
// with the write lock in Close so a send never races the channel close.
func (m *Machine) send(ev interface{}) {
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()
	if m.closed.Load() {
		return
	}
	m.events <- ev
}

// Close stops the event loop. Sends arriving afterwards are dropped.
func (m *Machine) Close() {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	if m.closed.CompareAndSwap(false, true) {
		close(m.events)
	}
}
