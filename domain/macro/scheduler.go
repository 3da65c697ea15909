package macro

import (
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/xViada/arc-autofire/config"
)

// Injector produces synthetic left-button events. An error means the event
// was not delivered to the system.
type Injector interface {
	MouseDown() error
	MouseUp() error
}

// StateSource is the scheduler's view of the state machine.
type StateSource interface {
	Current() State
	ActiveDelays() config.Delays
}

// idleWait is how long the scheduler sleeps between gate checks while the
// machine is not armed.
const idleWait = 5 * time.Millisecond

// upRetries bounds the release attempts after a successful press. A press
// without a matching release leaves the button held, which is the one thing
// the scheduler must never do.
const upRetries = 3

// Scheduler runs the click loop. Each cycle is press, hold, release, rest,
// with the hold and rest durations drawn uniformly from the delay bounds of
// the weapon in force. A cycle starts only while the machine is armed and
// the physical fire trigger is held; both gates are checked only between
// cycles, so once a press is injected its release always follows, even if
// the machine left StateArmed or the trigger was released mid-cycle.
type Scheduler struct {
	injector  Injector
	source    StateSource
	tracker   *TriggerTracker
	logger    *slog.Logger
	rng       *rand.Rand
	onFailure func()

	downs atomic.Uint64
	ups   atomic.Uint64

	stop chan struct{}
	done chan struct{}
}

// NewScheduler constructs a scheduler. seed fixes the delay sequence for
// reproduction; pass 0 to derive one from the clock. onFailure may be nil.
// tracker may be nil, in which case no trigger information exists and cycles
// gate on the armed state alone.
func NewScheduler(injector Injector, source StateSource, tracker *TriggerTracker, logger *slog.Logger, seed uint64, onFailure func()) *Scheduler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Scheduler{
		injector:  injector,
		source:    source,
		tracker:   tracker,
		logger:    logger,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		onFailure: onFailure,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run drives the click loop until Stop. Blocks; callers run it on its own
// goroutine.
func (s *Scheduler) Run() {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler panic", "error", r, "stack", string(debug.Stack()))
		}
	}()
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if s.source.Current() != StateArmed || !s.triggerHeld() {
			s.sleep(idleWait)
			continue
		}
		if !s.cycle() {
			return
		}
	}
}

// triggerHeld reports whether the physical fire trigger is down.
func (s *Scheduler) triggerHeld() bool {
	return s.tracker == nil || s.tracker.Held()
}

// cycle runs one full press/release pair. Returns false when the scheduler
// must exit because injection is broken.
func (s *Scheduler) cycle() bool {
	d := s.source.ActiveDelays()
	if s.tracker != nil {
		s.tracker.NoteSyntheticDown()
	}
	if err := s.injector.MouseDown(); err != nil {
		s.fail("mouse down failed", err)
		return false
	}
	s.downs.Add(1)
	s.sleep(s.delay(d.DownMin, d.DownMax))

	if s.tracker != nil {
		s.tracker.NoteSyntheticUp()
	}
	var err error
	for attempt := 0; attempt <= upRetries; attempt++ {
		if err = s.injector.MouseUp(); err == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err != nil {
		s.fail("mouse up failed, button may be held", err)
		return false
	}
	s.ups.Add(1)
	s.sleep(s.delay(d.UpMin, d.UpMax))
	return true
}

func (s *Scheduler) fail(msg string, err error) {
	s.logger.Error(msg, "error", err, "downs", s.downs.Load(), "ups", s.ups.Load())
	if s.tracker != nil {
		s.tracker.Reset()
	}
	if s.onFailure != nil {
		s.onFailure()
	}
}

// delay draws a duration uniformly from [min,max] milliseconds, inclusive.
func (s *Scheduler) delay(min, max int) time.Duration {
	if max < min {
		max = min
	}
	ms := min
	if span := max - min; span > 0 {
		ms += s.rng.IntN(span + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

// sleep waits for d but wakes immediately on Stop.
func (s *Scheduler) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.stop:
	}
}

// Downs returns the number of successful synthetic presses.
func (s *Scheduler) Downs() uint64 { return s.downs.Load() }

// Ups returns the number of successful synthetic releases.
func (s *Scheduler) Ups() uint64 { return s.ups.Load() }

// Stop ends the loop and waits for the current cycle to finish. A press that
// already went out gets its release before Run returns.
func (s *Scheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}
