package calibrate

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/xViada/arc-autofire/config"
)

// Phase is the progress of a calibration session.
type Phase int

const (
	// PhaseAwaitingStep1 waits for a screenshot with the reference weapon
	// equipped in slot 2 and the quick menu open.
	PhaseAwaitingStep1 Phase = iota
	// PhaseAwaitingStep2 waits for a screenshot with the reference weapon
	// moved to slot 1.
	PhaseAwaitingStep2
	// PhaseComplete means both steps succeeded and Commit may be called.
	PhaseComplete
	// PhaseCommitted and PhaseCancelled are terminal.
	PhaseCommitted
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingStep1:
		return "awaiting step 1"
	case PhaseAwaitingStep2:
		return "awaiting step 2"
	case PhaseComplete:
		return "complete"
	case PhaseCommitted:
		return "committed"
	case PhaseCancelled:
		return "cancelled"
	}
	return "unknown"
}

// ErrLowConfidence means the template was not found convincingly in the
// screenshot. The session stays in the same phase; the user fixes the scene
// and captures again.
var ErrLowConfidence = errors.New("calibrate: template not found with sufficient confidence")

// ErrPhase is returned for operations invalid in the current phase.
var ErrPhase = errors.New("calibrate: operation invalid in current phase")

// Regions is the calibration outcome. MenuFound is false when the session
// had no menu template to search for; the menu region is then left untouched
// by the caller.
type Regions struct {
	Slot1     config.Region
	Slot2     config.Region
	Menu      config.Region
	MenuFound bool
}

// Session runs the two-step region calibration. Nothing leaks out until
// Commit: a cancelled or abandoned session changes no configuration.
type Session struct {
	logger        *slog.Logger
	hasher        Hasher
	weaponTmpl    image.Image
	menuTmpl      image.Image // nil disables menu calibration
	minConfidence float64
	opts          Options

	mu      sync.Mutex
	phase   Phase
	pending Regions
}

// NewSession starts a calibration session using the given reference weapon
// template. menuTmpl may be nil.
func NewSession(logger *slog.Logger, hasher Hasher, weaponTmpl, menuTmpl image.Image, minConfidence float64, opts Options) *Session {
	return &Session{
		logger:        logger,
		hasher:        hasher,
		weaponTmpl:    weaponTmpl,
		menuTmpl:      menuTmpl,
		minConfidence: minConfidence,
		opts:          opts,
	}
}

// Progress returns the current phase.
func (s *Session) Progress() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Capture processes one screenshot for the current step and advances the
// phase on success. A low-confidence result leaves the phase unchanged so
// the step can simply be retried. The returned phase is the one in effect
// after the step.
func (s *Session) Capture(screen image.Image) (Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	switch s.phase {
	case PhaseAwaitingStep1:
		err = s.captureStep1(screen)
	case PhaseAwaitingStep2:
		err = s.captureStep2(screen)
	default:
		err = fmt.Errorf("%w: capture in phase %s", ErrPhase, s.phase)
	}
	return s.phase, err
}

// captureStep1 locates the weapon in slot 2 and the open menu. Both must be
// found with sufficient confidence for the step to advance; without a menu
// template, menu calibration is skipped and the weapon alone decides.
func (s *Session) captureStep1(screen image.Image) error {
	res, err := Locate(screen, s.weaponTmpl, s.hasher, s.opts)
	if err != nil {
		return err
	}
	if res.Confidence < s.minConfidence {
		s.logger.Warn("slot 2 not located", "confidence", res.Confidence, "distance", res.Distance)
		return fmt.Errorf("%w: slot 2 weapon (confidence %.2f)", ErrLowConfidence, res.Confidence)
	}

	var menu config.Region
	menuFound := false
	if s.menuTmpl != nil {
		mres, err := Locate(screen, s.menuTmpl, s.hasher, s.opts)
		if err != nil {
			return fmt.Errorf("calibrate: menu: %w", err)
		}
		if mres.Confidence < s.minConfidence {
			s.logger.Warn("menu not located", "confidence", mres.Confidence, "distance", mres.Distance)
			return fmt.Errorf("%w: menu (confidence %.2f)", ErrLowConfidence, mres.Confidence)
		}
		menu = config.FromRect(mres.Region)
		menuFound = true
		s.logger.Info("menu located", "region", menu, "confidence", mres.Confidence)
	}

	s.pending.Slot2 = config.FromRect(res.Region)
	s.pending.Menu = menu
	s.pending.MenuFound = menuFound
	s.logger.Info("slot 2 located", "region", s.pending.Slot2, "confidence", res.Confidence)
	s.phase = PhaseAwaitingStep2
	return nil
}

// captureStep2 locates the weapon in slot 1.
func (s *Session) captureStep2(screen image.Image) error {
	res, err := Locate(screen, s.weaponTmpl, s.hasher, s.opts)
	if err != nil {
		return err
	}
	if res.Confidence < s.minConfidence {
		s.logger.Warn("slot 1 not located", "confidence", res.Confidence, "distance", res.Distance)
		return fmt.Errorf("%w: slot 1 weapon (confidence %.2f)", ErrLowConfidence, res.Confidence)
	}
	s.pending.Slot1 = config.FromRect(res.Region)
	s.logger.Info("slot 1 located", "region", s.pending.Slot1, "confidence", res.Confidence)
	s.phase = PhaseComplete
	return nil
}

// Commit returns the calibrated regions exactly once. Before both steps
// succeed there is nothing to commit.
func (s *Session) Commit() (Regions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseComplete {
		return Regions{}, fmt.Errorf("%w: commit in phase %s", ErrPhase, s.phase)
	}
	s.phase = PhaseCommitted
	return s.pending, nil
}

// Cancel abandons the session. Idempotent; a committed session stays
// committed.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseCommitted {
		s.phase = PhaseCancelled
	}
}
