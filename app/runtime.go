package app

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"github.com/xViada/arc-autofire/config"
	"github.com/xViada/arc-autofire/domain/action"
	"github.com/xViada/arc-autofire/domain/calibrate"
	"github.com/xViada/arc-autofire/domain/capture"
	"github.com/xViada/arc-autofire/domain/detect"
	"github.com/xViada/arc-autofire/domain/hash"
	"github.com/xViada/arc-autofire/domain/macro"
	"github.com/xViada/arc-autofire/domain/template"
)

const statusLogInterval = 5 * time.Second

// Runtime drives the detection loop and owns reconfiguration. Detection
// configuration travels as immutable snapshots: Reload builds a new one and
// swaps it in atomically, so a poll tick never sees half a config.
type Runtime struct {
	logger    *slog.Logger
	cfgPath   string
	grabber   *capture.ScreenGrabber
	dirs      template.Dirs
	loader    *template.Loader
	engine    *hash.Engine
	detector  *detect.Engine
	machine   *macro.Machine
	tracker   *macro.TriggerTracker
	scheduler *macro.Scheduler

	mu      sync.Mutex
	cfg     *config.Config
	session *calibrate.Session
	version int

	snapshot      atomic.Pointer[detect.Snapshot]
	lastSample    atomic.Pointer[detect.Sample]
	calibrating   atomic.Bool
	physicalDowns atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRuntime constructs the runtime from an assembled container.
func NewRuntime(c *Container, cfgPath string) *Runtime {
	return &Runtime{
		logger:   c.Logger,
		cfgPath:  cfgPath,
		grabber:  c.Grabber,
		dirs:     c.Dirs,
		loader:   c.Loader,
		engine:   c.Engine,
		detector: c.Detector,
		machine:  c.Machine,
		tracker:  c.Tracker,
		cfg:      c.Config,
		stop:     make(chan struct{}),
	}
}

// Reload rebuilds the template registry and detection snapshot from the
// current configuration. The old snapshot serves readers until the store.
func (r *Runtime) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, err := r.loader.Load(r.cfg.Weapons)
	if err != nil {
		return fmt.Errorf("app: load templates: %w", err)
	}
	r.version++
	snap := &detect.Snapshot{
		Version:           r.version,
		Slot1:             r.cfg.Regions.Slot1.Rect(),
		Slot2:             r.cfg.Regions.Slot2.Rect(),
		Menu:              r.cfg.Regions.Menu.Rect(),
		Registry:          reg,
		DistanceThreshold: r.cfg.Detection.HashThreshold,
		MinConfidence:     r.cfg.Detection.ConfidenceThreshold,
	}
	r.snapshot.Store(snap)
	r.logger.Info("detection snapshot swapped",
		"version", snap.Version,
		"weapons", len(reg.Weapons()),
		"hash_size", reg.HashSize(),
		"threshold", snap.DistanceThreshold)
	return nil
}

// Run starts the detection loop, the scheduler and the status logger. The
// machine begins in idle; hotkeys or callers stop and resume it.
func (r *Runtime) Run() {
	r.machine.Start()
	r.goWorker("detect", r.detectLoop)
	r.goWorker("scheduler", r.scheduler.Run)
	r.goWorker("status", r.statusLoop)
}

// Shutdown stops all loops. The scheduler finishes its click cycle first, so
// the button is never left held.
func (r *Runtime) Shutdown() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.scheduler.Stop()
	r.machine.Stop()
	r.wg.Wait()
	r.machine.Close()
	r.logger.Info("runtime stopped")
}

func (r *Runtime) goWorker(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("worker panic", "worker", name, "error", rec, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

func (r *Runtime) detectLoop() {
	for {
		fast := r.tick()
		poll, idle := r.intervals()
		interval := poll
		if !fast {
			interval = idle
		}
		select {
		case <-r.stop:
			return
		case <-time.After(interval):
		}
	}
}

// tick runs one detection pass. It returns true when the game has focus and
// polling should stay at the fast interval.
func (r *Runtime) tick() bool {
	if r.calibrating.Load() {
		return false
	}
	game, excluded := r.window()
	title, err := action.ForegroundWindowTitle()
	focused := err == nil && action.IsGameWindow(title, game, excluded)
	r.machine.SetGameFocused(focused)
	if !focused {
		return false
	}
	snap := r.snapshot.Load()
	if snap == nil {
		return false
	}
	s := r.detector.Poll(snap, time.Now())
	r.lastSample.Store(&s)
	r.machine.Observe(s)
	return true
}

func (r *Runtime) intervals() (poll, idle time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.cfg.Detection.PollIntervalMS) * time.Millisecond,
		time.Duration(r.cfg.Detection.IdleIntervalMS) * time.Millisecond
}

func (r *Runtime) window() (game string, excluded []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Window.Title, r.cfg.Window.Excluded
}

func (r *Runtime) statusLoop() {
	r.mu.Lock()
	enabled := r.cfg.Debug
	r.mu.Unlock()
	if !enabled {
		return
	}
	t := time.NewTicker(statusLogInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			st := r.Status()
			r.logger.Debug("runtime status",
				"state", st.State.String(),
				"weapon", st.Weapon,
				"snapshot_version", st.SnapshotVersion,
				"downs", st.Downs,
				"ups", st.Ups,
				"physical_clicks", st.PhysicalClicks,
				"captures", st.Capture.Captures,
				"capture_failures", st.Capture.Failures,
				"avg_capture", st.Capture.AvgCapture)
		}
	}
}

// Status is a point-in-time view for logs and debugging.
type Status struct {
	State           macro.State
	Weapon          string
	Sample          *detect.Sample
	SnapshotVersion int
	Calibrating     bool
	PhysicalClicks  uint64
	Downs           uint64
	Ups             uint64
	Capture         capture.Stats
}

func (r *Runtime) Status() Status {
	st := Status{
		State:          r.machine.Current(),
		Sample:         r.lastSample.Load(),
		Calibrating:    r.calibrating.Load(),
		PhysicalClicks: r.physicalDowns.Load(),
		Capture:        r.grabber.Stats(),
	}
	if w, ok := r.machine.ActiveWeapon(); ok {
		st.Weapon = w
	}
	if snap := r.snapshot.Load(); snap != nil {
		st.SnapshotVersion = snap.Version
	}
	if r.scheduler != nil {
		st.Downs = r.scheduler.Downs()
		st.Ups = r.scheduler.Ups()
	}
	return st
}

// PauseResume toggles the macro.
func (r *Runtime) PauseResume() { r.machine.PauseResume() }

// StopMacro shuts the macro down; the process keeps running.
func (r *Runtime) StopMacro() { r.machine.Stop() }

// notePhysicalDown counts a mouse press that came from the user, not the
// scheduler.
func (r *Runtime) notePhysicalDown() { r.physicalDowns.Add(1) }

// BeginCalibration starts a region calibration session using weaponID's
// shared template as the reference. Detection polling pauses for the
// duration so calibration screenshots and detection never interleave.
func (r *Runtime) BeginCalibration(weaponID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return errors.New("app: calibration already in progress")
	}
	w := r.findWeapon(weaponID)
	if w == nil {
		return fmt.Errorf("app: no enabled weapon %q to calibrate with", weaponID)
	}
	weaponImg, err := r.loader.LoadImage(w.TemplateBase())
	if err != nil {
		return fmt.Errorf("app: calibration template: %w", err)
	}
	var menuImg image.Image
	if img, err := r.loader.LoadImage(template.MenuTemplateName); err == nil {
		menuImg = img
	} else {
		r.logger.Warn("calibrating without menu template", "error", err)
	}
	r.session = calibrate.NewSession(r.logger, r.engine, weaponImg, menuImg,
		r.cfg.Detection.ConfidenceThreshold, calibrate.Options{})
	r.calibrating.Store(true)
	r.logger.Info("calibration started", "weapon", w.ID)
	return nil
}

// findWeapon returns the named enabled weapon, or the first enabled one when
// weaponID is empty. Callers hold mu.
func (r *Runtime) findWeapon(weaponID string) *config.Weapon {
	for i := range r.cfg.Weapons {
		w := &r.cfg.Weapons[i]
		if !w.Enabled {
			continue
		}
		if weaponID == "" || w.ID == weaponID {
			return w
		}
	}
	return nil
}

// CalibrationCapture grabs the full screen and feeds it to the session.
func (r *Runtime) CalibrationCapture() (calibrate.Phase, error) {
	r.mu.Lock()
	session := r.session
	r.mu.Unlock()
	if session == nil {
		return 0, errors.New("app: no calibration in progress")
	}
	screen, err := r.grabber.CaptureScreen()
	if err != nil {
		return session.Progress(), fmt.Errorf("app: calibration screenshot: %w", err)
	}
	return session.Capture(screen)
}

// CommitCalibration applies the calibrated regions, persists the
// configuration and swaps in a fresh detection snapshot.
func (r *Runtime) CommitCalibration() error {
	r.mu.Lock()
	session := r.session
	r.mu.Unlock()
	if session == nil {
		return errors.New("app: no calibration in progress")
	}
	regions, err := session.Commit()
	if err != nil {
		return err
	}
	r.mu.Lock()
	applyRegions(r.cfg, regions)
	saveErr := r.cfg.Save(r.cfgPath)
	r.session = nil
	r.mu.Unlock()
	r.calibrating.Store(false)
	if saveErr != nil {
		r.logger.Error("config save failed, calibration applied in memory only", "error", saveErr)
	}
	r.logger.Info("calibration committed",
		"slot1", regions.Slot1, "slot2", regions.Slot2,
		"menu", regions.Menu, "menu_found", regions.MenuFound)
	return r.Reload()
}

// CancelCalibration abandons the session without touching configuration.
func (r *Runtime) CancelCalibration() {
	r.mu.Lock()
	if r.session != nil {
		r.session.Cancel()
		r.session = nil
	}
	r.mu.Unlock()
	r.calibrating.Store(false)
	r.logger.Info("calibration cancelled")
}

// applyRegions folds calibration output into the configuration. The menu
// region only changes when the menu template was actually located.
func applyRegions(cfg *config.Config, regions calibrate.Regions) {
	cfg.Regions.Slot1 = regions.Slot1
	cfg.Regions.Slot2 = regions.Slot2
	if regions.MenuFound {
		cfg.Regions.Menu = regions.Menu
	}
}

// handleCaptureCommand is the capture hotkey's action. During a calibration
// session the screenshot advances the session, with the final step committing
// the derived regions; otherwise the monitored regions are saved to disk.
func (r *Runtime) handleCaptureCommand() error {
	if !r.calibrating.Load() {
		return r.CaptureRegions()
	}
	phase, err := r.CalibrationCapture()
	if err != nil {
		return err
	}
	r.logger.Info("calibration step captured", "phase", phase.String())
	if phase == calibrate.PhaseComplete {
		return r.CommitCalibration()
	}
	return nil
}

// CaptureRegions saves the current monitored regions to disk: the menu
// region becomes the menu template, the slot regions land in previews/ for
// inspection. The registry reloads so a fresh menu capture takes effect
// immediately.
func (r *Runtime) CaptureRegions() error {
	r.mu.Lock()
	regions := r.cfg.Regions
	r.mu.Unlock()

	stamp := time.Now().Format("20060102-150405")
	saves := []struct {
		region config.Region
		path   string
	}{
		{regions.Menu, r.dirs.CapturedPath(template.MenuTemplateName)},
		{regions.Slot1, filepath.Join(r.dirs.Previews(), "slot1-"+stamp+".png")},
		{regions.Slot2, filepath.Join(r.dirs.Previews(), "slot2-"+stamp+".png")},
	}
	for _, s := range saves {
		if !s.region.Valid() {
			continue
		}
		img, err := r.grabber.CaptureRect(s.region.Rect())
		if err != nil {
			return fmt.Errorf("app: capture %v: %w", s.region, err)
		}
		if err := imaging.Save(img, s.path); err != nil {
			return fmt.Errorf("app: save %s: %w", s.path, err)
		}
		r.logger.Info("region captured", "path", s.path, "region", s.region)
	}
	return r.Reload()
}
