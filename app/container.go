// Package app wires the detection, state machine and scheduler components
// together and runs the polling, hotkey and status loops.
package app

import (
	"fmt"
	"log/slog"

	"github.com/xViada/arc-autofire/config"
	"github.com/xViada/arc-autofire/domain/action"
	"github.com/xViada/arc-autofire/domain/capture"
	"github.com/xViada/arc-autofire/domain/detect"
	"github.com/xViada/arc-autofire/domain/hash"
	"github.com/xViada/arc-autofire/domain/macro"
	"github.com/xViada/arc-autofire/domain/template"
)

// Container holds every long-lived component. BuildContainer wires them; the
// runtime owns their lifecycles.
type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	Engine    *hash.Engine
	Grabber   *capture.ScreenGrabber
	Dirs      template.Dirs
	Loader    *template.Loader
	Detector  *detect.Engine
	Machine   *macro.Machine
	Tracker   *macro.TriggerTracker
	Scheduler *macro.Scheduler
	Runtime   *Runtime
}

// BuildContainer constructs and wires all components. seed fixes the click
// delay sequence; 0 derives one from the clock.
func BuildContainer(cfg *config.Config, cfgPath string, logger *slog.Logger, seed uint64) (*Container, error) {
	engine, err := hash.NewEngine(cfg.Detection.HashSize)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	c := &Container{Config: cfg, Logger: logger, Engine: engine}
	c.Grabber = capture.NewScreenGrabber(logger, 0)
	c.Dirs = template.Dirs{Base: cfg.ImagesDir}
	if err := c.Dirs.EnsureLayout(); err != nil {
		return nil, fmt.Errorf("app: image directories: %w", err)
	}
	c.Loader = template.NewLoader(c.Dirs, engine, logger)
	c.Detector = detect.NewEngine(c.Grabber, engine, logger)
	c.Tracker = &macro.TriggerTracker{}
	c.Machine = macro.NewMachine(logger, profileSource(cfg), cfg.Delays)
	c.Runtime = NewRuntime(c, cfgPath)
	c.Scheduler = macro.NewScheduler(action.SendInputInjector{}, c.Machine, c.Tracker, logger, seed, func() {
		c.Machine.SetInjectorAvailable(false)
	})
	c.Runtime.scheduler = c.Scheduler
	if err := c.Runtime.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// profileSource resolves per-weapon delays from the configuration.
func profileSource(cfg *config.Config) macro.ProfileSource {
	return func(weaponID string) (config.Delays, bool) {
		for i := range cfg.Weapons {
			if cfg.Weapons[i].ID == weaponID {
				return cfg.Weapons[i].SelectedDelays()
			}
		}
		return config.Delays{}, false
	}
}
