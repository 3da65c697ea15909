package app

import (
	"strings"

	hook "github.com/robotn/gohook"
)

const leftButton = 1

// RunHotkeys installs the global input hook: the pause/stop/capture hotkeys
// and the mouse listener that tells the runtime's own clicks apart from the
// user's. Blocks until Shutdown; callers run it on its own goroutine.
func (r *Runtime) RunHotkeys() {
	r.mu.Lock()
	binds := r.cfg.Keybinds
	r.mu.Unlock()

	register(binds.PauseResume, func() {
		r.logger.Info("hotkey", "action", "pause_resume", "key", binds.PauseResume)
		r.PauseResume()
	})
	register(binds.Stop, func() {
		r.logger.Info("hotkey", "action", "stop", "key", binds.Stop)
		r.StopMacro()
	})
	register(binds.Capture, func() {
		r.logger.Info("hotkey", "action", "capture", "key", binds.Capture)
		go func() {
			if err := r.handleCaptureCommand(); err != nil {
				r.logger.Error("capture command failed", "error", err)
			}
		}()
	})

	// Every mouse event passes through here; the tracker decides whether it
	// is an echo of the scheduler's own injection. Physical events drive the
	// fire-trigger flag the scheduler gates on.
	hook.Register(hook.MouseDown, []string{}, func(e hook.Event) {
		if e.Button != leftButton {
			return
		}
		if r.tracker.ConsumeDown() {
			return
		}
		r.tracker.PhysicalDown()
		r.notePhysicalDown()
	})
	hook.Register(hook.MouseUp, []string{}, func(e hook.Event) {
		if e.Button != leftButton {
			return
		}
		if r.tracker.ConsumeUp() {
			return
		}
		r.tracker.PhysicalUp()
	})

	events := hook.Start()
	done := hook.Process(events)
	select {
	case <-r.stop:
		hook.End()
		<-done
	case <-done:
	}
}

func register(key string, fn func()) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return
	}
	hook.Register(hook.KeyDown, []string{key}, func(hook.Event) { fn() })
}
