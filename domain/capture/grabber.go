// Package capture wraps the platform screenshot backend behind a small
// grabber with bounds checking, a capture timeout and throughput counters.
package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vova616/screenshot"
)

// ErrUnavailable means the capture backend did not deliver a frame in time.
// Callers treat the affected detection fields as unknown for this tick.
var ErrUnavailable = errors.New("capture: backend unavailable")

const defaultTimeout = 2 * time.Second

// Stats is a point-in-time view of grabber throughput.
type Stats struct {
	Captures   uint64
	Failures   uint64
	AvgCapture time.Duration
	Last       time.Time
}

// ScreenGrabber captures screen regions. Safe for concurrent use; the
// backend serializes at the OS level.
type ScreenGrabber struct {
	logger  *slog.Logger
	timeout time.Duration

	captures     atomic.Uint64
	failures     atomic.Uint64
	captureNanos atomic.Uint64
	lastUnix     atomic.Int64
}

// NewScreenGrabber constructs a grabber. timeout <= 0 selects the default.
func NewScreenGrabber(logger *slog.Logger, timeout time.Duration) *ScreenGrabber {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ScreenGrabber{logger: logger, timeout: timeout}
}

// ScreenBounds returns the full bounds of the primary screen.
func (g *ScreenGrabber) ScreenBounds() (image.Rectangle, error) {
	r, err := screenshot.ScreenRect()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("capture: screen bounds: %w", err)
	}
	return r, nil
}

// CaptureScreen grabs the entire primary screen.
func (g *ScreenGrabber) CaptureScreen() (*image.RGBA, error) {
	img, err := g.timed(func() (*image.RGBA, error) { return screenshot.CaptureScreen() })
	if err != nil {
		return nil, err
	}
	return img, nil
}

// CaptureRect grabs one screen region. The region is clipped to the screen;
// a region fully outside it is an error, not an empty image.
func (g *ScreenGrabber) CaptureRect(r image.Rectangle) (image.Image, error) {
	if r.Empty() {
		return nil, errors.New("capture: empty region")
	}
	if screen, err := screenshot.ScreenRect(); err == nil {
		clipped := r.Intersect(screen)
		if clipped.Empty() {
			return nil, fmt.Errorf("capture: region %v outside screen %v", r, screen)
		}
		r = clipped
	}
	img, err := g.timed(func() (*image.RGBA, error) { return screenshot.CaptureRect(r) })
	if err != nil {
		return nil, err
	}
	return img, nil
}

// timed runs one backend call with the configured timeout. A call that
// overruns keeps running in the background; its result is dropped so a hung
// backend cannot wedge the detection loop.
func (g *ScreenGrabber) timed(grab func() (*image.RGBA, error)) (*image.RGBA, error) {
	type outcome struct {
		img *image.RGBA
		err error
	}
	start := time.Now()
	ch := make(chan outcome, 1)
	go func() {
		img, err := grab()
		ch <- outcome{img: img, err: err}
	}()
	select {
	case out := <-ch:
		if out.err != nil {
			g.failures.Add(1)
			return nil, fmt.Errorf("capture: %w", out.err)
		}
		g.captures.Add(1)
		g.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
		g.lastUnix.Store(time.Now().UnixNano())
		return out.img, nil
	case <-time.After(g.timeout):
		g.failures.Add(1)
		g.logger.Warn("capture timed out", "timeout", g.timeout)
		return nil, ErrUnavailable
	}
}

// Stats returns throughput counters for the debug status output.
func (g *ScreenGrabber) Stats() Stats {
	captures := g.captures.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(g.captureNanos.Load() / captures)
	}
	var last time.Time
	if ns := g.lastUnix.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Captures:   captures,
		Failures:   g.failures.Load(),
		AvgCapture: avg,
		Last:       last,
	}
}
