package detect

import (
	"image"
	"log/slog"
	"time"

	"github.com/xViada/arc-autofire/domain/hash"
	"github.com/xViada/arc-autofire/domain/template"
)

// Grabber captures a screen region. Implementations must return an error, not
// a stale or black frame, when the capture backend is unavailable.
type Grabber interface {
	CaptureRect(r image.Rectangle) (image.Image, error)
}

// Hasher fingerprints a captured region.
type Hasher interface {
	Fingerprint(img image.Image) (hash.Fingerprint, error)
}

// Snapshot is one immutable detection configuration. The runtime swaps a new
// snapshot in on reconfiguration; a poll tick reads exactly one snapshot so a
// sample never mixes regions from one config with templates from another.
type Snapshot struct {
	Version           int
	Slot1             image.Rectangle
	Slot2             image.Rectangle
	Menu              image.Rectangle
	Registry          *template.Registry
	DistanceThreshold int
	MinConfidence     float64
}

// Engine produces detection samples from a grabber and a hasher.
type Engine struct {
	grabber Grabber
	hasher  Hasher
	logger  *slog.Logger
}

func NewEngine(grabber Grabber, hasher Hasher, logger *slog.Logger) *Engine {
	return &Engine{grabber: grabber, hasher: hasher, logger: logger}
}

// Poll captures all monitored regions under one snapshot and resolves them
// into a sample. A failed capture or hash marks only that field unknown; the
// other fields still resolve normally.
func (e *Engine) Poll(snap *Snapshot, now time.Time) Sample {
	s := Sample{At: now}
	s.Slot1 = e.resolveSlot(snap, template.Slot1, snap.Slot1)
	s.Slot2 = e.resolveSlot(snap, template.Slot2, snap.Slot2)
	s.Menu = e.resolveMenu(snap)
	return s
}

func (e *Engine) resolveSlot(snap *Snapshot, slot template.Slot, region image.Rectangle) SlotResult {
	fp, ok := e.fingerprintRegion(region, slot.String())
	if !ok {
		return SlotResult{}
	}
	res := Resolve(fp, e.candidates(snap, slot), snap.DistanceThreshold, snap.MinConfidence, e.logger)
	return SlotResult{Known: true, WeaponID: res.WeaponID, Distance: res.Distance, Confidence: res.Confidence}
}

func (e *Engine) resolveMenu(snap *Snapshot) MenuResult {
	menuFP, ok := snap.Registry.Menu()
	if !ok {
		// No menu template: menu detection is disabled and the menu is
		// treated as closed, not as unknown.
		return MenuResult{Known: true}
	}
	fp, ok := e.fingerprintRegion(snap.Menu, "menu")
	if !ok {
		return MenuResult{}
	}
	visible, d, err := hash.Matches(fp, menuFP, snap.DistanceThreshold)
	if err != nil {
		e.logger.Error("menu fingerprint incomparable",
			"sample_bits", fp.Bits(), "template_bits", menuFP.Bits(), "error", err)
		return MenuResult{}
	}
	conf := hash.Confidence(d, fp.Bits())
	if visible && conf < snap.MinConfidence {
		visible = false
	}
	return MenuResult{Known: true, Visible: visible, Distance: d, Confidence: conf}
}

// fingerprintRegion captures and hashes one region; the bool is false when
// the field must be reported unknown.
func (e *Engine) fingerprintRegion(region image.Rectangle, label string) (hash.Fingerprint, bool) {
	if region.Empty() {
		e.logger.Warn("region empty, skipping", "region", label)
		return hash.Fingerprint{}, false
	}
	img, err := e.grabber.CaptureRect(region)
	if err != nil {
		e.logger.Warn("capture failed", "region", label, "error", err)
		return hash.Fingerprint{}, false
	}
	fp, err := e.hasher.Fingerprint(img)
	if err != nil {
		e.logger.Warn("fingerprint failed", "region", label, "error", err)
		return hash.Fingerprint{}, false
	}
	return fp, true
}

func (e *Engine) candidates(snap *Snapshot, slot template.Slot) []Candidate {
	weapons := snap.Registry.Weapons()
	cands := make([]Candidate, 0, len(weapons))
	for _, w := range weapons {
		if fp, ok := w.ForSlot(slot); ok {
			cands = append(cands, Candidate{WeaponID: w.ID, Fingerprint: fp})
		}
	}
	return cands
}
