// Package template loads weapon and menu template images from disk and holds
// their fingerprints in an immutable registry. Reconfiguration builds a fresh
// registry and swaps it in wholesale; readers never observe a partial one.
package template

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/xViada/arc-autofire/config"
	"github.com/xViada/arc-autofire/domain/hash"
)

// Slot identifies one of the two weapon-equip positions.
type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

func (s Slot) String() string { return fmt.Sprintf("slot%d", int(s)) }

// MenuTemplateName is the fixed filename of the quick-menu template.
const MenuTemplateName = "menu.png"

// WeaponSet holds the fingerprints loaded for one weapon. Any of the three
// may be absent; ForSlot applies the per-slot-then-shared resolution order.
type WeaponSet struct {
	ID    string
	Name  string
	slot1 hash.Fingerprint
	slot2 hash.Fingerprint
	sh    hash.Fingerprint
}

// ForSlot resolves the fingerprint to match against for a slot: the per-slot
// fingerprint when present, else the shared one, else absent.
func (w WeaponSet) ForSlot(s Slot) (hash.Fingerprint, bool) {
	var f hash.Fingerprint
	switch s {
	case Slot1:
		f = w.slot1
	case Slot2:
		f = w.slot2
	}
	if f.Zero() {
		f = w.sh
	}
	return f, !f.Zero()
}

// NewWeaponSet builds a weapon set from already-computed fingerprints.
func NewWeaponSet(id, name string, slot1, slot2, shared hash.Fingerprint) WeaponSet {
	return WeaponSet{ID: id, Name: name, slot1: slot1, slot2: slot2, sh: shared}
}

// usable reports whether the weapon can match on at least one slot.
func (w WeaponSet) usable() bool {
	_, ok1 := w.ForSlot(Slot1)
	_, ok2 := w.ForSlot(Slot2)
	return ok1 || ok2
}

// Registry is the immutable set of fingerprints for one configuration load.
type Registry struct {
	weapons  []WeaponSet
	menu     hash.Fingerprint
	hashSize int
}

// NewRegistry assembles a registry from prepared weapon sets, preserving
// their order. Weapons that cannot match on any slot are dropped.
func NewRegistry(hashSize int, menu hash.Fingerprint, weapons ...WeaponSet) *Registry {
	reg := &Registry{menu: menu, hashSize: hashSize}
	for _, w := range weapons {
		if w.usable() {
			reg.weapons = append(reg.weapons, w)
		}
	}
	return reg
}

// Weapons returns the usable weapons in configuration declaration order.
// Callers must not mutate the returned slice.
func (r *Registry) Weapons() []WeaponSet { return r.weapons }

// Lookup returns the fingerprint for a weapon and slot, pure read.
func (r *Registry) Lookup(weaponID string, s Slot) (hash.Fingerprint, bool) {
	for i := range r.weapons {
		if r.weapons[i].ID == weaponID {
			return r.weapons[i].ForSlot(s)
		}
	}
	return hash.Fingerprint{}, false
}

// Menu returns the quick-menu fingerprint, if a menu template was loaded.
func (r *Registry) Menu() (hash.Fingerprint, bool) { return r.menu, !r.menu.Zero() }

// HashSize returns the hash size the registry was built with.
func (r *Registry) HashSize() int { return r.hashSize }

// Loader builds registries from template image files.
type Loader struct {
	dirs   Dirs
	engine *hash.Engine
	logger *slog.Logger
}

// NewLoader constructs a loader rooted at the given image directory.
func NewLoader(dirs Dirs, engine *hash.Engine, logger *slog.Logger) *Loader {
	return &Loader{dirs: dirs, engine: engine, logger: logger}
}

// Load builds a registry for the enabled weapons. Weapons whose templates are
// all missing or unreadable are excluded and logged as a warning, never an
// error; a missing menu template merely disables menu detection.
func (l *Loader) Load(weapons []config.Weapon) (*Registry, error) {
	reg := &Registry{hashSize: l.engine.Size()}
	for i := range weapons {
		w := &weapons[i]
		if !w.Enabled {
			continue
		}
		set := WeaponSet{ID: w.ID, Name: w.Name}
		set.slot1 = l.fingerprintFile(w.TemplateForSlot(1))
		set.slot2 = l.fingerprintFile(w.TemplateForSlot(2))
		set.sh = l.fingerprintFile(w.TemplateBase())
		if !set.usable() {
			l.logger.Warn("weapon excluded from matching, no usable templates",
				"weapon", w.ID,
				"tried", []string{w.TemplateForSlot(1), w.TemplateForSlot(2), w.TemplateBase()})
			continue
		}
		reg.weapons = append(reg.weapons, set)
		l.logger.Info("weapon templates loaded",
			"weapon", w.ID,
			"slot1", !set.slot1.Zero(),
			"slot2", !set.slot2.Zero(),
			"shared", !set.sh.Zero())
	}
	reg.menu = l.fingerprintFile(MenuTemplateName)
	if reg.menu.Zero() {
		l.logger.Warn("menu template missing, menu detection disabled", "file", MenuTemplateName)
	}
	if len(reg.weapons) == 0 {
		l.logger.Warn("no weapon templates loaded, nothing will match")
	}
	return reg, nil
}

// LoadImage opens a template image by name as a grayscale pixel grid, for
// callers that need the raw image rather than its fingerprint (calibration).
func (l *Loader) LoadImage(name string) (image.Image, error) {
	path, ok := l.dirs.Find(name)
	if !ok {
		return nil, fmt.Errorf("template: %s not found under %s", name, l.dirs.Base)
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("template: open %s: %w", path, err)
	}
	return imaging.Grayscale(img), nil
}

// fingerprintFile loads and fingerprints one template file; absent or
// unreadable files yield an absent fingerprint.
func (l *Loader) fingerprintFile(name string) hash.Fingerprint {
	path, ok := l.dirs.Find(name)
	if !ok {
		return hash.Fingerprint{}
	}
	img, err := imaging.Open(path)
	if err != nil {
		l.logger.Warn("template unreadable", "file", path, "error", err)
		return hash.Fingerprint{}
	}
	fp, err := l.engine.Fingerprint(imaging.Grayscale(img))
	if err != nil {
		l.logger.Warn("template fingerprint failed", "file", path, "error", err)
		return hash.Fingerprint{}
	}
	l.logger.Debug("template fingerprinted", "file", path, "hash", fp.String())
	return fp
}
