// Package config loads and persists runtime configuration for detection,
// click timing and hotkeys. Fields are stored as JSON; missing files yield
// defaults and malformed entries are disabled rather than aborting startup.
package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Region is a screen rectangle in absolute screen coordinates.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Valid reports whether the region has positive dimensions.
func (r Region) Valid() bool { return r.W > 0 && r.H > 0 }

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle { return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H) }

// FromRect builds a Region from an image.Rectangle.
func FromRect(rc image.Rectangle) Region {
	return Region{X: rc.Min.X, Y: rc.Min.Y, W: rc.Dx(), H: rc.Dy()}
}

// Delays holds click timing bounds in milliseconds.
type Delays struct {
	DownMin int `json:"click_down_min"`
	DownMax int `json:"click_down_max"`
	UpMin   int `json:"click_up_min"`
	UpMax   int `json:"click_up_max"`
}

// Valid reports whether all bounds are non-negative and ordered.
func (d Delays) Valid() bool {
	return d.DownMin >= 0 && d.UpMin >= 0 && d.DownMin <= d.DownMax && d.UpMin <= d.UpMax
}

// Profile is a named delay configuration a weapon can switch between.
type Profile struct {
	Name string `json:"name"`
	Delays
}

// Weapon configures one detectable weapon. Template filenames are optional
// overrides; by default they derive from the ID (<id>.png, <id>_slot1.png,
// <id>_slot2.png).
type Weapon struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Enabled         bool      `json:"enabled"`
	Template        string    `json:"template,omitempty"`
	TemplateSlot1   string    `json:"template_slot1,omitempty"`
	TemplateSlot2   string    `json:"template_slot2,omitempty"`
	Profiles        []Profile `json:"profiles"`
	SelectedProfile string    `json:"selected_profile"`
}

// SelectedDelays returns the delays of the selected profile. The second
// result is false when no profile matches, in which case callers fall back to
// the global defaults.
func (w *Weapon) SelectedDelays() (Delays, bool) {
	for i := range w.Profiles {
		if w.Profiles[i].Name == w.SelectedProfile {
			return w.Profiles[i].Delays, true
		}
	}
	return Delays{}, false
}

// TemplateBase returns the shared template filename for the weapon.
func (w *Weapon) TemplateBase() string {
	if w.Template != "" {
		return w.Template
	}
	return w.ID + ".png"
}

// TemplateForSlot returns the per-slot template filename (slot 1 or 2).
func (w *Weapon) TemplateForSlot(slot int) string {
	switch {
	case slot == 1 && w.TemplateSlot1 != "":
		return w.TemplateSlot1
	case slot == 2 && w.TemplateSlot2 != "":
		return w.TemplateSlot2
	}
	base := w.TemplateBase()
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_slot%d%s", base[:len(base)-len(ext)], slot, ext)
}

// Detection groups perceptual-hash and polling parameters.
type Detection struct {
	HashSize            int     `json:"hash_size"`
	HashThreshold       int     `json:"hash_threshold"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	PollIntervalMS      int     `json:"poll_interval_ms"`
	IdleIntervalMS      int     `json:"idle_interval_ms"`
}

// Regions groups the three monitored screen rectangles.
type Regions struct {
	Slot1  Region `json:"slot1"`
	Slot2  Region `json:"slot2"`
	Menu   Region `json:"menu"`
	Screen [2]int `json:"screen_resolution"`
}

// Keybinds maps actions to key tokens understood by the hotkey hook.
type Keybinds struct {
	PauseResume string `json:"pause_resume"`
	Stop        string `json:"stop"`
	Capture     string `json:"capture"`
}

// Window configures foreground-window gating.
type Window struct {
	Title    string   `json:"title"`
	Excluded []string `json:"excluded_keywords,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	Debug     bool      `json:"debug"`
	ImagesDir string    `json:"images_dir"`
	Detection Detection `json:"detection"`
	Regions   Regions   `json:"regions"`
	Delays    Delays    `json:"delays"` // fallback when a weapon has no valid profile
	Keybinds  Keybinds  `json:"keybinds"`
	Window    Window    `json:"window"`
	Weapons   []Weapon  `json:"weapons"`
}

// DefaultConfig returns a Config populated with standard defaults for a
// 1920x1080 screen.
func DefaultConfig() *Config {
	return &Config{
		Debug:     false,
		ImagesDir: "images",
		Detection: Detection{
			HashSize:            16,
			HashThreshold:       8,
			ConfidenceThreshold: 0.80,
			PollIntervalMS:      300,
			IdleIntervalMS:      500,
		},
		Regions: Regions{
			Slot1:  Region{X: 1811, Y: 903, W: 63, H: 22},
			Slot2:  Region{X: 1811, Y: 941, W: 63, H: 22},
			Menu:   Region{X: 950, Y: 372, W: 20, H: 20},
			Screen: [2]int{1920, 1080},
		},
		Delays: Delays{DownMin: 54, DownMax: 64, UpMin: 54, UpMax: 64},
		Keybinds: Keybinds{
			PauseResume: "F6",
			Stop:        "F7",
			Capture:     "F8",
		},
		Window: Window{Title: "ARC Raiders"},
		Weapons: []Weapon{
			{
				ID: "kettle", Name: "Kettle", Enabled: true,
				Profiles:        []Profile{{Name: "standard", Delays: Delays{DownMin: 54, DownMax: 64, UpMin: 54, UpMax: 64}}},
				SelectedProfile: "standard",
			},
			{
				ID: "burletta", Name: "Burletta", Enabled: true,
				Profiles:        []Profile{{Name: "standard", Delays: Delays{DownMin: 54, DownMax: 64, UpMin: 54, UpMax: 64}}},
				SelectedProfile: "standard",
			},
		},
	}
}

// Validate clamps values to safe ranges and disables malformed weapon
// entries. It returns human-readable warnings for everything it had to fix;
// the process continues with the remainder.
func (c *Config) Validate() []string {
	var warns []string
	d := &c.Detection
	switch d.HashSize {
	case 8, 16, 32:
	default:
		warns = append(warns, fmt.Sprintf("hash_size %d unsupported, using 16", d.HashSize))
		d.HashSize = 16
	}
	if d.HashThreshold < 0 {
		warns = append(warns, "hash_threshold negative, using 8")
		d.HashThreshold = 8
	}
	if d.ConfidenceThreshold <= 0 || d.ConfidenceThreshold > 1 {
		warns = append(warns, "confidence_threshold out of (0,1], using 0.80")
		d.ConfidenceThreshold = 0.80
	}
	if d.PollIntervalMS <= 0 {
		d.PollIntervalMS = 300
	}
	if d.IdleIntervalMS <= 0 {
		d.IdleIntervalMS = 500
	}
	if !c.Delays.Valid() {
		warns = append(warns, "fallback delays invalid, using 54-64ms")
		c.Delays = Delays{DownMin: 54, DownMax: 64, UpMin: 54, UpMax: 64}
	}
	for _, reg := range []struct {
		label string
		r     Region
	}{{"slot1", c.Regions.Slot1}, {"slot2", c.Regions.Slot2}, {"menu", c.Regions.Menu}} {
		if !reg.r.Valid() {
			warns = append(warns, fmt.Sprintf("region %q has non-positive dimensions", reg.label))
		}
	}
	if c.ImagesDir == "" {
		c.ImagesDir = "images"
	}
	if c.Window.Excluded == nil {
		c.Window.Excluded = DefaultExcludedKeywords()
	}
	seen := map[string]bool{}
	for i := range c.Weapons {
		w := &c.Weapons[i]
		if w.ID == "" {
			warns = append(warns, fmt.Sprintf("weapon #%d has no id, disabled", i))
			w.Enabled = false
			continue
		}
		if seen[w.ID] {
			warns = append(warns, fmt.Sprintf("weapon %q duplicated, later entry disabled", w.ID))
			w.Enabled = false
			continue
		}
		seen[w.ID] = true
		if w.Name == "" {
			w.Name = w.ID
		}
		for j := range w.Profiles {
			if !w.Profiles[j].Valid() {
				warns = append(warns, fmt.Sprintf("weapon %q profile %q has invalid delays, weapon disabled", w.ID, w.Profiles[j].Name))
				w.Enabled = false
			}
		}
	}
	return warns
}

// DefaultExcludedKeywords lists window-title fragments that must never be
// mistaken for the game (editors and IDEs showing source files, mostly).
func DefaultExcludedKeywords() []string {
	return []string{
		"cursor", "visual studio", "vscode", "code", "pycharm",
		"sublime", "notepad", "atom", ".go", ".py", "editor", "ide",
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	p, err := xdg.ConfigFile("arc-autofire/config.json")
	if err != nil {
		return "config.json"
	}
	return p
}

// Load reads configuration from path. A missing file returns defaults without
// error; a JSON error returns defaults alongside the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// Save writes the configuration to path in indented JSON, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
