package config

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detection.HashSize != 16 || cfg.Detection.HashThreshold != 8 {
		t.Fatalf("unexpected defaults: %+v", cfg.Detection)
	}
	if len(cfg.Weapons) == 0 {
		t.Fatal("expected default weapons")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := DefaultConfig()
	cfg.Detection.HashThreshold = 4
	cfg.Regions.Slot1 = Region{X: 10, Y: 20, W: 30, H: 40}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Detection.HashThreshold != 4 {
		t.Fatalf("threshold = %d", got.Detection.HashThreshold)
	}
	if got.Regions.Slot1 != (Region{X: 10, Y: 20, W: 30, H: 40}) {
		t.Fatalf("slot1 = %+v", got.Regions.Slot1)
	}
}

func TestLoadBadJSONReturnsDefaultsAndError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if cfg == nil || cfg.Detection.HashSize != 16 {
		t.Fatalf("expected defaults on decode error, got %+v", cfg)
	}
}

func TestValidateClampsDetection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detection.HashSize = 13
	cfg.Detection.ConfidenceThreshold = 1.5
	cfg.Detection.PollIntervalMS = -1
	warns := cfg.Validate()
	if cfg.Detection.HashSize != 16 {
		t.Fatalf("hash size not clamped: %d", cfg.Detection.HashSize)
	}
	if cfg.Detection.ConfidenceThreshold != 0.80 {
		t.Fatalf("confidence not clamped: %v", cfg.Detection.ConfidenceThreshold)
	}
	if cfg.Detection.PollIntervalMS != 300 {
		t.Fatalf("poll interval not clamped: %d", cfg.Detection.PollIntervalMS)
	}
	if len(warns) == 0 {
		t.Fatal("expected warnings")
	}
}

func TestValidateDisablesWeaponWithBadDelays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weapons = append(cfg.Weapons, Weapon{
		ID: "broken", Enabled: true,
		Profiles:        []Profile{{Name: "bad", Delays: Delays{DownMin: 90, DownMax: 10, UpMin: 5, UpMax: 6}}},
		SelectedProfile: "bad",
	})
	warns := cfg.Validate()
	var broken *Weapon
	for i := range cfg.Weapons {
		if cfg.Weapons[i].ID == "broken" {
			broken = &cfg.Weapons[i]
		}
	}
	if broken == nil || broken.Enabled {
		t.Fatal("weapon with Min>Max delays must be disabled")
	}
	found := false
	for _, w := range warns {
		if strings.Contains(w, "broken") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected warning naming the weapon, got %v", warns)
	}
	// The rest of the config stays usable.
	for _, w := range cfg.Weapons {
		if w.ID == "kettle" && !w.Enabled {
			t.Fatal("valid weapon must stay enabled")
		}
	}
}

func TestValidateDisablesDuplicateIDs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weapons = append(cfg.Weapons, Weapon{ID: "kettle", Enabled: true})
	cfg.Validate()
	enabled := 0
	for _, w := range cfg.Weapons {
		if w.ID == "kettle" && w.Enabled {
			enabled++
		}
	}
	if enabled != 1 {
		t.Fatalf("expected exactly one enabled kettle, got %d", enabled)
	}
}

func TestSelectedDelaysFallback(t *testing.T) {
	w := Weapon{
		ID: "x",
		Profiles: []Profile{
			{Name: "fast", Delays: Delays{DownMin: 10, DownMax: 20, UpMin: 10, UpMax: 20}},
			{Name: "slow", Delays: Delays{DownMin: 80, DownMax: 90, UpMin: 80, UpMax: 90}},
		},
		SelectedProfile: "slow",
	}
	d, ok := w.SelectedDelays()
	if !ok || d.DownMin != 80 {
		t.Fatalf("selected = %+v ok=%v", d, ok)
	}
	w.SelectedProfile = "missing"
	if _, ok := w.SelectedDelays(); ok {
		t.Fatal("missing profile must report !ok")
	}
}

func TestTemplateNames(t *testing.T) {
	w := Weapon{ID: "kettle"}
	if got := w.TemplateBase(); got != "kettle.png" {
		t.Fatalf("base = %q", got)
	}
	if got := w.TemplateForSlot(1); got != "kettle_slot1.png" {
		t.Fatalf("slot1 = %q", got)
	}
	w.TemplateSlot2 = "custom.png"
	if got := w.TemplateForSlot(2); got != "custom.png" {
		t.Fatalf("slot2 override = %q", got)
	}
}

func TestRegionRect(t *testing.T) {
	r := Region{X: 5, Y: 6, W: 10, H: 20}
	if got := r.Rect(); got != image.Rect(5, 6, 15, 26) {
		t.Fatalf("rect = %v", got)
	}
	if back := FromRect(r.Rect()); back != r {
		t.Fatalf("round trip = %+v", back)
	}
	if (Region{W: 0, H: 5}).Valid() {
		t.Fatal("zero width must be invalid")
	}
}
