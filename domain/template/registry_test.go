package template

import (
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/xViada/arc-autofire/config"
	"github.com/xViada/arc-autofire/domain/hash"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// checker renders a checkerboard with the given cell size; different cell
// sizes give visually distinct textures and therefore distant fingerprints.
func checker(cell int) *image.NRGBA {
	img := imaging.New(64, 64, color.NRGBA{A: 255})
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 230, G: 230, B: 230, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{R: 20, G: 20, B: 40, A: 255})
			}
		}
	}
	return img
}

func gradient() *image.NRGBA {
	img := imaging.New(64, 64, color.NRGBA{A: 255})
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(4 * x % 256), G: uint8(y * 3 % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
}

func newLoader(t *testing.T, base string) (*Loader, *hash.Engine) {
	t.Helper()
	eng, err := hash.NewEngine(16)
	if err != nil {
		t.Fatal(err)
	}
	return NewLoader(Dirs{Base: base}, eng, discardLogger), eng
}

// sameFingerprint checks that the registry fingerprint equals the fingerprint
// of the given image.
func sameFingerprint(t *testing.T, eng *hash.Engine, got hash.Fingerprint, img image.Image) bool {
	t.Helper()
	want, err := eng.Fingerprint(imaging.Grayscale(img))
	if err != nil {
		t.Fatal(err)
	}
	d, err := hash.Distance(got, want)
	if err != nil {
		t.Fatal(err)
	}
	return d == 0
}

func TestDirsFindPriority(t *testing.T) {
	base := t.TempDir()
	d := Dirs{Base: base}
	writePNG(t, filepath.Join(d.Templates(), "kettle.png"), checker(8))
	p, ok := d.Find("kettle.png")
	if !ok || p != filepath.Join(d.Templates(), "kettle.png") {
		t.Fatalf("find = %q ok=%v", p, ok)
	}
	// Captured takes priority over templates for the same filename.
	writePNG(t, filepath.Join(d.Captured(), "kettle.png"), gradient())
	p, ok = d.Find("kettle.png")
	if !ok || p != filepath.Join(d.Captured(), "kettle.png") {
		t.Fatalf("captured should win: %q ok=%v", p, ok)
	}
	if _, ok := d.Find("nope.png"); ok {
		t.Fatal("found nonexistent file")
	}
}

func TestLoadPerSlotBeatsShared(t *testing.T) {
	base := t.TempDir()
	d := Dirs{Base: base}
	slot1Img := checker(4)
	sharedImg := checker(16)
	writePNG(t, filepath.Join(d.Templates(), "kettle_slot1.png"), slot1Img)
	writePNG(t, filepath.Join(d.Templates(), "kettle.png"), sharedImg)

	l, eng := newLoader(t, base)
	reg, err := l.Load([]config.Weapon{{ID: "kettle", Name: "Kettle", Enabled: true}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	fp1, ok := reg.Lookup("kettle", Slot1)
	if !ok || !sameFingerprint(t, eng, fp1, slot1Img) {
		t.Fatal("slot1 must use the per-slot template")
	}
	// No slot2 file: shared fingerprint serves slot2.
	fp2, ok := reg.Lookup("kettle", Slot2)
	if !ok || !sameFingerprint(t, eng, fp2, sharedImg) {
		t.Fatal("slot2 must fall back to the shared template")
	}
}

func TestLoadExcludesWeaponWithoutTemplates(t *testing.T) {
	base := t.TempDir()
	d := Dirs{Base: base}
	writePNG(t, filepath.Join(d.Templates(), "kettle.png"), checker(8))

	l, _ := newLoader(t, base)
	reg, err := l.Load([]config.Weapon{
		{ID: "kettle", Enabled: true},
		{ID: "ghost", Enabled: true},
		{ID: "off", Enabled: false},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reg.Weapons()) != 1 || reg.Weapons()[0].ID != "kettle" {
		t.Fatalf("weapons = %+v", reg.Weapons())
	}
	if _, ok := reg.Lookup("ghost", Slot1); ok {
		t.Fatal("ghost must be unmatchable")
	}
}

func TestLoadPreservesDeclarationOrder(t *testing.T) {
	base := t.TempDir()
	d := Dirs{Base: base}
	writePNG(t, filepath.Join(d.Templates(), "alpha.png"), checker(4))
	writePNG(t, filepath.Join(d.Templates(), "beta.png"), checker(16))

	l, _ := newLoader(t, base)
	reg, err := l.Load([]config.Weapon{
		{ID: "alpha", Enabled: true},
		{ID: "beta", Enabled: true},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ws := reg.Weapons()
	if len(ws) != 2 || ws[0].ID != "alpha" || ws[1].ID != "beta" {
		t.Fatalf("order = %+v", ws)
	}
}

func TestLoadMenuOptional(t *testing.T) {
	base := t.TempDir()
	d := Dirs{Base: base}
	writePNG(t, filepath.Join(d.Templates(), "kettle.png"), checker(8))

	l, eng := newLoader(t, base)
	reg, _ := l.Load([]config.Weapon{{ID: "kettle", Enabled: true}})
	if _, ok := reg.Menu(); ok {
		t.Fatal("menu should be absent")
	}

	menuImg := gradient()
	writePNG(t, filepath.Join(d.Captured(), MenuTemplateName), menuImg)
	reg, _ = l.Load([]config.Weapon{{ID: "kettle", Enabled: true}})
	m, ok := reg.Menu()
	if !ok || !sameFingerprint(t, eng, m, menuImg) {
		t.Fatal("menu fingerprint missing or wrong")
	}
	if reg.HashSize() != 16 {
		t.Fatalf("hash size = %d", reg.HashSize())
	}
}

func TestLoadImageForCalibration(t *testing.T) {
	base := t.TempDir()
	d := Dirs{Base: base}
	writePNG(t, filepath.Join(d.Templates(), "kettle.png"), checker(8))
	l, _ := newLoader(t, base)
	img, err := l.LoadImage("kettle.png")
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if _, err := l.LoadImage("missing.png"); err == nil {
		t.Fatal("expected error for missing template")
	}
}
