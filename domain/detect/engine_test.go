package detect

import (
	"errors"
	"image"
	"image/color"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/xViada/arc-autofire/domain/hash"
	"github.com/xViada/arc-autofire/domain/template"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// fp16 builds a 16x16 fingerprint whose first word is w; remaining words are
// zero, so Hamming distances between fixtures are just popcount differences
// of the first word.
func fp16(t *testing.T, w uint64) hash.Fingerprint {
	t.Helper()
	f, err := hash.FromWords([]uint64{w, 0, 0, 0}, 16)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

type taggedImage struct{ tag string }

func (taggedImage) ColorModel() color.Model { return color.GrayModel }
func (taggedImage) Bounds() image.Rectangle { return image.Rect(0, 0, 1, 1) }
func (taggedImage) At(x, y int) color.Color { return color.Gray{} }

// fakeGrabber serves a tag per region; regions in fail error out.
type fakeGrabber struct {
	tags map[image.Rectangle]string
	fail map[image.Rectangle]bool
}

func (g *fakeGrabber) CaptureRect(r image.Rectangle) (image.Image, error) {
	if g.fail[r] {
		return nil, errors.New("capture backend unavailable")
	}
	tag, ok := g.tags[r]
	if !ok {
		return nil, errors.New("no frame for region")
	}
	return taggedImage{tag: tag}, nil
}

// fakeHasher maps tags straight to fingerprints.
type fakeHasher struct {
	fps map[string]hash.Fingerprint
}

func (h *fakeHasher) Fingerprint(img image.Image) (hash.Fingerprint, error) {
	ti, ok := img.(taggedImage)
	if !ok {
		return hash.Fingerprint{}, errors.New("unexpected image type")
	}
	fp, ok := h.fps[ti.tag]
	if !ok {
		return hash.Fingerprint{}, errors.New("no fingerprint for tag " + ti.tag)
	}
	return fp, nil
}

func (h *fakeHasher) Bits() int { return 256 }

var (
	slot1Rect = image.Rect(0, 0, 63, 22)
	slot2Rect = image.Rect(0, 30, 63, 52)
	menuRect  = image.Rect(100, 100, 120, 120)
)

func newSnapshot(reg *template.Registry, threshold int, minConf float64) *Snapshot {
	return &Snapshot{
		Version:           1,
		Slot1:             slot1Rect,
		Slot2:             slot2Rect,
		Menu:              menuRect,
		Registry:          reg,
		DistanceThreshold: threshold,
		MinConfidence:     minConf,
	}
}

func TestPollRecognizesWeaponWithinThreshold(t *testing.T) {
	kettle := fp16(t, 0)
	reg := template.NewRegistry(16, fp16(t, 0xFFFF),
		template.NewWeaponSet("kettle", "Kettle", hash.Fingerprint{}, hash.Fingerprint{}, kettle))

	g := &fakeGrabber{tags: map[image.Rectangle]string{
		slot1Rect: "s1", slot2Rect: "s2", menuRect: "menu",
	}}
	h := &fakeHasher{fps: map[string]hash.Fingerprint{
		"s1":   fp16(t, 0b11),          // distance 2 from kettle
		"s2":   fp16(t, 0xFFFFFFFF),    // distance 32, no match
		"menu": fp16(t, 0xFFFF ^ 0x3F), // distance 6 from menu template
	}}

	e := NewEngine(g, h, discardLogger)
	s := e.Poll(newSnapshot(reg, 4, 0.80), time.Now())

	if !s.Slot1.Matched() || s.Slot1.WeaponID != "kettle" || s.Slot1.Distance != 2 {
		t.Fatalf("slot1 = %+v", s.Slot1)
	}
	if want := 254.0 / 256.0; math.Abs(s.Slot1.Confidence-want) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", s.Slot1.Confidence, want)
	}
	if !s.Slot2.Known || s.Slot2.Matched() {
		t.Fatalf("slot2 = %+v", s.Slot2)
	}
	// Menu at distance 6 with threshold 4: observed but hidden.
	if !s.Menu.Known || s.Menu.Visible {
		t.Fatalf("menu = %+v", s.Menu)
	}
}

func TestPollMenuVisibleWithinThreshold(t *testing.T) {
	reg := template.NewRegistry(16, fp16(t, 0xFFFF),
		template.NewWeaponSet("kettle", "Kettle", hash.Fingerprint{}, hash.Fingerprint{}, fp16(t, 0)))
	g := &fakeGrabber{tags: map[image.Rectangle]string{
		slot1Rect: "s1", slot2Rect: "s1", menuRect: "menu",
	}}
	h := &fakeHasher{fps: map[string]hash.Fingerprint{
		"s1":   fp16(t, 0),
		"menu": fp16(t, 0xFFFF ^ 0b111), // distance 3
	}}
	s := NewEngine(g, h, discardLogger).Poll(newSnapshot(reg, 4, 0.80), time.Now())
	if !s.Menu.Known || !s.Menu.Visible || s.Menu.Distance != 3 {
		t.Fatalf("menu = %+v", s.Menu)
	}
}

func TestPollTieBreaksToEarlierWeapon(t *testing.T) {
	reg := template.NewRegistry(16, hash.Fingerprint{},
		template.NewWeaponSet("alpha", "", hash.Fingerprint{}, hash.Fingerprint{}, fp16(t, 0b000111)),
		template.NewWeaponSet("beta", "", hash.Fingerprint{}, hash.Fingerprint{}, fp16(t, 0b111000)))
	g := &fakeGrabber{tags: map[image.Rectangle]string{
		slot1Rect: "s", slot2Rect: "s", menuRect: "m",
	}}
	// Sample at distance 3 from both alpha and beta.
	h := &fakeHasher{fps: map[string]hash.Fingerprint{"s": fp16(t, 0), "m": fp16(t, 0)}}
	s := NewEngine(g, h, discardLogger).Poll(newSnapshot(reg, 8, 0.5), time.Now())
	if s.Slot1.WeaponID != "alpha" {
		t.Fatalf("tie must go to the earlier weapon, got %+v", s.Slot1)
	}
}

func TestPollCaptureFailureYieldsUnknown(t *testing.T) {
	reg := template.NewRegistry(16, fp16(t, 0xFFFF),
		template.NewWeaponSet("kettle", "", hash.Fingerprint{}, hash.Fingerprint{}, fp16(t, 0)))
	g := &fakeGrabber{
		tags: map[image.Rectangle]string{slot2Rect: "s2", menuRect: "menu"},
		fail: map[image.Rectangle]bool{slot1Rect: true},
	}
	h := &fakeHasher{fps: map[string]hash.Fingerprint{
		"s2":   fp16(t, 0),
		"menu": fp16(t, 0xFFFF),
	}}
	s := NewEngine(g, h, discardLogger).Poll(newSnapshot(reg, 4, 0.80), time.Now())
	if s.Slot1.Known {
		t.Fatalf("failed capture must be unknown, got %+v", s.Slot1)
	}
	// The other fields still resolve.
	if !s.Slot2.Matched() || !s.Menu.Visible {
		t.Fatalf("slot2 = %+v menu = %+v", s.Slot2, s.Menu)
	}
}

func TestPollSkipsMismatchedCandidate(t *testing.T) {
	small, err := hash.FromWords([]uint64{0}, 8)
	if err != nil {
		t.Fatal(err)
	}
	reg := template.NewRegistry(16, hash.Fingerprint{},
		template.NewWeaponSet("stale", "", hash.Fingerprint{}, hash.Fingerprint{}, small),
		template.NewWeaponSet("fresh", "", hash.Fingerprint{}, hash.Fingerprint{}, fp16(t, 0)))
	g := &fakeGrabber{tags: map[image.Rectangle]string{
		slot1Rect: "s", slot2Rect: "s", menuRect: "m",
	}}
	h := &fakeHasher{fps: map[string]hash.Fingerprint{"s": fp16(t, 0b1)}}
	s := NewEngine(g, h, discardLogger).Poll(newSnapshot(reg, 4, 0.80), time.Now())
	if s.Slot1.WeaponID != "fresh" {
		t.Fatalf("mismatched candidate must be skipped, got %+v", s.Slot1)
	}
}

func TestPollConfidenceGate(t *testing.T) {
	reg := template.NewRegistry(16, hash.Fingerprint{},
		template.NewWeaponSet("kettle", "", hash.Fingerprint{}, hash.Fingerprint{}, fp16(t, 0)))
	g := &fakeGrabber{tags: map[image.Rectangle]string{
		slot1Rect: "s", slot2Rect: "s", menuRect: "m",
	}}
	// Distance 8 passes the distance threshold but confidence 248/256 does
	// not clear 0.99.
	h := &fakeHasher{fps: map[string]hash.Fingerprint{"s": fp16(t, 0xFF)}}
	s := NewEngine(g, h, discardLogger).Poll(newSnapshot(reg, 16, 0.99), time.Now())
	if s.Slot1.Matched() {
		t.Fatalf("low-confidence match must be rejected, got %+v", s.Slot1)
	}
	if !s.Slot1.Known {
		t.Fatal("slot was observed, must be known")
	}
}

func TestPollWithoutMenuTemplate(t *testing.T) {
	reg := template.NewRegistry(16, hash.Fingerprint{},
		template.NewWeaponSet("kettle", "", hash.Fingerprint{}, hash.Fingerprint{}, fp16(t, 0)))
	g := &fakeGrabber{tags: map[image.Rectangle]string{
		slot1Rect: "s", slot2Rect: "s",
	}}
	h := &fakeHasher{fps: map[string]hash.Fingerprint{"s": fp16(t, 0)}}
	s := NewEngine(g, h, discardLogger).Poll(newSnapshot(reg, 4, 0.80), time.Now())
	if !s.Menu.Known || s.Menu.Visible {
		t.Fatalf("missing menu template means menu closed, got %+v", s.Menu)
	}
}
